package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
)

// fileLoader is the disk-backed modeledjs.Loader the run/run --watch
// subcommands install: specifiers resolve relative to their importer's
// directory (Node's classic relative-import rule), and every resolved
// path Load reads is remembered so --watch knows which files pulled
// into the graph are worth a fsnotify.Add.
type fileLoader struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newFileLoader() *fileLoader {
	return &fileLoader{seen: map[string]struct{}{}}
}

func (l *fileLoader) Resolve(specifier, importerID string) (string, error) {
	if filepath.IsAbs(specifier) {
		return filepath.Clean(specifier), nil
	}
	dir := filepath.Dir(importerID)
	return filepath.Clean(filepath.Join(dir, specifier)), nil
}

func (l *fileLoader) Load(ctx context.Context, resolvedID string) (string, error) {
	text, err := os.ReadFile(resolvedID)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	l.seen[resolvedID] = struct{}{}
	l.mu.Unlock()

	return string(text), nil
}

func (l *fileLoader) referencedFiles() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.seen))
	for p := range l.seen {
		out = append(out, p)
	}
	return out
}

package modeledjs

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/robertkrimen/otto/parser"
)

// RunScriptFile parses and runs a script from disk through the otto
// front end, the embedding entry point cmd/run262 and cmd/modeledjs
// both use (mirrors the teacher's RunScriptFile/RunScriptReader pair).
func (vm *VM) RunScriptFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening script %q", path)
	}
	defer f.Close()
	return vm.RunScriptReader(path, f)
}

func (vm *VM) RunScriptReader(path string, r io.Reader) error {
	src, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(err, "reading script %q", path)
	}
	program, err := parser.ParseFile(nil, path, src, 0)
	if err != nil {
		return errors.Wrapf(err, "parsing script %q", path)
	}
	_, err = vm.Evaluate(LowerProgram(program))
	return err
}

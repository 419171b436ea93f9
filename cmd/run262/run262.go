package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"runtime/pprof"

	"com.github.sebastianobarrera.modeledjs/modeledjs"
	tsparser "com.github.sebastianobarrera.modeledjs/modeledjs/ts-parser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"
)

var (
	test262Root string
	testCase    string
	showAST     bool
	parseOnly   bool
	cpuProfile  string

	textSta    string
	textAssert string

	logger *zap.Logger

	ErrCaseDisabledInMetadata = errors.New("testcase disabled in metadata")
)

var rootCmd = &cobra.Command{
	Use:   "run262",
	Short: "Run the test262 conformance suite against the evaluator",
	RunE:  runRoot,
}

func init() {
	rootCmd.Flags().StringVar(&test262Root, "test262", "", "Path to the test262 repository")
	rootCmd.Flags().StringVar(&testCase, "single", "", "Run this specific testcase (path relative to the test262 root)")
	rootCmd.Flags().BoolVar(&showAST, "showAST", false, "Show the AST of the main script")
	rootCmd.Flags().BoolVar(&parseOnly, "parseOnly", false, "Stop at parsing; test is successful if it parses as expected")
	rootCmd.Flags().StringVar(&cpuProfile, "cpuProfile", "", "Write CPU profile to this file")
}

func main() {
	logger, _ = zap.NewDevelopment()
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("run262 failed", zap.Error(err))
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	if cpuProfile != "" {
		cpuf, err := os.Create(cpuProfile)
		if err != nil {
			return fmt.Errorf("creating cpu profile file %q: %w", cpuProfile, err)
		}
		pprof.StartCPUProfile(cpuf)
		defer pprof.StopCPUProfile()
	}

	if test262Root == "" {
		return fmt.Errorf("command line argument is required: --test262 (see --help)")
	}

	raw, err := os.ReadFile(path.Join(test262Root, "harness/sta.js"))
	if err != nil {
		return fmt.Errorf("reading preamble (harness/sta.js): %w", err)
	}
	textSta = string(raw)
	raw, err = os.ReadFile(path.Join(test262Root, "harness/assert.js"))
	if err != nil {
		return fmt.Errorf("reading preamble (harness/assert.js): %w", err)
	}
	textAssert = string(raw)

	if testCase != "" {
		logger.Info("running single test case", zap.String("case", testCase))
		errStrict, errSloppy := runTestCase(test262Root, testCase)
		logger.Info("result", zap.Error(errStrict), zap.NamedError("sloppy", errSloppy))
		return nil
	}

	testConfig, err := readTestConfig("testConfig.json")
	if err != nil {
		return fmt.Errorf("parsing testConfig.json: %w", err)
	}

	result := runMany(test262Root, testConfig.TestCases)

	successesCount := 0
	failuresCount := 0
	for _, co := range result.Cases {
		if co.Success {
			successesCount++
		} else {
			failuresCount++
		}
	}

	successes := make([]CaseOutcome, 0, successesCount)
	failures := make([]CaseOutcome, 0, failuresCount)
	for _, co := range result.Cases {
		if co.Success {
			successes = append(successes, co)
		} else {
			failures = append(failures, co)
		}
	}

	fmt.Printf("group SUCCESSES %d\n", successesCount)
	for _, co := range successes {
		strictMode := "sloppy"
		if co.StrictMode {
			strictMode = "strict"
		}
		fmt.Printf("case\t%s\t%s\n", co.Path, strictMode)
	}

	fmt.Printf("group FAILURES %d\n", failuresCount)
	for _, co := range failures {
		strictMode := "sloppy"
		if co.StrictMode {
			strictMode = "strict"
		}

		fmt.Printf("case\t%s\t%s\n", co.Path, strictMode)

		var errLines []string
		if co.Error != nil {
			errLines = strings.Split(co.Error.Error(), "\n")
		}
		for ndx, line := range errLines {
			if ndx == 0 {
				fmt.Printf("error\t\t%s\n", line)
			} else {
				fmt.Printf("ectx\t\t%s\n", line)
			}
		}
	}

	fmt.Printf("summary\ttotal: %d; %d successes; %d failures\n", len(result.Cases), successesCount, failuresCount)
	return nil
}

type TestConfig struct {
	TestCases []string `json:"testCases"`
}

func readTestConfig(filename string) (cfg TestConfig, err error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return
	}

	err = json.Unmarshal(buf, &cfg)
	return
}

type RunManyResult struct {
	Cases []CaseOutcome
}

type CaseOutcome struct {
	Path       string
	StrictMode bool

	Success bool
	Error   error
}

func runMany(test262Root string, testCases []string) (result RunManyResult) {
	result.Cases = make([]CaseOutcome, 0, len(testCases)*2)

	sink := make(chan CaseOutcome)

	for _, relPath := range testCases {
		go func() {
			errStrict, errSloppy := runTestCase(test262Root, relPath)

			sink <- CaseOutcome{
				Path:       relPath,
				StrictMode: true,
				Success:    (errStrict == nil || errStrict == ErrCaseDisabledInMetadata),
				Error:      errStrict,
			}
			sink <- CaseOutcome{
				Path:       relPath,
				StrictMode: false,
				Success:    (errSloppy == nil || errSloppy == ErrCaseDisabledInMetadata),
				Error:      errSloppy,
			}
		}()
	}

	for i := 0; i < 2*len(testCases); i++ {
		co := <-sink
		result.Cases = append(result.Cases, co)
	}
	return
}

func runTestCase(test262Root, testCase string) (errStrict, errSloppy error) {
	testCaseAbs := testCase
	if !path.IsAbs(testCase) {
		testCaseAbs = path.Join(test262Root, testCase)
	}

	textBytes, err := os.ReadFile(testCaseAbs)
	if err != nil {
		logger.Error("reading testcase", zap.String("path", testCaseAbs), zap.Error(err))
		errStrict = err
		errSloppy = err
		return
	}

	if showAST {
		if err := modeledjs.PrintAST(bytes.NewReader(textBytes)); err != nil {
			logger.Error("parsing and printing AST", zap.Error(err))
			errStrict = err
			errSloppy = err
			return
		}
	}

	mt, err := parseMetadata(textBytes)
	if err != nil {
		errStrict = fmt.Errorf("while parsing metadata: %w", err)
		errSloppy = errStrict
		return
	}

	runInMode := func(forceStrict bool) (err error) {
		logger.Debug("running testcase", zap.String("case", testCase), zap.Bool("strict", forceStrict))

		vm := modeledjs.NewVM()

		paths := []string{
			path.Join(test262Root, "harness/sta.js"),
			path.Join(test262Root, "harness/assert.js"),
		}
		paths = append(paths, mt.Includes...)
		paths = append(paths, testCaseAbs)

		for i, p := range paths {
			var buf *bytes.Buffer

			if i == len(paths)-1 {
				buf = new(bytes.Buffer)
				if forceStrict {
					buf.WriteString("\"use strict\";")
				}
				io.Copy(buf, bytes.NewReader(textBytes))
			} else {
				buf = new(bytes.Buffer)

				f, err := os.Open(p)
				if err != nil {
					return err
				}
				defer f.Close()

				_, err = io.Copy(buf, f)
				if err != nil {
					return err
				}
			}

			if parseOnly {
				err = tsparser.ParseBytes(p, buf.Bytes())
			} else {
				err = vm.RunScriptReader(p, buf)
			}

			if mt.NegativePhase != "" {
				if err == nil {
					err = fmt.Errorf("expected %s error in phase %s, but none were raised", mt.NegativeType, mt.NegativePhase)
				} else {
					err = nil
				}
			}

			if err != nil {
				return err
			}
		}

		return nil
	}

	if mt.NoStrict {
		errStrict = ErrCaseDisabledInMetadata
	} else {
		errStrict = runInMode(true)
	}
	if mt.OnlyStrict {
		errSloppy = ErrCaseDisabledInMetadata
	} else {
		errSloppy = runInMode(false)
	}

	return
}

type Metadata struct {
	OnlyStrict    bool
	NoStrict      bool
	Includes      []string
	NegativePhase string
	NegativeType  string
}

func parseMetadata(text []byte) (mt Metadata, err error) {
	startNdx := bytes.Index(text, []byte("/*---"))
	if startNdx == -1 {
		return
	}

	endRel := bytes.Index(text[startNdx:], []byte("---*/"))
	if endRel == -1 {
		err = fmt.Errorf("invalid source code: unterminated metadata comment (started with /*--- at offset %d)", startNdx)
		return
	}
	endNdx := startNdx + endRel

	metadataYaml := text[startNdx+5 : endNdx]

	var metadataRaw struct {
		Flags    []string
		Includes []string
		Negative *struct {
			Phase string
			Type  string
		}
	}

	err = yaml.Unmarshal(metadataYaml, &metadataRaw)
	if err != nil {
		return
	}

	for _, flag := range metadataRaw.Flags {
		switch flag {
		case "noStrict":
			mt.NoStrict = true
		case "onlyStrict":
			mt.OnlyStrict = true
		}
	}

	mt.Includes = metadataRaw.Includes
	if metadataRaw.Negative != nil {
		mt.NegativePhase = metadataRaw.Negative.Phase
		mt.NegativeType = metadataRaw.Negative.Type
	}

	return
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"com.github.sebastianobarrera.modeledjs/modeledjs"
	"github.com/robertkrimen/otto/parser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runAsScript bool
	watchMode   bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "modeledjs",
	Short: "Run or explore JavaScript with the modeledjs evaluator",
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Evaluate a file as a module (default) or a script (--script)",
	Args:  cobra.ExactArgs(1),
	RunE:  runFile,
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Line-oriented REPL over one persistent global context",
	RunE:  runRepl,
}

func init() {
	runCmd.Flags().BoolVar(&runAsScript, "script", false, "evaluate as a classic script instead of a module")
	runCmd.Flags().BoolVar(&watchMode, "watch", false, "re-run on changes to any file pulled into the module graph")
	rootCmd.AddCommand(runCmd, replCmd)
}

func main() {
	logger, _ = zap.NewDevelopment()
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("modeledjs failed", zap.Error(err))
	}
}

func runFile(cmd *cobra.Command, args []string) error {
	entry, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	if runAsScript {
		if watchMode {
			return watchFiles([]string{entry}, 200*time.Millisecond, logger, func() []string {
				evalScript(entry)
				return nil
			})
		}
		evalScript(entry)
		return nil
	}

	loader := newFileLoader()
	evalModule := func() {
		vm := modeledjs.NewVM()
		vm.SetModuleLoader(loader)
		vm.SetModuleSyntaxPreCheck(true)
		ns, err := vm.ImportModule(entry)
		if err != nil {
			logger.Error("evaluation failed", zap.Error(err))
			return
		}
		vm.RunPendingAsyncTasks()
		printNamespace(vm, ns)
	}

	if !watchMode {
		evalModule()
		return nil
	}

	evalModule()
	return watchFiles(loader.referencedFiles(), 200*time.Millisecond, logger, func() []string {
		logger.Info("change detected, re-running", zap.String("entry", entry))
		evalModule()
		return loader.referencedFiles()
	})
}

func evalScript(path string) {
	vm := modeledjs.NewVM()
	if err := vm.RunScriptFile(path); err != nil {
		logger.Error("evaluation failed", zap.Error(err))
		return
	}
	vm.RunPendingAsyncTasks()
}

func printNamespace(vm *modeledjs.VM, ns *modeledjs.JSObject) {
	if ns == nil {
		return
	}
	for _, key := range ns.OwnKeys() {
		v, err := ns.GetProperty(key, vm)
		if err != nil {
			continue
		}
		s, err := vm.DisplayString(v)
		if err != nil {
			s = "(unprintable)"
		}
		fmt.Printf("%s = %s\n", key.String(), s)
	}
}

func runRepl(cmd *cobra.Command, args []string) error {
	vm := modeledjs.NewVM()
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("modeledjs repl — Ctrl-D to exit")
	for {
		fmt.Print("> ")
		line, readErr := reader.ReadString('\n')
		line = strings.TrimRight(line, "\n")
		if strings.TrimSpace(line) != "" {
			value, err := evaluateDirectEval(vm, line)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
			} else if s, err := vm.DisplayString(value); err != nil {
				fmt.Fprintln(os.Stderr, err)
			} else {
				fmt.Println(s)
			}
		}
		if readErr == io.EOF {
			fmt.Println()
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// evaluateDirectEval parses one line against the otto ES5.1 front end
// and runs it through the VM's existing global scope, so declarations
// made on one line are visible on the next — a direct eval against a
// single persistent context, the way RunScriptReader evaluates a
// script except it returns the completion value instead of
// discarding it.
func evaluateDirectEval(vm *modeledjs.VM, src string) (modeledjs.JSValue, error) {
	program, err := parser.ParseFile(nil, "<repl>", src, 0)
	if err != nil {
		return nil, err
	}
	return vm.Evaluate(modeledjs.LowerProgram(program))
}

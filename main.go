// mathvm translates MathVM source into bytecode and runs it on a stack machine.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/mathvm/mathvm/bytecode"
	"github.com/mathvm/mathvm/repl"
	"github.com/mathvm/mathvm/translator"
	"github.com/mathvm/mathvm/vm"
)

const version = "0.1.0"

// Exit codes, per the external CLI contract: 0 success, 1 usage
// error, 2 translation error, 3 runtime error.
const (
	exitOK = iota
	exitUsage
	exitCompileError
	exitRuntimeError
)

// printUsage displays custom usage information
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `MathVM v%s

USAGE:
    %s [OPTIONS]

DESCRIPTION:
    MathVM translates source into bytecode and runs it on a stack
    machine. Without any flags, it starts an interactive REPL.

OPTIONS:
    -f, --file <path>       Run a MathVM source file
    -e, --eval <code>       Run a MathVM expression directly
    -d, --debug             Enable debug mode with more verbose output
    --dump                  Print bytecode disassembly instead of running it
    -v, --version           Show version information
    -h, --help              Show this help message

EXAMPLES:
    # Start interactive REPL
    %s

    # Run a script file
    %s -f program.mvm
    %s --file program.mvm

    # Run an expression directly
    %s -e "print(2 + 2);"

    # Inspect the compiled bytecode instead of running it
    %s -f program.mvm --dump

`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	flag.Usage = printUsage

	fileFlag := flag.String("file", "", "Run a MathVM source file")
	evalFlag := flag.String("eval", "", "Run a MathVM expression directly")
	debugFlag := flag.Bool("debug", false, "Enable debug mode with more verbose output")
	versionFlag := flag.Bool("version", false, "Show version information")
	dumpFlag := flag.Bool("dump", false, "Print bytecode disassembly instead of running it")
	noColorFlag := flag.Bool("no-color", false, "Disable syntax highlighting and colored output in the REPL")

	flag.StringVar(fileFlag, "f", "", "Run a MathVM source file")
	flag.StringVar(evalFlag, "e", "", "Run a MathVM expression directly")
	flag.BoolVar(debugFlag, "d", false, "Enable debug mode with more verbose output")
	flag.BoolVar(versionFlag, "v", false, "Show version information")

	flag.Parse()

	if *versionFlag {
		fmt.Printf("MathVM v%s\n", version)
		os.Exit(exitOK)
	}

	if *fileFlag != "" {
		source, err := readSourceFile(*fileFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading file: %s\n", err)
			os.Exit(exitUsage)
		}
		os.Exit(runSource(source, *debugFlag, *dumpFlag))
	}

	if *evalFlag != "" {
		os.Exit(runSource(*evalFlag, *debugFlag, *dumpFlag))
	}

	username := "unknown"
	if usr, err := user.Current(); err == nil {
		username = usr.Username
	}

	fmt.Println("Hello", username+",", "welcome to MathVM!")
	fmt.Println("Feel free to type in MathVM code. (Ctrl+D or Ctrl+C to exit)")

	repl.Start(username, repl.Options{NoColor: *noColorFlag, Debug: *debugFlag})
}

func readSourceFile(filename string) (string, error) {
	cleaned := filepath.Clean(filename)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", err
	}
	//nolint:gosec // the path comes from a trusted command-line flag, not untrusted input
	content, err := os.ReadFile(absolute)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// runSource translates source and either dumps its disassembly or
// executes it, returning the process exit code per the CLI contract.
func runSource(source string, debug bool, dump bool) int {
	prog, cerr := translator.Translate(source)
	if cerr != nil {
		fmt.Fprintf(os.Stderr, "Compile error: %s\n", cerr)
		return exitCompileError
	}

	if dump {
		for _, fn := range prog.Functions {
			fmt.Printf("function %s:\n", fn.Name)
			fmt.Print(bytecode.Disassemble(fn.Code))
			fmt.Println()
		}
		return exitOK
	}

	if debug {
		fmt.Fprintf(os.Stderr, "DEBUG: %d function(s), %d string constant(s)\n", len(prog.Functions), len(prog.Strings))
	}

	if rerr := vm.Execute(prog, os.Stdout, nil); rerr != nil {
		fmt.Fprintf(os.Stderr, "Runtime error: %s\n", rerr)
		return exitRuntimeError
	}
	return exitOK
}

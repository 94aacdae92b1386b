// Package main implements the kale compiler and runner.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"time"

	"github.com/you-not-fish/kale/internal/driver"
	"github.com/you-not-fish/kale/internal/host"
	"github.com/you-not-fish/kale/internal/jit"
	"github.com/you-not-fish/kale/internal/ssa"
	"github.com/you-not-fish/kale/internal/ssa/passes"
	"github.com/you-not-fish/kale/internal/syntax"
)

// Compiler flags
var (
	emitTokens = flag.Bool("emit-tokens", false, "Output token stream")
	emitAST    = flag.Bool("emit-ast", false, "Output AST")
	dumpAST    = flag.Bool("dump-ast", false, "Output full AST structure")
	astFormat  = flag.String("ast-format", "text", "AST output format (text or json)")
	emitIR     = flag.Bool("emit-ir", false, "Output SSA after the pass pipeline")
	emitLL     = flag.Bool("emit-ll", false, "Output LLVM IR")
	output     = flag.String("o", "", "Write an object file instead of running")
	optimize   = flag.Bool("O", false, "Promote variables to registers")
	tabWidth   = flag.Int("tab", syntax.DefaultTabWidth, "Tab width for column numbers")
	frame      = flag.Duration("frame", 16*time.Millisecond, "Frame interval when running")
	budget     = flag.Int("budget", 0, "Commands applied per frame (0 for no limit)")
	maxDepth   = flag.Int("max-depth", jit.DefaultMaxDepth, "Maximum call depth when running")
	dumpFunc   = flag.String("dump-func", "", "Only dump specific function")
	dumpBefore = flag.String("dump-before", "", "Dump SSA before pass (name or \"*\")")
	dumpAfter  = flag.String("dump-after", "", "Dump SSA after pass (name or \"*\")")
	doctor     = flag.Bool("doctor", false, "Check toolchain")
	version    = flag.Bool("version", false, "Print version")
)

// Version information
const Version = "0.1.0-dev"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Kale Compiler %s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: kalec [options] <file.ks>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *version {
		fmt.Printf("kalec version %s\n", Version)
		fmt.Printf("go version %s\n", runtime.Version())
		os.Exit(0)
	}

	if *doctor {
		os.Exit(runDoctor())
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "error: no input file")
		fmt.Fprintln(os.Stderr, "usage: kalec [options] <file.ks>")
		os.Exit(2)
	}

	filename := args[0]
	src, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *emitTokens:
		os.Exit(runEmitTokens(filename, string(src)))
	case *emitAST, *dumpAST:
		os.Exit(runEmitAST(filename, string(src)))
	case *emitIR, *emitLL, *output != "":
		os.Exit(runCompile(filename, string(src)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(runProgram(ctx, filename, string(src)))
}

// printDiag writes a diagnostic to stderr.
func printDiag(msg string, sev driver.Severity) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", sev, msg)
}

// config returns the driver configuration selected by the flags.
func config(filename string) driver.Config {
	return driver.Config{
		Filename: filename,
		TabWidth: *tabWidth,
		Optimize: *optimize,
		Diag:     printDiag,
		Options:  jit.Options{MaxDepth: *maxDepth},
		Passes: passes.Config{
			DumpBefore: *dumpBefore,
			DumpAfter:  *dumpAfter,
			DumpFunc:   *dumpFunc,
		},
	}
}

// runEmitTokens scans the input and prints all tokens with positions.
func runEmitTokens(filename, src string) int {
	var errs []string
	errh := func(line, col uint32, msg string) {
		errs = append(errs, fmt.Sprintf("%s:%d:%d: %s", filename, line, col, msg))
	}

	buf := syntax.NewBuffer(src)
	buf.Terminate()
	s := syntax.NewScanner(filename, buf, *tabWidth, errh)

	fmt.Printf("%-20s %-12s %s\n", "POSITION", "TOKEN", "LITERAL")
	fmt.Printf("%-20s %-12s %s\n", strings.Repeat("-", 20), strings.Repeat("-", 12), strings.Repeat("-", 20))

	for {
		s.Next()
		tok := s.Token()
		fmt.Printf("%-20s %-12s %s\n", s.Pos(), tok, formatLiteral(s.Literal()))
		if tok.IsEOF() {
			break
		}
	}

	if len(errs) > 0 {
		fmt.Println()
		fmt.Println("Errors:")
		for _, e := range errs {
			fmt.Printf("  %s\n", e)
		}
		return 1
	}
	return 0
}

// formatLiteral formats a literal for display, escaping special characters.
func formatLiteral(lit string) string {
	if lit == "" {
		return "\"\""
	}

	var b strings.Builder
	b.WriteRune('"')
	for _, r := range lit {
		switch r {
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		case '\r':
			b.WriteString("\\r")
		case '\\':
			b.WriteString("\\\\")
		case '"':
			b.WriteString("\\\"")
		default:
			b.WriteRune(r)
		}
	}
	b.WriteRune('"')
	return b.String()
}

// runEmitAST parses every item of the input and prints it. Items that
// fail to parse are reported and skipped.
func runEmitAST(filename, src string) int {
	var errs []string
	lexh := func(line, col uint32, msg string) {
		errs = append(errs, fmt.Sprintf("%s:%d:%d: %s", filename, line, col, msg))
	}
	errh := func(pos syntax.Pos, msg string) {
		errs = append(errs, fmt.Sprintf("%s: %s", pos, msg))
	}

	buf := syntax.NewBuffer(src)
	buf.Terminate()
	ops := syntax.NewOpTable()
	p := syntax.NewParser(syntax.NewScanner(filename, buf, *tabWidth, lexh), ops, errh)

	for !p.AtEOF() {
		it, ok := p.ParseItem()
		if !ok {
			p.Skip()
			continue
		}
		if it == nil {
			continue
		}
		if d, ok := it.(*syntax.FuncDecl); ok {
			d.Edit.Commit()
		}
		switch {
		case *dumpAST:
			syntax.Dump(os.Stdout, it)
		case *astFormat == "json":
			if err := syntax.FprintJSON(os.Stdout, it); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				return 1
			}
		default:
			syntax.Fprint(os.Stdout, it)
		}
	}

	for _, e := range errs {
		fmt.Fprintln(os.Stderr, e)
	}
	if len(errs) > 0 {
		return 1
	}
	return 0
}

// runCompile compiles the input without running it, then prints the SSA,
// prints the LLVM IR or writes an object file as the flags ask.
func runCompile(filename, src string) int {
	cfg := config(filename)
	cfg.Externs = host.Standard(&host.TaskQueue{}, nil).Prototypes()
	if *output != "" {
		cfg.ObjectPath = *output
	}

	s := driver.NewSession(cfg)
	s.Reset(src)
	if !s.Compile() {
		return 1
	}

	if *emitIR {
		fmt.Print(ssa.SprintModule(s.Module()))
	}
	if *emitLL {
		if err := s.WriteLL(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}
	if *output != "" {
		if err := s.EmitObject(context.Background()); err != nil {
			return 1
		}
	}
	return 0
}

// runProgram compiles and runs the input against the standard routines,
// applying its effects a frame at a time, and returns once they have all
// been applied.
func runProgram(ctx context.Context, filename, src string) int {
	q := &host.TaskQueue{}
	loop := host.NewLoop(q, host.NewTextPresenter(os.Stdout), *budget)
	cfg := host.Configure(config(filename), host.Standard(q, os.Stderr))
	w := host.NewWorker(cfg, loop)

	ctx, cancel := context.WithCancel(ctx)
	errc := make(chan error, 1)
	go func() { errc <- host.Serve(ctx, w, *frame) }()

	code := 0
	if err := w.Submit(src); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		code = 1
	} else {
		select {
		case res := <-w.Results():
			// The session has already reported the error.
			if res.Err != nil {
				code = 1
			}
		case <-ctx.Done():
			code = 1
		}
	}

	if code == 0 {
		code = waitIdle(ctx, w, *frame)
	}
	cancel()
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return code
}

// waitIdle polls w until its program's effects have all been applied.
func waitIdle(ctx context.Context, w *host.Worker, interval time.Duration) int {
	t := time.NewTicker(interval)
	defer t.Stop()
	for w.Busy() {
		select {
		case <-ctx.Done():
			return 1
		case <-t.C:
		}
	}
	return 0
}

// runDoctor checks the toolchain and returns an exit code.
func runDoctor() int {
	fmt.Println("Kale Toolchain Doctor")
	fmt.Println("=====================")
	fmt.Println()

	goVersion := runtime.Version()
	fmt.Printf("Go:    %s", goVersion)
	if checkGoVersion(goVersion) {
		fmt.Println(" ✓")
	} else {
		fmt.Println(" ✗ (need 1.21+)")
		return 1
	}

	// Object files need llc or clang; running programs needs neither.
	ok := false
	for _, tool := range []string{"llc", "clang"} {
		v, found := checkTool(tool, "--version")
		fmt.Printf("%-6s %s", tool+":", v)
		if found {
			fmt.Println(" ✓")
			ok = true
		} else {
			fmt.Println(" (not found)")
		}
	}

	fmt.Println()
	if ok {
		fmt.Println("All tools available!")
		return 0
	}
	fmt.Println("Neither llc nor clang found: -o will not work.")
	return 1
}

// checkGoVersion returns true if the Go version is 1.21 or higher.
func checkGoVersion(v string) bool {
	if !strings.HasPrefix(v, "go") {
		return false
	}
	v = strings.TrimPrefix(v, "go")
	parts := strings.Split(v, ".")
	if len(parts) < 2 {
		return false
	}

	major := parts[0]
	minor := parts[1]
	if major == "1" {
		var minorNum int
		fmt.Sscanf(minor, "%d", &minorNum)
		return minorNum >= 21
	}
	return major >= "2"
}

// checkTool runs a tool with the given arguments and returns the first line of output.
func checkTool(name string, args ...string) (string, bool) {
	cmd := exec.Command(name, args...)
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}

	lines := strings.Split(string(out), "\n")
	if len(lines) > 0 {
		line := strings.TrimSpace(lines[0])
		if len(line) > 60 {
			line = line[:57] + "..."
		}
		return line, true
	}
	return "", false
}

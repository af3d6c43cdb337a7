// Command ashc is the compiler's command-line front end: a `compile`
// subcommand that turns a source file into a bytecode image and writes
// it to a file, an `ir` subcommand that prints the image's disassembly
// instead, and a `repl` subcommand for interactive use. Grounded on the teacher's flat
// argv[1]-dispatch CLI (cli/cli.go's Vida function) kept in the same
// shape here.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"

	"github.com/ashlang/ashc/internal/compiler"
	"github.com/ashlang/ashc/internal/image"
	"github.com/ashlang/ashc/internal/imagecache"
	"github.com/ashlang/ashc/internal/scanner"
	"github.com/ashlang/ashc/internal/token"
)

const (
	cCompile      = "compile"
	cCompileShort = "c"
	cIr           = "ir"
	cIrShort      = "i"
	cRepl         = "repl"
	cVersion      = "version"
	cVersionShort = "v"
	cHelp         = "help"
	cHelpShort    = "h"
)

const moduleExtension = ".ash"

func main() {
	argv := os.Args
	switch len(argv) {
	case 1:
		printHelp()
	default:
		switch argv[1] {
		case cCompile, cCompileShort:
			compileModule(argv[2:], false)
		case cIr, cIrShort:
			compileModule(argv[2:], true)
		case cRepl:
			runRepl()
		case cVersion, cVersionShort:
			printVersion()
		case cHelp, cHelpShort:
			printHelp()
		default:
			compileModule(argv[1:], false)
		}
	}
}

func printHelp() {
	fmt.Printf("ashc - bytecode compiler\n\n")
	fmt.Printf("Usage:\n  ashc [option] <module>.ash\n\n")
	fmt.Printf("  c/compile   Compile a module and write its image to <module>.ashc\n")
	fmt.Printf("  i/ir        Compile a module and print its disassembly\n")
	fmt.Printf("  repl        Start an interactive session\n")
	fmt.Printf("  v/version   Print version information\n")
	fmt.Printf("  h/help      Show this message\n")
}

func printVersion() {
	fmt.Printf("ashc 0.1.0\n")
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func compileModule(args []string, disassemble bool) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "error: no module given")
		os.Exit(1)
	}
	path := args[0]
	if !strings.HasSuffix(path, moduleExtension) {
		fmt.Fprintf(os.Stderr, "error: '%s' is not an %s module\n", path, moduleExtension)
		os.Exit(1)
	}
	abspath, err := filepath.Abs(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	src, err := os.ReadFile(abspath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	tokens, sectionNames, err := scanSource(string(src), abspath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := newLogger()
	img, diags, cacheHit := compileWithCache(log, tokens, sectionNames)
	for _, d := range diags {
		fmt.Fprintln(os.Stderr, d.String())
	}
	log.Debug().Bool("cache_hit", cacheHit).Msg("compile done")

	if disassemble {
		printDisassembly(img)
		return
	}
	outPath := strings.TrimSuffix(abspath, moduleExtension) + ".ashc"
	if err := writeImage(img, outPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", outPath)
}

func scanSource(src, sectionName string) ([]token.Token, []string, error) {
	sc := scanner.New(src, 0)
	tokens, err := sc.ScanAll()
	if err != nil {
		return nil, nil, err
	}
	return tokens, []string{sectionName}, nil
}

func compileWithCache(log zerolog.Logger, tokens []token.Token, sectionNames []string) (image.Image, []compiler.Diagnostic, bool) {
	cachePath := filepath.Join(os.TempDir(), "ashc-image-cache.db")
	cache, err := imagecache.Open(cachePath)
	if err == nil {
		defer cache.Close()
		key := imagecache.Key(tokens)
		if img, ok, _ := cache.Get(key); ok {
			return img, nil, true
		}
		d := compiler.NewDriver(log)
		res, cerr := d.Compile(tokens, sectionNames, compiler.Options{})
		if cerr != nil {
			fmt.Fprintln(os.Stderr, cerr)
			os.Exit(1)
		}
		cache.Put(key, res.Image)
		return res.Image, res.Diagnostics, false
	}
	d := compiler.NewDriver(log)
	res, cerr := d.Compile(tokens, sectionNames, compiler.Options{})
	if cerr != nil {
		fmt.Fprintln(os.Stderr, cerr)
		os.Exit(1)
	}
	return res.Image, res.Diagnostics, false
}

func runRepl() {
	rl, err := readline.New("ash> ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rl.Close()

	log := newLogger()
	fmt.Println("ashc interactive session (Ctrl-D to exit)")
	for {
		line, err := rl.Readline()
		if err != nil {
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		tokens, err := scanner.New(line, 0).ScanAll()
		if err != nil {
			fmt.Println(err)
			continue
		}
		d := compiler.NewDriver(log)
		res, cerr := d.Compile(tokens, []string{"<repl>"}, compiler.Options{})
		if cerr != nil {
			fmt.Println(cerr)
			continue
		}
		for _, diag := range res.Diagnostics {
			fmt.Println(diag.String())
		}
		printDisassembly(res.Image)
	}
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mirtext/mirtext/pkg/backend"
	"github.com/mirtext/mirtext/pkg/cli"
	"github.com/mirtext/mirtext/pkg/config"
	"github.com/mirtext/mirtext/pkg/handlers"
	"github.com/mirtext/mirtext/pkg/layout"
	"github.com/mirtext/mirtext/pkg/lower"
	"github.com/mirtext/mirtext/pkg/tree"
	"github.com/mirtext/mirtext/pkg/util"
	"github.com/tebeka/atexit"
)

func main() {
	app := cli.NewApp("mirc")
	app.Synopsis = "[options] <tree.yaml>"
	app.Description = "Lowers a typed syntax tree into MIR text in a single pass and hands the result to a backend."
	app.Repository = "<https://github.com/mirtext/mirtext>"

	var (
		outFile     string
		backendName string
		layoutFiles []string
		stackAlign  int
		dumpTree    bool
		verbose     bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "a.mir", "Place the output into <file>; '-' writes to stdout.", "file")
	fs.String(&backendName, "backend", "b", "text", "Backend that consumes the MIR text.", "backend")
	fs.List(&layoutFiles, "layout", "l", []string{}, "Read a class layout blob from <file>.", "file")
	fs.Int(&stackAlign, "stack-align", "", 16, "Alignment of stack allocations in bytes.", "bytes")
	fs.Bool(&dumpTree, "dump-tree", "d", false, "Dump the decoded tree with its node ids and exit.")
	fs.Bool(&verbose, "verbose", "v", false, "Report pipeline progress on stderr.")

	cfg := config.NewConfig()
	entries := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		cfg.ApplyFlagGroups(entries)
		if err := cfg.SetStackAlignment(stackAlign); err != nil {
			util.Error("%v", err)
		}
		if len(args) != 1 {
			util.Error("expected exactly one tree file, got %d", len(args))
		}

		progress := func(format string, a ...interface{}) {
			if verbose {
				util.Info(format, a...)
			}
		}

		progress("Decoding tree '%s'...", args[0])
		root, err := readTree(args[0])
		if err != nil {
			util.Error("%v", err)
		}
		if dumpTree {
			fmt.Print(tree.Dump(root))
			return nil
		}
		if directives, ok := root.Property("Directives"); ok {
			if err := cfg.ApplyFlags(directives); err != nil {
				util.Warn(cfg, config.WarnExtra, "ignoring tree directives: %v", err)
			}
		}

		s := lower.NewState(cfg, handlers.NewInstructionManager())
		for _, f := range layoutFiles {
			progress("Reading layout '%s'...", f)
			if err := loadLayout(s, cfg, f); err != nil {
				util.Error("%v", err)
			}
		}

		progress("Lowering %d node(s)...", countNodes(root))
		text, err := s.Lower(root)
		if err != nil {
			var lerr *lower.Error
			if verbose && errors.As(err, &lerr) && lerr.Dump != "" {
				fmt.Fprint(os.Stderr, lerr.Dump)
			}
			util.Error("lowering failed: %v", err)
		}
		if n := s.Data.Nesting(); n != 0 {
			util.Warn(cfg, config.WarnOpenClass, "%d class definition(s) still open after lowering", n)
		}
		for _, id := range s.Data.Unused() {
			util.Warn(cfg, config.WarnUnusedClass, "class '%s' is never used", id)
		}

		progress("Generating with '%s' backend...", backendName)
		be, err := backend.New(backendName)
		if err != nil {
			util.Error("%v", err)
		}
		out, err := be.Generate(text, cfg)
		if err != nil {
			util.Error("backend failed: %v", err)
		}

		if outFile == "-" {
			_, err = os.Stdout.Write(out.Bytes())
			return err
		}
		atexit.Register(func() { os.Remove(outFile) })
		if err := os.WriteFile(outFile, out.Bytes(), 0o644); err != nil {
			util.Error("failed to write '%s': %v", outFile, err)
		}
		progress("Wrote '%s'.", outFile)
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		atexit.Exit(1)
	}
}

func readTree(path string) (*tree.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	root, err := tree.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}

func loadLayout(s *lower.State, cfg *config.Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	classes, err := layout.Decode(string(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if len(classes) == 0 {
		util.Warn(cfg, config.WarnEmptyLayout, "layout '%s' contains no classes", path)
	}
	return s.Data.SetDataLayout(string(raw))
}

func countNodes(n *tree.Node) int {
	count := 1
	for _, c := range n.Children {
		count += countNodes(c)
	}
	return count
}

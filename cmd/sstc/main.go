package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xplshn/sstc/pkg/ast"
	"github.com/xplshn/sstc/pkg/cli"
	"github.com/xplshn/sstc/pkg/codegen"
	"github.com/xplshn/sstc/pkg/config"
	"github.com/xplshn/sstc/pkg/lexer"
	"github.com/xplshn/sstc/pkg/parser"
	"github.com/xplshn/sstc/pkg/util"
)

type options struct {
	output     string
	stage      string
	std        string
	configPath string
	dot        bool
	verbose    bool
	watch      bool
}

func main() {
	app := cli.NewApp("sstc")
	app.Synopsis = "[options] <input.sst> ..."
	app.Description = "Builds the static single assignment form of SST classes. Each input holds one class; its procedures are lowered to basic blocks with phi instructions placed at every join."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/sstc>"
	app.Since = 2025
	app.Version = config.Version

	var opts options
	fs := app.FlagSet
	fs.String(&opts.output, "output", "o", "-", "Place the output into <file> ('-' for standard output).", "file")
	fs.Choice(&opts.stage, "stage", "s", "ssa", []string{"scan", "parse", "ssa"}, "Stop after the given stage and print its result.")
	fs.Bool(&opts.dot, "dot", "", false, "Print the SSA graph in Graphviz dot format.")
	fs.String(&opts.std, "std", "", "SSTx", "Specify language standard (SST, SSTx).", "std")
	fs.String(&opts.configPath, "config", "c", "", "Read project settings from <file> instead of ./"+config.ProjectFileName+".", "file")
	fs.Bool(&opts.verbose, "verbose", "v", false, "Log compiler progress and every phi protocol step.")
	fs.Bool(&opts.watch, "watch", "w", false, "Recompile whenever an input file changes.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputs []string) error {
		logrus.SetOutput(os.Stderr)
		logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		if opts.verbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.WarnLevel)
		}

		proj, err := loadProject(opts.configPath, fs.Changed("config"))
		if err != nil {
			util.Report(err)
			return err
		}
		if err := configure(cfg, proj, &opts, fs, warningFlags, featureFlags); err != nil {
			util.Report(err)
			return err
		}
		if len(inputs) == 0 && proj != nil {
			inputs = proj.Sources
		}
		if len(inputs) == 0 {
			err := errors.New("no input files specified")
			util.Report(err)
			return err
		}
		logrus.WithField("std", cfg.StdName).Debugf("settings:\n\t%s", strings.Join(cfg.Describe(), "\n\t"))

		if opts.watch {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			build := func() { util.Report(run(cfg, &opts, inputs)) }
			build()
			return watch(ctx, inputs, build)
		}
		if err := run(cfg, &opts, inputs); err != nil {
			util.Report(err)
			return err
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// loadProject reads the project file named by --config, or ./sstc.toml when
// it exists. A missing default file is not an error.
func loadProject(path string, explicit bool) (*config.Project, error) {
	if !explicit {
		path = config.ProjectFileName
		if _, err := os.Stat(path); err != nil {
			return nil, nil
		}
	}
	p, err := config.LoadProject(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for i, src := range p.Sources {
		if !filepath.IsAbs(src) {
			p.Sources[i] = filepath.Join(dir, src)
		}
	}
	logrus.WithField("path", path).Debug("loaded project file")
	return p, nil
}

// configure settles the configuration: the standard first, then the project
// file, then the flags given on the command line.
func configure(cfg *config.Config, proj *config.Project, opts *options, fs *cli.FlagSet, warnings, features []cli.FlagGroupEntry) error {
	if fs.Changed("Wpedantic") {
		cfg.SetWarning(config.WarnPedantic, true)
	}
	switch {
	case proj != nil:
		if fs.Changed("std") || proj.Std == "" {
			proj.Std = opts.std
		}
		if err := cfg.ApplyProject(proj); err != nil {
			return err
		}
	default:
		if err := cfg.ApplyStd(opts.std); err != nil {
			return err
		}
	}
	cfg.ApplyFlagGroups(fs, warnings, features)
	return nil
}

// run compiles every input and writes the selected stage to the output.
func run(cfg *config.Config, opts *options, inputs []string) (err error) {
	w := io.Writer(os.Stdout)
	if opts.output != "-" {
		f, cerr := os.Create(opts.output)
		if cerr != nil {
			return errors.Wrap(cerr, "cannot create output file")
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	records := make([]util.SourceFileRecord, len(inputs))
	for i, path := range inputs {
		content, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "could not read file '%s'", path)
		}
		records[i] = util.SourceFileRecord{Name: path, Content: []rune(string(content))}
	}
	util.SetSourceFiles(records)

	for i, rec := range records {
		if err := compile(cfg, opts, i, rec, w); err != nil {
			return err
		}
	}
	return nil
}

func compile(cfg *config.Config, opts *options, fileIndex int, rec util.SourceFileRecord, w io.Writer) error {
	log := logrus.WithField("file", rec.Name)

	tokens := lexer.NewLexer(rec.Content, fileIndex).Tokenize()
	if opts.stage == "scan" {
		for _, tok := range tokens {
			fmt.Fprintln(w, tok)
		}
		return nil
	}

	log.Infof("parsing %d token(s)", len(tokens))
	root, err := parser.NewParser(tokens, cfg).Parse()
	if err != nil {
		return err
	}
	if opts.stage == "parse" {
		writeOutline(w, root)
		return nil
	}

	log.Info("building SSA form")
	cg := codegen.NewContext(cfg)
	prog, err := cg.GenerateIR(root)
	if err != nil {
		return err
	}
	if opts.dot {
		return prog.WriteDot(w)
	}
	return prog.WriteText(w)
}

// writeOutline prints one line per AST node, indented by depth.
func writeOutline(w io.Writer, root *ast.Node) {
	ast.Walk(root, func(n *ast.Node) bool {
		depth := 0
		for p := n.Parent; p != nil; p = p.Parent {
			depth++
		}
		fmt.Fprintf(w, "%s%s", strings.Repeat("  ", depth), n.Type)
		switch d := n.Data.(type) {
		case ast.NumberNode:
			fmt.Fprintf(w, " %d", d.Value)
		case ast.IdentNode:
			fmt.Fprintf(w, " %s", d.Name)
		case ast.BinaryOpNode:
			fmt.Fprintf(w, " %s", d.Op)
		case ast.CallNode:
			fmt.Fprintf(w, " %s", d.Name)
		case ast.AssignNode:
			fmt.Fprintf(w, " %s", d.Name)
		case ast.ClassNode:
			fmt.Fprintf(w, " %s", d.Name)
		case ast.ConstDeclNode:
			fmt.Fprintf(w, " %s", d.Name)
		case ast.VarDeclNode:
			fmt.Fprintf(w, " %s", d.Name)
		case ast.ProcDeclNode:
			ret := "void"
			if d.HasResult {
				ret = "int"
			}
			fmt.Fprintf(w, " %s %s", ret, d.Name)
		}
		fmt.Fprintln(w)
		return true
	})
}

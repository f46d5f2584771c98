package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/romshark/scopei18n"
	"github.com/romshark/scopei18n/internal/pipeline"
)

func main() {
	if err := run(os.Args, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "ERR:", err)
		os.Exit(1)
	}
}

var (
	ErrSourceErrors = errors.New("source files contain errors")
	ErrReadingInput = errors.New("reading input")
)

type cli struct {
	stdin          io.Reader
	stdout, stderr io.Writer
	quiet, verbose bool
}

func run(osArgs []string, stdin io.Reader, stdout, stderr io.Writer) error {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}
	root := c.rootCommand()
	root.SetArgs(osArgs[1:])
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(context.Background())
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "scopei18n",
		Short:         "Scope component translation messages to their files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&c.quiet, "quiet", "q", false,
		"disable all console logging")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false,
		"enable verbose console logging")
	root.AddCommand(
		c.blockCommand(),
		c.rewriteCommand(),
		c.buildCommand(),
		c.idCommand(),
	)
	return root
}

func (c *cli) logger() zerolog.Logger {
	if c.quiet {
		return zerolog.Nop()
	}
	level := zerolog.InfoLevel
	if c.verbose {
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: c.stderr, NoColor: true, TimeFormat: time.TimeOnly}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// absPaths makes root and file absolute so that the identifier of file
// doesn't depend on how either was specified.
func absPaths(root, file string) (absRoot, absFile string, err error) {
	if absRoot, err = filepath.Abs(root); err != nil {
		return "", "", err
	}
	if absFile, err = filepath.Abs(file); err != nil {
		return "", "", err
	}
	return absRoot, absFile, nil
}

func (c *cli) readInput() ([]byte, error) {
	b, err := io.ReadAll(c.stdin)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadingInput, err)
	}
	return b, nil
}

func (c *cli) blockCommand() *cobra.Command {
	var (
		root, file string
		opts       scopei18n.BlockOptions
		noScope    bool
	)
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Transform a translation block read from stdin",
		Long: "Decode the translation block read from stdin, scope its messages " +
			"to the owning file and print the generated module",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := c.readInput()
			if err != nil {
				return err
			}
			var reg *scopei18n.Registry
			if !noScope {
				reg = scopei18n.NewRegistry()
			}
			absRoot, absFile, err := absPaths(root, file)
			if err != nil {
				return err
			}
			code, err := scopei18n.ProcessTranslationBlock(
				content, opts, reg, scopei18n.Identity{Root: absRoot, File: absFile},
			)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			_, err = io.WriteString(c.stdout, code)
			return err
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "project root directory")
	cmd.Flags().StringVar(&file, "file", "", "file owning the block")
	cmd.Flags().StringVar(&opts.Lang, "lang", "", "block language: json, json5, yaml, toml")
	cmd.Flags().StringVar(&opts.Locale, "locale", "", "locale of a single-locale block")
	cmd.Flags().BoolVar(&noScope, "no-scope", false, "don't scope messages")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) rewriteCommand() *cobra.Command {
	var (
		root, file string
		scan       scopei18n.RewriteOptions
	)
	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Rewrite the references in compiled component code read from stdin",
		Long: "Load the translation blocks of the component file and rewrite " +
			"references to their paths in the compiled code read from stdin",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			absRoot, absFile, err := absPaths(root, file)
			if err != nil {
				return err
			}
			h := pipeline.NewHost(absRoot,
				pipeline.WithScan(scan), pipeline.WithLogger(c.logger()))
			if _, _, err := h.LoadComponent(absFile); err != nil {
				return fmt.Errorf("loading component: %w", err)
			}
			src, err := c.readInput()
			if err != nil {
				return err
			}
			out, err := h.Rewrite(cmd.Context(), absFile, src)
			if err != nil {
				return err
			}
			_, err = c.stdout.Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "project root directory")
	cmd.Flags().StringVar(&file, "file", "", "component file the code was compiled from")
	cmd.Flags().StringSliceVar(&scan.ScopeIdents, "scope-ident", nil,
		"identifiers referring to the component instance (default _vm)")
	cmd.Flags().StringSliceVar(&scan.ElementFactories, "element-factory", nil,
		"functions creating virtual nodes (default _c)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (c *cli) buildCommand() *cobra.Command {
	var (
		root, out string
		jobs      int
		noScope   bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Transform all components of a project",
		Long: "Transform the translation blocks, scripts and precompiled render " +
			"modules of all components under the root and write them to the " +
			"output directory",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			opts := []pipeline.Option{
				pipeline.WithJobs(jobs),
				pipeline.WithLogger(c.logger()),
			}
			if noScope {
				opts = append(opts, pipeline.WithoutScoping())
			}
			h := pipeline.NewHost(root, opts...)
			r, err := h.Build(cmd.Context(), pipeline.DirSink(out))
			if err != nil {
				return err
			}

			if len(r.Errors) > 0 {
				fmt.Fprintf(c.stderr, "SOURCE ERRORS (%d):\n", len(r.Errors))
				for _, e := range r.Errors {
					fmt.Fprintf(c.stderr, " %s\n", e.Error())
				}
				return ErrSourceErrors
			}

			if !c.quiet {
				w := c.stderr
				fmt.Fprintf(w, "components: %d\n", len(r.Components))
				fmt.Fprintf(w, "blocks/paths: %d/%d\n",
					r.Stats.BlocksTotal.Load(), r.Stats.PathsTotal.Load())
				fmt.Fprintf(w, "references: %d (rewritten: %d)\n",
					r.Stats.References(), r.Stats.Rewrites.Load())
				fmt.Fprintf(w, "locales: %v\n", r.Locales)
				fmt.Fprintf(w, "time total: %s\n", time.Since(start).String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "project root directory")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "files processed concurrently (default CPUs)")
	cmd.Flags().BoolVar(&noScope, "no-scope", false, "don't scope messages")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (c *cli) idCommand() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "id [files...]",
		Short: "Print the identifiers of files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, file := range args {
				absRoot, absFile, err := absPaths(root, file)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "%s\t%s\n", scopei18n.FileID(absRoot, absFile), file)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "project root directory")
	return cmd
}

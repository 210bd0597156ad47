// Package main provides the semremodel binary entry point.
// Semremodel regroups the stated attribute relationships of concepts in a
// terminology snapshot so they conform to logical templates.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/semremodel/batch"
	"github.com/c360studio/semremodel/config"
	"github.com/c360studio/semremodel/export"
	"github.com/c360studio/semremodel/graph"
	"github.com/c360studio/semremodel/remodel"
	"github.com/c360studio/semremodel/storage"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semremodel"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
	logger     *slog.Logger
}

func (g *globals) load() (*config.Config, error) {
	cfg, err := config.NewLoader(g.logger).Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Template-driven relationship group remodeling",
		Long: `Semremodel rewrites the stated attribute relationships of concepts so
that their role groups conform to a logical template, using the inferred
(or stated) view of each concept as the reference.

Every concept yields an outcome: changed, unchanged, or rejected with the
reason. Outcomes are audited through slog and optionally NATS, and can be
recorded to SQLite or a NATS KV bucket.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			g.logger = newLogger(cmd.ErrOrStderr(), g.logLevel)
			slog.SetDefault(g.logger)
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(runCmd(g), templatesCmd(g), exportCmd(g))

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func newLogger(w io.Writer, logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func shutdown(app *App, logger *slog.Logger) {
	if err := app.Shutdown(); err != nil {
		logger.Warn("Shutdown failed", "error", err)
	}
}

func runCmd(g *globals) *cobra.Command {
	var (
		requestsPath string
		templateName string
		removals     []string
		commit       bool
		format       string
	)

	cmd := &cobra.Command{
		Use:   "run [concept...]",
		Short: "Remodel concepts against a template",
		Long: `Remodel the named concepts, and every request in --requests, against
their templates. Without --commit the outcomes are reported and recorded but
the snapshot is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unsupported output format: %s", format)
			}
			rf := &storage.RequestFile{}
			if requestsPath != "" {
				loaded, err := storage.LoadRequestFile(requestsPath)
				if err != nil {
					return err
				}
				rf = loaded
			}
			removes, err := parseRemovals(removals)
			if err != nil {
				return err
			}
			for _, id := range args {
				rf.Requests = append(rf.Requests, storage.RequestRecord{Concept: id, Template: templateName, Remove: removes})
			}
			if templateName != "" && rf.Template == "" {
				rf.Template = templateName
			}
			if len(rf.Requests) == 0 {
				return fmt.Errorf("no concepts to remodel")
			}

			cfg, err := g.load()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app := NewApp(cfg, g.logger)
			defer shutdown(app, g.logger)
			if err := app.Start(ctx, commit); err != nil {
				return err
			}

			reqs, err := rf.Resolve(app.store, app.templates)
			if err != nil {
				return fmt.Errorf("resolve requests: %w", err)
			}

			sum, runErr := app.Driver().Run(ctx, reqs)
			if sum != nil {
				if err := printSummary(cmd.OutOrStdout(), format, sum); err != nil {
					return err
				}
			}
			if err := app.WriteMetrics(); err != nil {
				g.logger.Warn("Failed to write metrics", "path", cfg.Metrics.Textfile, "error", err)
			}
			if runErr != nil {
				return runErr
			}
			return app.Persist()
		},
	}

	cmd.Flags().StringVarP(&requestsPath, "requests", "r", "", "YAML request file")
	cmd.Flags().StringVarP(&templateName, "template", "t", "", "Template for concepts named on the command line")
	cmd.Flags().StringArrayVar(&removals, "remove", nil, "Drop a type=target pair from every group (repeatable)")
	cmd.Flags().BoolVar(&commit, "commit", false, "Write changed concepts back to the snapshot")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")

	return cmd
}

func parseRemovals(specs []string) ([]storage.RemovalRecord, error) {
	out := make([]storage.RemovalRecord, 0, len(specs))
	for _, s := range specs {
		typ, target, ok := strings.Cut(s, "=")
		if !ok || typ == "" || target == "" {
			return nil, fmt.Errorf("invalid removal %q: want type=target", s)
		}
		out = append(out, storage.RemovalRecord{Type: typ, Target: target})
	}
	return out, nil
}

type summaryJSON struct {
	RunID     string                  `json:"run_id"`
	Changed   int                     `json:"changed"`
	Unchanged int                     `json:"unchanged"`
	Rejected  int                     `json:"rejected"`
	Mutations int                     `json:"mutations"`
	Outcomes  []storage.OutcomeRecord `json:"outcomes"`
}

func printSummary(w io.Writer, format string, sum *batch.Summary) error {
	if format == "json" {
		doc := summaryJSON{
			RunID:     sum.RunID,
			Changed:   sum.Changed,
			Unchanged: sum.Unchanged,
			Rejected:  sum.Rejected,
			Mutations: sum.Mutations,
			Outcomes:  []storage.OutcomeRecord{},
		}
		for _, out := range sum.Outcomes {
			if out != nil {
				doc.Outcomes = append(doc.Outcomes, storage.NewOutcomeRecord(sum.RunID, out))
			}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	for _, out := range sum.Outcomes {
		if out == nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", out.ConceptID, out.Status, out.Summary())
		if out.Status == remodel.Changed {
			fmt.Fprintf(w, "\tbefore: %s\n\tafter:  %s\n", out.Before, out.After)
		}
	}
	fmt.Fprintf(w, "run %s: %d changed, %d unchanged, %d rejected, %d mutations\n",
		sum.RunID, sum.Changed, sum.Unchanged, sum.Rejected, sum.Mutations)
	return nil
}

func templatesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the loaded templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			app := NewApp(cfg, g.logger)
			defer shutdown(app, g.logger)
			if err := app.Start(cmd.Context(), false); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range app.templates.Names() {
				tmpl, err := app.templates.Get(name)
				if err != nil {
					continue
				}
				fmt.Fprintf(out, "%s\t%d groups\t%s\n", name, tmpl.Len()-1, app.templates.Source(name))
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Reload templates as files change until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app := NewApp(cfg, g.logger)
			defer shutdown(app, g.logger)
			if err := app.Start(ctx, false); err != nil {
				return err
			}
			if err := app.Watch(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching %s (%d templates)\n", cfg.Templates.Dir, app.templates.Len())
			for {
				select {
				case <-ctx.Done():
					return nil
				case err, ok := <-app.watcher.Reloads():
					if !ok {
						return nil
					}
					if err != nil {
						fmt.Fprintf(out, "reload failed: %v\n", err)
						continue
					}
					fmt.Fprintf(out, "reloaded %d templates\n", app.templates.Len())
				}
			}
		},
	})

	return cmd
}

func exportCmd(g *globals) *cobra.Command {
	var (
		format   string
		char     string
		concepts []string
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export concept definitions as RDF or expressions",
		RunE: func(cmd *cobra.Command, args []string) error {
			characteristic, err := graph.ParseCharacteristic(char)
			if err != nil {
				return err
			}
			exporter, err := export.NewExporter(export.Format(format), characteristic)
			if err != nil {
				return err
			}

			cfg, err := g.load()
			if err != nil {
				return err
			}
			app := NewApp(cfg, g.logger)
			defer shutdown(app, g.logger)
			if err := app.OpenSnapshot(cmd.Context()); err != nil {
				return err
			}

			selected := app.store.Concepts()
			if len(concepts) > 0 {
				selected = selected[:0:0]
				for _, id := range concepts {
					c, ok := app.store.Concept(id)
					if !ok {
						return fmt.Errorf("%w: %s", graph.ErrUnknownConcept, id)
					}
					selected = append(selected, c)
				}
			}

			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			return exporter.Export(w, selected)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatExpression), "Export format (turtle, ntriples, expression)")
	cmd.Flags().StringVar(&char, "characteristic", "stated", "Relationships to export (stated, inferred)")
	cmd.Flags().StringSliceVar(&concepts, "concept", nil, "Concepts to export (default all)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")

	return cmd
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-formengine"
	"github.com/goliatone/go-formengine/pkg/options"
	"github.com/goliatone/go-formengine/pkg/renderers/tui"
	"github.com/goliatone/go-formengine/pkg/schema/loader"
)

func main() {
	schemaPath := flag.String("schema", "form.yaml", "form schema document (YAML or JSON)")
	output := flag.String("output", "json", "output format: json, pretty or form")
	outFile := flag.String("out", "", "output file (stdout if empty)")
	attempts := flag.Int("attempts", 3, "passes over an invalid page before giving up")
	verbose := flag.Bool("v", false, "log engine activity to stderr")
	lists := map[string]string{}
	flag.Func("options", "option list as name=path, repeatable", func(raw string) error {
		name, path, ok := strings.Cut(raw, "=")
		if !ok || name == "" || path == "" {
			return fmt.Errorf("want name=path, got %q", raw)
		}
		lists[name] = path
		return nil
	})
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logger, *schemaPath, lists, *output, *outFile, *attempts); err != nil {
		if errors.Is(err, tui.ErrAborted) {
			fmt.Fprintln(os.Stderr, "aborted")
			os.Exit(130)
		}
		logger.Error("formengine-cli failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, schemaPath string, lists map[string]string, output, outFile string, attempts int) error {
	form, err := loader.LoadFile(os.DirFS(filepath.Dir(schemaPath)), filepath.Base(schemaPath))
	if err != nil {
		return err
	}
	reg := options.NewRegistry()
	for name, path := range lists {
		if err := reg.LoadFile(os.DirFS(filepath.Dir(path)), name, filepath.Base(path)); err != nil {
			return err
		}
	}
	pages, err := reg.Resolve(form.Pages)
	if err != nil {
		return fmt.Errorf("%s: %w", form.ID, err)
	}
	e, err := formengine.Build(pages, formengine.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build %s: %w", form.ID, err)
	}
	logger.Debug("form loaded", "formId", form.ID, "pages", len(form.Pages))

	runner, err := tui.New(
		tui.WithPromptDriver(tui.NewSurveyDriver(os.Stdout)),
		tui.WithOutputFormat(tui.OutputFormat(output)),
		tui.WithMaxAttempts(attempts),
		tui.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	if form.Title != "" {
		fmt.Println(form.Title)
	}
	result, err := runner.Run(ctx, e)
	if err != nil {
		return err
	}

	if outFile != "" {
		if err := os.WriteFile(outFile, result, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("Answers written to %s\n", outFile)
		return nil
	}
	fmt.Println(string(result))
	return nil
}

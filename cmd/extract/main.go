// Command extract prints the transactions found in bank statements as JSON.
// It runs the same pipeline as the API without a database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/FACorreiaa/familia-financas/internal/domain/statement/extractor"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/rules"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/service"
	"github.com/FACorreiaa/familia-financas/pkg/pdftext"
)

type options struct {
	file       string
	password   string
	rulesFile  string
	permissive bool
	text       bool
	workers    int
	verbose    bool
	paths      []string
}

type output struct {
	File         string           `json:"file"`
	BankFormat   string           `json:"bank_format,omitempty"`
	Transactions any              `json:"transactions,omitempty"`
	Stats        *extractor.Stats `json:"stats,omitempty"`
	TextLength   int              `json:"text_length,omitempty"`
	Error        string           `json:"error,omitempty"`
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed, err := run(ctx, opts, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "extract:", err)
		os.Exit(1)
	}
	if failed {
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.file, "file", "", "statement to read (PDF, or text with -text)")
	fs.StringVar(&opts.password, "password", "", "password for encrypted PDFs")
	fs.StringVar(&opts.rulesFile, "rules", "", "YAML rule set (defaults to the built-in rules)")
	fs.BoolVar(&opts.permissive, "permissive", false, "accept descriptions up to 500 characters")
	fs.BoolVar(&opts.text, "text", false, "treat inputs as already extracted text")
	fs.IntVar(&opts.workers, "workers", 0, "documents processed in parallel (0 = GOMAXPROCS)")
	fs.BoolVar(&opts.verbose, "v", false, "log extraction details to stderr")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: extract [flags] [-file] statement.pdf [more.pdf ...]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if opts.file != "" {
		opts.paths = append(opts.paths, opts.file)
	}
	opts.paths = append(opts.paths, fs.Args()...)
	if len(opts.paths) == 0 {
		fs.Usage()
		return nil, flag.ErrHelp
	}
	return opts, nil
}

func run(ctx context.Context, opts *options, stdout, stderr io.Writer) (bool, error) {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	r, err := loadRules(opts)
	if err != nil {
		return false, err
	}
	ext, err := extractor.New(r)
	if err != nil {
		return false, err
	}
	svc := service.NewStatementService(nil, pdftext.NewReader(), ext, service.Config{Workers: opts.workers}, logger)

	docs := make([]service.Document, 0, len(opts.paths))
	for _, path := range opts.paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return false, fmt.Errorf("read %s: %w", path, err)
		}
		doc := service.Document{Name: path, Password: opts.password}
		if opts.text {
			doc.Text = string(data)
		} else {
			doc.Data = data
		}
		docs = append(docs, doc)
	}

	items, err := svc.ExtractBatch(ctx, docs)
	if err != nil {
		return false, err
	}

	failed := false
	results := make([]output, 0, len(items))
	for _, item := range items {
		out := output{File: item.Name}
		if item.Err != nil {
			failed = true
			out.Error = item.Err.Error()
			logger.Error("extraction failed", slog.String("file", item.Name), slog.Any("error", item.Err))
		} else {
			stats := item.Result.Stats
			out.BankFormat = item.Result.Strategy
			out.Transactions = item.Result.Transactions
			out.Stats = &stats
			out.TextLength = item.Result.TextLength
		}
		results = append(results, out)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if len(results) == 1 {
		err = enc.Encode(results[0])
	} else {
		err = enc.Encode(results)
	}
	if err != nil {
		return false, fmt.Errorf("write output: %w", err)
	}
	return failed, nil
}

func loadRules(opts *options) (*rules.Rules, error) {
	switch {
	case opts.rulesFile != "":
		return rules.Load(opts.rulesFile)
	case opts.permissive:
		return rules.Permissive(), nil
	default:
		return rules.Default(), nil
	}
}

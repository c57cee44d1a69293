package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/dict2anki/dict2anki/internal/config"
	"github.com/dict2anki/dict2anki/internal/extractor"
	"github.com/dict2anki/dict2anki/internal/extractor/cambridge"
	"github.com/dict2anki/dict2anki/internal/fetch"
	"github.com/dict2anki/dict2anki/internal/headers"
)

// extractors maps extractor names to constructors.
var extractors = map[string]func(client *fetch.Client, mediaPath string) extractor.Extractor{
	cambridge.Name: func(client *fetch.Client, mediaPath string) extractor.Extractor {
		return cambridge.New(client, mediaPath)
	},
}

type options struct {
	inputFile   string
	outputPath  string
	extractor   string
	debug       bool
	concurrency int
}

func main() {
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	opts, err := parseFlags(cfg, os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "dict2anki:", err)
		os.Exit(2)
	}
	if opts.debug {
		level.Set(slog.LevelDebug)
	}

	words, err := readWords(opts.inputFile)
	if err != nil {
		slog.Error("cannot read words", "file", opts.inputFile, "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, opts, words)
	stop()
	if err != nil {
		slog.Error("dict2anki failed", "err", err)
		os.Exit(1)
	}
}

func parseFlags(cfg *config.Cfg, args []string, output io.Writer) (*options, error) {
	opts := &options{
		outputPath:  cfg.OutputPath,
		extractor:   cfg.Extractor,
		debug:       cfg.Debug,
		concurrency: cfg.Concurrency,
	}

	fs := flag.NewFlagSet("dict2anki", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(output, "dict2anki is a tool converting words to Anki cards.")
		fmt.Fprintln(output, "\nUsage: dict2anki -i FILE [-o PATH] [-e DICT] [-c N] [-d]")
		fs.PrintDefaults()
	}
	for _, name := range []string{"i", "input-file"} {
		fs.StringVar(&opts.inputFile, name, "", `read words from FILE split by lines, ignoring lines starting with "#"`)
	}
	for _, name := range []string{"o", "output-path"} {
		fs.StringVar(&opts.outputPath, name, opts.outputPath, "set output `PATH`")
	}
	for _, name := range []string{"e", "extractor"} {
		fs.StringVar(&opts.extractor, name, opts.extractor, "available extractors: "+strings.Join(extractorNames(), ", "))
	}
	for _, name := range []string{"c", "concurrency"} {
		fs.IntVar(&opts.concurrency, name, opts.concurrency, "look up `N` words at once")
	}
	for _, name := range []string{"d", "debug"} {
		fs.BoolVar(&opts.debug, name, opts.debug, "show debug info")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch {
	case opts.inputFile == "":
		return nil, errors.New("an input file is required (-i FILE)")
	case extractors[opts.extractor] == nil:
		return nil, fmt.Errorf("unknown extractor %q, available: %s", opts.extractor, strings.Join(extractorNames(), ", "))
	case opts.concurrency < 1:
		return nil, fmt.Errorf("concurrency must be positive, got %d", opts.concurrency)
	}
	return opts, nil
}

func extractorNames() []string {
	names := make([]string, 0, len(extractors))
	for name := range extractors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func readWords(path string) ([]string, error) {
	slog.Debug("loading words", "file", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	words, err := loadWords(f)
	if err != nil {
		return nil, err
	}
	slog.Debug("words loaded", "count", len(words))
	return words, nil
}

// loadWords reads one word per line, skipping blank lines and lines starting
// with '#'.
func loadWords(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, sc.Err()
}

func run(ctx context.Context, cfg *config.Cfg, opts *options, words []string) error {
	pool := headers.Default()
	if len(cfg.UserAgents) > 0 {
		var err error
		if pool, err = headers.NewPool(cfg.UserAgents); err != nil {
			return err
		}
	}
	client := fetch.New(
		fetch.WithRetry(cfg.Retry),
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithHeaders(pool),
	)

	outPath := filepath.Join(opts.outputPath, opts.extractor)
	ex := extractors[opts.extractor](client, extractor.MediaPath(outPath))
	slog.Info("starting dict2anki",
		"extractor", ex.Name(),
		"output", outPath,
		"words", len(words),
		"concurrency", opts.concurrency,
		"userAgents", pool.Len(),
	)

	gen := extractor.NewGenerator(ex, outPath, extractor.WithConcurrency(opts.concurrency))
	if _, err := gen.GenerateFrontTemplate(); err != nil {
		return err
	}
	if _, err := gen.GenerateBackTemplate(); err != nil {
		return err
	}
	if _, err := gen.GenerateStyling(ctx); err != nil {
		return err
	}
	_, err := gen.GenerateCards(ctx, words)
	return err
}

package extractor

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dict2anki/dict2anki/internal/fsutil"
	"github.com/dict2anki/dict2anki/internal/progress"
)

// Output layout, relative to the output path.
const (
	MediaFolder       = "collection.media"
	FrontTemplateFile = "front-template.txt"
	BackTemplateFile  = "back-template.txt"
	StylingFile       = "styling.txt"
	CardsFile         = "cards.txt"
)

// DefaultConcurrency is the number of words looked up at once.
const DefaultConcurrency = 8

// Generator writes the output of an Extractor to a directory.
type Generator struct {
	ex          Extractor
	outPath     string
	concurrency int
	progress    io.Writer
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithConcurrency bounds the number of concurrent Card calls. Values below 1
// are treated as 1.
func WithConcurrency(n int) GeneratorOption {
	return func(g *Generator) { g.concurrency = max(n, 1) }
}

// WithProgress sets where the progress bar is drawn (stdout by default).
func WithProgress(w io.Writer) GeneratorOption {
	return func(g *Generator) { g.progress = w }
}

// NewGenerator creates a Generator writing under outPath.
func NewGenerator(ex Extractor, outPath string, opts ...GeneratorOption) *Generator {
	g := &Generator{
		ex:          ex,
		outPath:     outPath,
		concurrency: DefaultConcurrency,
		progress:    os.Stdout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MediaPath returns the directory Anki imports media files from.
func MediaPath(outPath string) string {
	return filepath.Join(outPath, MediaFolder)
}

func (g *Generator) writeFile(desc, name, content string) (string, error) {
	slog.Info("generating "+desc, "extractor", g.ex.Name())
	path, err := fsutil.ValidPath(filepath.Join(g.outPath, name), true)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("extractor: write %s: %w", desc, err)
	}
	slog.Info("generated "+desc, "path", path)
	return path, nil
}

// GenerateFrontTemplate writes the front template file and returns its path.
func (g *Generator) GenerateFrontTemplate() (string, error) {
	return g.writeFile("front template", FrontTemplateFile, g.ex.FrontTemplate())
}

// GenerateBackTemplate writes the back template file and returns its path.
func (g *Generator) GenerateBackTemplate() (string, error) {
	return g.writeFile("back template", BackTemplateFile, g.ex.BackTemplate())
}

// GenerateStyling writes the styling file and returns its path.
func (g *Generator) GenerateStyling(ctx context.Context) (string, error) {
	styling, err := g.ex.Styling(ctx)
	if err != nil {
		return "", fmt.Errorf("extractor: styling: %w", err)
	}
	return g.writeFile("styling", StylingFile, styling)
}

// Result summarises a GenerateCards run.
type Result struct {
	Path    string   // cards file
	Cards   int      // rows appended
	Skipped []string // words that failed
}

// GenerateCards looks up words concurrently and appends one CSV row per card
// to the cards file. Rows keep the order of words. A card whose headword was
// already produced, either as a query or as a resolved headword, is dropped;
// this folds queries that redirect to the same entry. Words that fail are
// logged and reported in Result.Skipped.
//
// When ctx is canceled the cards already fetched are still written, words
// not looked up are reported as skipped, and the context error is returned
// together with the Result.
func (g *Generator) GenerateCards(ctx context.Context, words []string) (*Result, error) {
	slog.Info("generating cards", "count", len(words))
	path, err := fsutil.ValidPath(filepath.Join(g.outPath, CardsFile), true)
	if err != nil {
		return nil, err
	}

	cards := make([]*Card, len(words))
	bar := progress.New(g.progress, int64(len(words)), nil)
	bar.Update()

	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i, word := range words {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			card, err := g.ex.Card(ctx, word)
			if err != nil {
				slog.Error("can't get card", "word", word, "err", err)
				bar.Advance(word)
				return nil
			}
			bar.Advance(card.Word)
			cards[i] = &card
			return nil
		})
	}
	waitErr := eg.Wait()
	bar.Done()

	res := &Result{Path: path}
	var rows [][]string
	seen := make(map[string]bool, len(words))
	for i, card := range cards {
		if card == nil {
			res.Skipped = append(res.Skipped, words[i])
			continue
		}
		if seen[card.Word] {
			slog.Debug("duplicate card dropped", "word", words[i], "resolved", card.Word)
			continue
		}
		seen[words[i]] = true
		seen[card.Word] = true
		rows = append(rows, card.Fields)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("extractor: open cards: %w", err)
	}
	w := csv.NewWriter(f)
	w.UseCRLF = true
	err = w.WriteAll(rows)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("extractor: write cards: %w", err)
	}
	res.Cards = len(rows)

	slog.Info("generated cards", "count", res.Cards, "path", path)
	if len(res.Skipped) > 0 {
		slog.Error("skipped words", "count", len(res.Skipped), "words", strings.Join(res.Skipped, ", "))
	}
	return res, waitErr
}

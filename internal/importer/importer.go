// Package importer turns directories and git repositories of card files into decks.
package importer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/gitsource"
	"github.com/conorfennell/studydeck/internal/parser"
	"github.com/conorfennell/studydeck/internal/storage"
)

// Importer reconciles card files with decks in a DeckStore.
type Importer struct {
	store    *storage.DeckStore
	log      *slog.Logger
	reposDir string
	progress io.Writer
}

// Options configures an Importer.
type Options struct {
	Logger   *slog.Logger
	ReposDir string    // where git sources are cloned
	Progress io.Writer // git progress output; nil discards it
}

// New returns an Importer writing to store.
func New(store *storage.DeckStore, opts Options) *Importer {
	im := &Importer{
		store:    store,
		log:      opts.Logger,
		reposDir: opts.ReposDir,
		progress: opts.Progress,
	}
	if im.log == nil {
		im.log = slog.Default()
	}
	if im.reposDir == "" {
		im.reposDir = "repos"
	}
	return im
}

// Result summarizes one import run.
type Result struct {
	Files        int
	DecksCreated int
	CardsAdded   int
	Errors       []error
}

// Import reads a local directory, or clones/pulls a git repository and reads its
// working tree. Each card file becomes one deck; files imported before only
// contribute cards their deck does not already have.
func (im *Importer) Import(ctx context.Context, source string) (Result, error) {
	if !gitsource.IsRemote(source) {
		// "cards", "cards/" and "./cards" must resolve to the same decks.
		dir, err := filepath.Abs(source)
		if err != nil {
			return Result{}, fmt.Errorf("failed to resolve %s: %w", source, err)
		}
		return im.ImportDir(ctx, dir, filepath.ToSlash(dir))
	}

	localPath, err := gitsource.LocalPath(im.reposDir, source)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), os.ModePerm); err != nil {
		return Result{}, fmt.Errorf("failed to create repos directory: %w", err)
	}
	if err := gitsource.Sync(ctx, source, localPath, im.progress); err != nil {
		return Result{}, err
	}
	return im.ImportDir(ctx, localPath, source)
}

// ImportDir imports every .md and .json file under root. label identifies the
// source in each deck's Source field so later imports find the same deck.
func (im *Importer) ImportDir(ctx context.Context, root, label string) (Result, error) {
	var res Result

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".md" && ext != ".json" {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		cards, parseErrs, err := parseFile(path, ext)
		for _, e := range parseErrs {
			res.Errors = append(res.Errors, fmt.Errorf("parsing %s: %w", path, e))
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("parsing %s: %w", path, err))
			return nil
		}
		if len(cards) == 0 {
			return nil
		}
		res.Files++

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = d.Name()
		}
		source := label + "/" + filepath.ToSlash(rel)
		if err := im.reconcile(ctx, source, deckTitle(d.Name()), cards, &res); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("storing %s: %w", path, err))
		}
		return nil
	})
	if walkErr != nil {
		return res, fmt.Errorf("error walking directory %s: %w", root, walkErr)
	}

	im.log.Info("Import complete",
		"source", label,
		"files", res.Files,
		"decks_created", res.DecksCreated,
		"cards_added", res.CardsAdded,
		"errors", len(res.Errors),
	)
	return res, nil
}

func (im *Importer) reconcile(ctx context.Context, source, title string, cards []domain.GeneratedCard, res *Result) error {
	existing, err := im.store.FindBySource(ctx, source)
	if err != nil {
		return err
	}
	if existing == nil {
		deck, err := im.store.CreateFromSource(ctx, title, source, cards)
		if err != nil {
			return err
		}
		res.DecksCreated++
		res.CardsAdded += len(deck.Cards)
		return nil
	}

	added, err := im.store.AppendGenerated(ctx, existing.ID, cards)
	if err != nil {
		return err
	}
	if added > 0 {
		im.log.Info("New cards found", "deck_id", existing.ID, "source", source, "added", added)
	}
	res.CardsAdded += added
	return nil
}

func parseFile(path, ext string) ([]domain.GeneratedCard, []error, error) {
	if ext == ".md" {
		cards, err := parser.ParseMarkdownFile(path)
		return cards, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return parser.ParseGenerated(string(data))
}

// deckTitle derives a deck title from a file name: "cell_biology.md" -> "cell biology".
func deckTitle(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.NewReplacer("_", " ", "-", " ").Replace(base)
}

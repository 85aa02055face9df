package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/conorfennell/studydeck/internal/config"
	"github.com/conorfennell/studydeck/internal/domain"
	"github.com/conorfennell/studydeck/internal/importer"
	"github.com/conorfennell/studydeck/internal/parser"
	"github.com/conorfennell/studydeck/internal/sm2"
	"github.com/conorfennell/studydeck/internal/storage"
	"github.com/conorfennell/studydeck/internal/study"
	"github.com/conorfennell/studydeck/internal/web"
)

const usage = `Usage: studydeck <command> [flags] [args]

Commands:
  serve                    Run the JSON HTTP API
  decks                    List decks with due counts
  create <topic> <file>    Create a deck from generator output ("-" reads stdin)
  delete <deck-id>         Delete a deck
  due <deck-id>            List the cards due for review
  study <deck-id>          Review due cards interactively
  import <dir|git-url>     Import card files as decks

Flags:
`

func main() {
	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		fmt.Fprint(os.Stderr, usage)
		config.Flags("studydeck").PrintDefaults()
		os.Exit(2)
	}
	cmd := os.Args[1]

	flags := config.Flags("studydeck " + cmd)
	cfg, err := config.Load(flags, os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}
	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		logger.Error("Failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	store := storage.NewDeckStore(backend,
		storage.WithKey(cfg.Storage.Key),
		storage.WithLogger(logger),
		storage.WithMaxRetries(cfg.Storage.MaxRetries),
	)
	policy, err := domain.ParseDuePolicy(cfg.Study.DuePolicy)
	if err != nil {
		logger.Error("Invalid due policy", "error", err)
		os.Exit(2)
	}

	args := flags.Args()
	switch cmd {
	case "serve":
		err = serve(ctx, cfg.HTTP.Addr, web.NewServer(store, policy, logger), logger)
	case "decks":
		err = listDecks(ctx, store, policy, os.Stdout)
	case "create":
		err = withArgs(args, 2, func() error { return createDeck(ctx, store, args[0], args[1], os.Stdout) })
	case "delete":
		err = withArgs(args, 1, func() error { return store.Delete(ctx, args[0]) })
	case "due":
		err = withArgs(args, 1, func() error { return listDue(ctx, store, args[0], policy, os.Stdout) })
	case "study":
		err = withArgs(args, 1, func() error { return runStudy(ctx, store, args[0], policy, os.Stdin, os.Stdout) })
	case "import":
		err = withArgs(args, 1, func() error {
			im := importer.New(store, importer.Options{Logger: logger, ReposDir: cfg.Import.ReposDir, Progress: os.Stderr})
			res, err := im.Import(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d files: %d decks created, %d cards added, %d errors.\n",
				res.Files, res.DecksCreated, res.CardsAdded, len(res.Errors))
			for _, e := range res.Errors {
				fmt.Printf("- %s\n", e)
			}
			return nil
		})
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("Command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func openBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Driver {
	case "sqlite":
		return storage.OpenSQLite(cfg.Path)
	case "redis":
		return storage.OpenRedis(ctx, cfg.RedisAddr)
	case "memory":
		return storage.NewMemoryBackend(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func withArgs(args []string, n int, fn func() error) error {
	if len(args) < n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return fn()
}

func serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("Shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func listDecks(ctx context.Context, store *storage.DeckStore, policy domain.DuePolicy, out io.Writer) error {
	sums, err := store.Summaries(ctx, policy)
	if err != nil {
		return err
	}
	if len(sums) == 0 {
		fmt.Fprintln(out, "No decks yet. Create one with: studydeck create <topic> <file>")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCARDS\tDUE\tPROGRESS")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.0f%%\n", s.ID, s.Title, s.Total, s.Due, s.Progress)
	}
	return tw.Flush()
}

func createDeck(ctx context.Context, store *storage.DeckStore, topic, path string, out io.Writer) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	cards, rejected, err := parser.ParseGenerated(string(data))
	if err != nil {
		return err
	}
	for _, e := range rejected {
		fmt.Fprintf(out, "Skipped %s\n", e)
	}
	deck, err := store.CreateFromGenerated(ctx, topic, cards)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Created deck %s (%s) with %d cards.\n", deck.ID, deck.Title, len(deck.Cards))
	return nil
}

func listDue(ctx context.Context, store *storage.DeckStore, deckID string, policy domain.DuePolicy, out io.Writer) error {
	deck, err := store.Get(ctx, deckID)
	if err != nil {
		return err
	}
	due := domain.DueCards(*deck, store.Now(), policy)
	fmt.Fprintf(out, "%d of %d cards due in %s.\n", len(due), len(deck.Cards), deck.Title)
	for _, c := range due {
		fmt.Fprintf(out, "- [%s] %s\n", c.Status, c.Front)
	}
	return nil
}

func runStudy(ctx context.Context, store *storage.DeckStore, deckID string, policy domain.DuePolicy, in io.Reader, out io.Writer) error {
	s, err := study.Start(ctx, store, deckID, study.Options{Policy: policy})
	if err != nil {
		return err
	}
	if s.Done() {
		fmt.Fprintf(out, "All caught up! No cards due in %s.\n", s.Deck().Title)
		return nil
	}

	scanner := bufio.NewScanner(in)
	for !s.Done() {
		card, _ := s.Current()
		fmt.Fprintf(out, "\n(%d left) %s\n[enter to reveal] ", s.Remaining(), card.Front)
		if !scanner.Scan() {
			break
		}
		fmt.Fprintf(out, "%s\n", card.Back)

		for {
			fmt.Fprint(out, "Rate (again/hard/good/easy): ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			q, err := sm2.ParseQuality(scanner.Text())
			if err != nil {
				fmt.Fprintln(out, "Please answer again, hard, good or easy.")
				continue
			}
			updated, err := s.Rate(ctx, q)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Next review in %d day(s).\n", updated.Interval)
			break
		}
	}

	st := s.Stats()
	fmt.Fprintf(out, "\nReviewed %d cards: %d again, %d hard, %d good, %d easy.\n", st.Reviewed, st.Again, st.Hard, st.Good, st.Easy)
	return scanner.Err()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pbaille/nipslock/internal/api"
	"github.com/pbaille/nipslock/internal/config"
	"github.com/pbaille/nipslock/internal/domain"
	"github.com/pbaille/nipslock/internal/fetcher"
	"github.com/pbaille/nipslock/internal/lockfile"
	"github.com/pbaille/nipslock/internal/store"
	"github.com/pbaille/nipslock/internal/syncer"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// app carries settings shared by every sub-command
type app struct {
	configPath string
	dbPath     string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	a := &app{}

	var (
		nipList string
		out     string
		ref     string
	)

	cmd := &cobra.Command{
		Use:   "nipslock",
		Short: "Pin NIP documents into a deterministic lockfile",
		Long: `nipslock fetches the selected NIPs from nostr-protocol/nips at a revision,
records title, a status hint and the SHA-256 of each document, and writes
the result as a sorted JSON lockfile.

The status hint is a keyword match on the head of the document, not the
NIP's authoritative status.`,
		Example:       "  nipslock --nips 1,7,23,65 --out nips.lock.json --ref master",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("ref") {
				a.cfg.Ref = ref
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.sync(cmd.Context(), nipList, out)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "sync journal database path (disabled when empty)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.Flags().StringVar(&nipList, "nips", "", "comma-separated NIP numbers, e.g. 1,7,23,65")
	cmd.Flags().StringVar(&out, "out", "", "output lockfile path")
	cmd.Flags().StringVar(&ref, "ref", "master", "git ref in nostr-protocol/nips")
	_ = cmd.MarkFlagRequired("nips")
	_ = cmd.MarkFlagRequired("out")

	cmd.AddCommand(inspectCmd())
	cmd.AddCommand(historyCmd(a))
	cmd.AddCommand(showCmd(a))
	cmd.AddCommand(serveCmd(a))
	cmd.AddCommand(versionCmd())

	return cmd
}

// setup loads config and applies persistent flag overrides
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("db") {
		cfg.DB = a.dbPath
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}

	a.cfg = cfg
	a.logger = newLogger(cfg.LogLevel)
	slog.SetDefault(a.logger)
	return nil
}

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelWarn
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func (a *app) sync(ctx context.Context, nipList, out string) error {
	f, err := fetcher.New(a.cfg.FetcherOptions())
	if err != nil {
		return err
	}

	opts := []syncer.Option{syncer.WithLogger(a.logger)}
	if a.cfg.DB != "" {
		j := &lazyJournal{open: a.openStore}
		defer j.Close()
		opts = append(opts, syncer.WithJournal(j))
	}

	res, err := syncer.New(f, opts...).Run(ctx, syncer.Request{
		NIPs: nipList,
		Repo: a.cfg.Repo,
		Ref:  a.cfg.Ref,
		Out:  out,
	})
	if err != nil {
		return err
	}

	fmt.Println(syncer.Summary(res, out))
	return nil
}

// lazyJournal opens the store on the first recorded run, so failed or
// rejected syncs leave no database behind
type lazyJournal struct {
	open func() (*store.Store, error)
	s    *store.Store
}

func (j *lazyJournal) AddRun(repo, ref, out string, generatedAt time.Time, entries []domain.NIPEntry) (*domain.Run, error) {
	if j.s == nil {
		s, err := j.open()
		if err != nil {
			return nil, err
		}
		j.s = s
	}
	return j.s.AddRun(repo, ref, out, generatedAt, entries)
}

func (j *lazyJournal) Close() error {
	if j.s == nil {
		return nil
	}
	return j.s.Close()
}

func (a *app) openStore() (*store.Store, error) {
	if a.cfg.DB == "" {
		return nil, errors.New("no journal configured: pass --db or set db in the config file")
	}
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(a.cfg.DB), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(a.cfg.DB)
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [lockfile]",
		Short: "Print the entries of a lockfile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := lockfile.Read(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Source:    %s@%s\n", doc.Source.Repo, doc.Source.Ref)
			fmt.Printf("Generated: %s\n\n", doc.GeneratedAtUTC)
			for _, e := range doc.NIPs {
				fmt.Printf("NIP-%02d  %-22s  %s  %s\n", e.NIP, e.StatusHint, e.ContentSHA256[:min(12, len(e.ContentSHA256))], e.Title)
			}
			return nil
		},
	}
}

func historyCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded syncs",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(limit, 0)
			if err != nil {
				return err
			}

			if len(runs) == 0 {
				fmt.Println("No syncs recorded yet.")
				return nil
			}

			for _, r := range runs {
				fmt.Printf("%s  %s  %s@%s  %s\n", r.ID[:8], r.GeneratedAt.Format("2006-01-02 15:04:05"), r.Repo, r.Ref, r.Out)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func showCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show the entries of a recorded sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.FindRun(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("ID:        %s\n", run.ID)
			fmt.Printf("Source:    %s@%s\n", run.Repo, run.Ref)
			fmt.Printf("Output:    %s\n", run.Out)
			fmt.Printf("Generated: %s\n", lockfile.FormatTime(run.GeneratedAt))

			if len(run.Entries) > 0 {
				fmt.Printf("\nNIPs:\n")
				for _, e := range run.Entries {
					fmt.Printf("  - NIP-%02d %s (%s)\n", e.NIP, e.Title, e.StatusHint)
				}
			}

			return nil
		},
	}
}

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sync journal over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			// Note: don't defer s.Close() as server runs indefinitely

			server := api.New(s, addr, a.logger)
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "server address")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nipslock version %s\n", version)
		},
	}
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pfrederiksen/lastfm-events/internal/config"
	"github.com/pfrederiksen/lastfm-events/internal/event"
	"github.com/pfrederiksen/lastfm-events/internal/server"
	"github.com/spf13/cobra"
)

// ExitError is the process exit code when a command fails
const ExitError = 1

var (
	flagConfig    string
	flagVerbose   bool
	flagAddr      string
	flagYear      string
	flagFormat    string
	flagNext      bool
	flagStopAfter int
	flagSort      string
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lastfm-events",
		Short: "Turn Last.fm gig listings into an event feed",
		Long: `A service and CLI that reads a Last.fm user's events listing and
returns normalized events with precise start times and artist images.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(newServeCmd(), newEventsCmd())

	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the events API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <username>",
		Short: "Print a user's events",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvents,
	}
	cmd.Flags().StringVar(&flagYear, "year", "", "Year of past events (default: upcoming)")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text, json or ics")
	cmd.Flags().BoolVar(&flagNext, "next", false, "Only print the next upcoming event")
	cmd.Flags().IntVar(&flagStopAfter, "stop-after", 0, "Stop after this many events, 0 for the whole listing (overrides pipeline.stop_after)")
	cmd.Flags().StringVar(&flagSort, "sort", "listing", "Sort order: listing, date or title")
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// runServe serves the API until interrupted
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}

	a, err := newApp(cfg, cmd.ErrOrStderr(), flagVerbose)
	if err != nil {
		return err
	}
	defer a.Close() // nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.pipeline, server.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		AllowOrigin:  cfg.Server.AllowOrigin,
		Gatherer:     a.registry,
		Logger:       a.log,
	})
	return srv.Run(ctx)
}

// runEvents prints the events of one user
func runEvents(cmd *cobra.Command, args []string) error {
	username := strings.TrimSpace(args[0])
	if username == "" {
		return fmt.Errorf("username is required")
	}

	// Validate format
	format := OutputFormat(strings.ToLower(flagFormat))
	if format != FormatText && format != FormatJSON && format != FormatICS {
		return fmt.Errorf("invalid format: %s (must be 'text', 'json' or 'ics')", flagFormat)
	}

	sortOrder := SortOrder(strings.ToLower(flagSort))
	if sortOrder != SortByListing && sortOrder != SortByDate && sortOrder != SortByTitle {
		return fmt.Errorf("invalid sort: %s (must be 'listing', 'date' or 'title')", flagSort)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("stop-after") {
		n := flagStopAfter
		cfg.Pipeline.StopAfter = &n
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("--stop-after: %w", err)
		}
	}

	a, err := newApp(cfg, cmd.ErrOrStderr(), flagVerbose)
	if err != nil {
		return err
	}
	defer a.Close() // nolint:errcheck

	now := time.Now()
	events := a.pipeline.FetchEvents(cmd.Context(), username, flagYear)
	if flagNext {
		events = event.OnlyNext(events, now)
	}
	sortEvents(events, sortOrder)

	result := &OutputResult{
		Username:   username,
		Year:       flagYear,
		FetchedAt:  now.UTC(),
		Events:     events,
		EventCount: len(events),
	}

	if err := WriteOutput(cmd.OutOrStdout(), result, format, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}

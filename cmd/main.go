package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/kass/go-room-rank/pkg/config"
	"github.com/kass/go-room-rank/pkg/logging"
	"github.com/kass/go-room-rank/pkg/ranking"
	"github.com/kass/go-room-rank/pkg/render"
	"github.com/spf13/cobra"
)

var version = "dev"

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	verbose    bool

	cfg config.Config
	log *logging.Logger
	out io.Writer
	now func() time.Time
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{
		out: out,
		now: time.Now,
		log: logging.Discard(),
	}

	rootCmd := &cobra.Command{
		Use:   "roomrank",
		Short: "Rank and filter rental rooms around a location",
		Long: `Rank rental room listings by proximity and popularity, filter them by
region, price, area, amenities and furniture, and query them on a map.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		a.rankCmd(),
		a.filterCmd(),
		a.scoreCmd(),
		a.nearbyCmd(),
		a.viewportCmd(),
		a.indexCmd(),
		a.benchCmd(),
		a.generateCmd(),
		a.importCmd(),
	)
	return rootCmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := logging.New(cfg.Logging, version)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	a.log.Debug("loaded config", "path", a.configPath)
	return nil
}

func (a *app) ranker() *ranking.Ranker {
	return a.cfg.NewRanker(
		ranking.WithClock(a.now),
		ranking.WithLogger(a.log.With("component", "ranking").Logger),
	)
}

func (a *app) printer() *render.Printer {
	if f, ok := a.out.(*os.File); ok {
		return render.NewPrinter(a.out, render.ColorEnabled(f))
	}
	return render.NewPrinter(a.out, false)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

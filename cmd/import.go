package main

import (
	"time"

	"github.com/kass/go-room-rank/pkg/postgis"
	"github.com/spf13/cobra"
)

func (a *app) importCmd() *cobra.Command {
	var (
		in    inputFlags
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load rooms into PostGIS",
		Long: `Upsert rooms into the PostGIS rooms table configured under postgis, creating
the table and its spatial index when missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rooms, err := a.loadRooms(ctx, in)
			if err != nil {
				return err
			}

			store, err := postgis.NewRoomStore(ctx, a.cfg.PostGIS)
			if err != nil {
				return err
			}
			defer store.Close()
			store.SetLogger(a.log.With("component", "postgis").Logger)

			if reset {
				err = store.Reset(ctx)
			} else {
				err = store.InitSchema(ctx)
			}
			if err != nil {
				return err
			}

			start := time.Now()
			if err := store.BulkInsertRooms(ctx, rooms); err != nil {
				return err
			}
			if err := store.CreateSpatialIndex(ctx); err != nil {
				return err
			}
			elapsed := time.Since(start)

			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}

			p := a.printer()
			p.Title("Import complete")
			p.Stat("rooms imported", len(rooms))
			p.Stat("rows in table", stats.RowCount)
			p.Stat("table size", stats.TableSize)
			p.Stat("index size", stats.IndexSize)
			p.Stat("database size", stats.DatabaseSize)
			p.Stat("elapsed", elapsed.Round(time.Millisecond))
			return nil
		},
	}

	in.register(cmd)
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop and recreate the rooms table first")
	return cmd
}

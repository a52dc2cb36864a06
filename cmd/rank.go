package main

import (
	"fmt"

	"github.com/kass/go-room-rank/pkg/filter"
	"github.com/kass/go-room-rank/pkg/models"
	"github.com/kass/go-room-rank/pkg/ranking"
	"github.com/kass/go-room-rank/pkg/render"
	"github.com/spf13/cobra"
)

func (a *app) rankCmd() *cobra.Command {
	var (
		in          inputFlags
		filters     filterFlags
		user        locationFlags
		maxDistance float64
		limit       int
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank rooms by proximity and score",
		Long: `Filter rooms, then rank them. Without --lat/--lon rooms are ordered by score.
With a location, rooms within --max-distance come first, nearest first, and the rest
follow by score.`,
		Example: `  roomrank rank -i rooms.json --lat 21.0285 --lon 105.8542 --amenity wifi --max-price 5000000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := user.location(cmd)
			if err != nil {
				return err
			}
			criteria, err := filters.criteria(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-distance") {
				if maxDistance < 0 {
					return fmt.Errorf("invalid max distance %.2f: must be non-negative", maxDistance)
				}
				a.cfg.Ranking.MaxDistanceMeters = maxDistance
			}

			rooms, err := a.loadRooms(cmd.Context(), in)
			if err != nil {
				return err
			}

			admitted := filter.Apply(rooms, criteria)
			a.log.Debug("filtered rooms", "in", len(rooms), "admitted", len(admitted))

			ranked := a.ranker().Rank(admitted, loc)
			if limit > 0 && len(ranked) > limit {
				ranked = ranked[:limit]
			}

			if asJSON {
				return render.JSON(a.out, ranked)
			}
			nearby := a.cfg.Ranking.MaxDistanceMeters
			if loc == nil {
				nearby = -1
			}
			a.printer().Ranked(ranked, nearby)
			return nil
		},
	}

	in.register(cmd)
	filters.register(cmd)
	user.register(cmd, "User")
	cmd.Flags().Float64Var(&maxDistance, "max-distance", 0, "Nearby radius in meters (default from config)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n rooms (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) filterCmd() *cobra.Command {
	var (
		in      inputFlags
		filters filterFlags
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Print the rooms matching every filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := filters.criteria(cmd)
			if err != nil {
				return err
			}
			rooms, err := a.loadRooms(cmd.Context(), in)
			if err != nil {
				return err
			}

			admitted := filter.Apply(rooms, criteria)
			if asJSON {
				return render.JSON(a.out, admitted)
			}
			a.printer().Rooms(admitted)
			return nil
		},
	}

	in.register(cmd)
	filters.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

// roomScore is the JSON form of a score breakdown.
type roomScore struct {
	ID        string                 `json:"id"`
	Breakdown ranking.ScoreBreakdown `json:"breakdown"`
	Total     float64                `json:"total"`
}

func (a *app) scoreCmd() *cobra.Command {
	var (
		in     inputFlags
		ids    []string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Explain room scores component by component",
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := a.loadRooms(cmd.Context(), in)
			if err != nil {
				return err
			}
			rooms, err = selectRooms(rooms, ids)
			if err != nil {
				return err
			}

			r := a.ranker()
			if asJSON {
				scores := make([]roomScore, len(rooms))
				for i, room := range rooms {
					b := r.Breakdown(room)
					scores[i] = roomScore{ID: room.ID, Breakdown: b, Total: b.Total()}
				}
				return render.JSON(a.out, scores)
			}

			p := a.printer()
			for _, room := range rooms {
				p.Breakdown(room, r.Breakdown(room), r.Weights())
			}
			return nil
		},
	}

	in.register(cmd)
	cmd.Flags().StringSliceVar(&ids, "id", nil, "Only score these room IDs (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

// selectRooms keeps the rooms with the given IDs, in ID order. No IDs keeps
// every room.
func selectRooms(rooms []models.Room, ids []string) ([]models.Room, error) {
	if len(ids) == 0 {
		return rooms, nil
	}

	byID := make(map[string]models.Room, len(rooms))
	for _, r := range rooms {
		byID[r.ID] = r
	}

	selected := make([]models.Room, 0, len(ids))
	for _, id := range ids {
		room, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("room %q not found", id)
		}
		selected = append(selected, room)
	}
	return selected, nil
}

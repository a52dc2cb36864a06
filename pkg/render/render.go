// Package render prints rooms, score breakdowns and map clusters as terminal
// tables or JSON.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/kass/go-room-rank/pkg/models"
	"github.com/kass/go-room-rank/pkg/ranking"
	"github.com/kass/go-room-rank/pkg/rtree"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

const titleWidth = 32

// ColorEnabled reports whether f is a terminal that should get colored output.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type styles struct {
	title  lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	near   lipgloss.Style
	dim    lipgloss.Style
	stat   lipgloss.Style
	border lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, color bool) styles {
	if !color {
		r.SetColorProfile(termenv.Ascii)
		plain := r.NewStyle()
		return styles{
			title:  plain,
			header: plain,
			cell:   plain.Padding(0, 1),
			near:   plain.Padding(0, 1),
			dim:    plain,
			stat:   plain,
			border: plain,
		}
	}

	return styles{
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")),
		header: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD")).
			Padding(0, 1),
		cell: r.NewStyle().Padding(0, 1),
		near: r.NewStyle().
			Foreground(lipgloss.Color("#50FA7B")).
			Padding(0, 1),
		dim: r.NewStyle().
			Foreground(lipgloss.Color("#6272A4")),
		stat: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C")),
		border: r.NewStyle().
			Foreground(lipgloss.Color("#BD93F9")),
	}
}

// Printer writes human-readable output.
type Printer struct {
	w     io.Writer
	style styles
}

// NewPrinter creates a Printer writing to w, colored when color is true.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{
		w:     w,
		style: newStyles(lipgloss.NewRenderer(w), color),
	}
}

// Title prints a heading line.
func (p *Printer) Title(title string) {
	fmt.Fprintln(p.w, p.style.title.Render(title))
}

// Stat prints a labelled value.
func (p *Printer) Stat(label string, value any) {
	fmt.Fprintf(p.w, "  %s: %s\n", label, p.style.stat.Render(fmt.Sprint(value)))
}

// Ranked prints ranked rooms. Rooms within nearby meters are highlighted.
func (p *Printer) Ranked(rooms []models.ScoredRoom, nearby float64) {
	rows := make([][]string, len(rooms))
	isNear := make([]bool, len(rooms))
	for i, r := range rooms {
		isNear[i] = r.DistanceMeters <= nearby
		rows[i] = []string{
			fmt.Sprintf("%d", i+1),
			r.Room.ID,
			truncate(r.Room.Title, titleWidth),
			FormatDistance(r.DistanceMeters),
			fmt.Sprintf("%.1f", r.Score),
			FormatPrice(r.Room.RentPrice),
			regionLabel(r.Room.Region),
		}
	}

	t := p.newTable("#", "ID", "TITLE", "DISTANCE", "SCORE", "PRICE", "REGION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return p.style.header
			case row >= 0 && row < len(isNear) && isNear[row]:
				return p.style.near
			default:
				return p.style.cell
			}
		})

	fmt.Fprintln(p.w, t.Render())
	p.footer(len(rooms), "rooms")
}

// Rooms prints rooms in their given order.
func (p *Printer) Rooms(rooms []models.Room) {
	rows := make([][]string, len(rooms))
	for i, r := range rooms {
		rows[i] = []string{
			r.ID,
			truncate(r.Title, titleWidth),
			FormatPrice(r.RentPrice),
			fmt.Sprintf("%.0f m²", r.Area),
			regionLabel(r.Region),
			strings.Join(r.Amenities, ", "),
		}
	}

	t := p.newTable("ID", "TITLE", "PRICE", "AREA", "REGION", "AMENITIES").Rows(rows...)
	fmt.Fprintln(p.w, t.Render())
	p.footer(len(rooms), "rooms")
}

// Breakdown prints the score components of room.
func (p *Printer) Breakdown(room models.Room, b ranking.ScoreBreakdown, w ranking.Weights) {
	recency := "-"
	if room.CreatedAt != nil {
		recency = fmt.Sprintf("%.2f", b.Recency)
	}

	t := p.newTable("COMPONENT", "POINTS", "CAP").Rows(
		[]string{"views", fmt.Sprintf("%.2f", b.View), fmt.Sprintf("%.0f", w.View.Cap)},
		[]string{"favorites", fmt.Sprintf("%.2f", b.Favorite), fmt.Sprintf("%.0f", w.Favorite.Cap)},
		[]string{"contracts", fmt.Sprintf("%.2f", b.Contract), fmt.Sprintf("%.0f", w.Contract.Cap)},
		[]string{"recency", recency, fmt.Sprintf("%.0f", w.Recency.Max)},
		[]string{"available", fmt.Sprintf("%.2f", b.Available), fmt.Sprintf("%.0f", w.AvailableBonus)},
		[]string{"amenities", fmt.Sprintf("%.2f", b.Amenity), fmt.Sprintf("%.0f", w.Amenity.Cap)},
		[]string{"furniture", fmt.Sprintf("%.2f", b.Furniture), fmt.Sprintf("%.0f", w.Furniture.Cap)},
	)

	p.Title(fmt.Sprintf("%s %s", room.ID, truncate(room.Title, titleWidth)))
	fmt.Fprintln(p.w, t.Render())
	p.Stat("total", fmt.Sprintf("%.2f / %.0f", b.Total(), w.MaxScore()))
}

// Clusters prints map marker clusters.
func (p *Printer) Clusters(clusters []rtree.Cluster) {
	rows := make([][]string, len(clusters))
	for i, c := range clusters {
		rows[i] = []string{
			c.Hash,
			fmt.Sprintf("%.5f, %.5f", c.Center.Lat, c.Center.Lon),
			fmt.Sprintf("%d", c.Count),
		}
	}

	t := p.newTable("GEOHASH", "CENTER", "ROOMS").Rows(rows...)
	fmt.Fprintln(p.w, t.Render())
	p.footer(len(clusters), "clusters")
}

func (p *Printer) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.style.border).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.style.header
			}
			return p.style.cell
		})
}

func (p *Printer) footer(n int, noun string) {
	fmt.Fprintln(p.w, p.style.dim.Render(fmt.Sprintf("%d %s", n, noun)))
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// FormatDistance renders meters for display, "-" when unknown.
func FormatDistance(meters float64) string {
	switch {
	case math.IsInf(meters, 0) || math.IsNaN(meters):
		return "-"
	case meters < 1000:
		return fmt.Sprintf("%.0f m", meters)
	default:
		return fmt.Sprintf("%.2f km", meters/1000)
	}
}

// FormatPrice renders a rent price with thousands separators.
func FormatPrice(price float64) string {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return "-"
	}

	digits := fmt.Sprintf("%.0f", price)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return b.String()
}

func regionLabel(r models.Region) string {
	switch {
	case r.District != "" && r.Province != "":
		return r.District + ", " + r.Province
	case r.District != "":
		return r.District
	default:
		return r.Province
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

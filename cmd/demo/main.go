package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kass/go-room-rank/pkg/config"
	"github.com/kass/go-room-rank/pkg/logging"
	"github.com/kass/go-room-rank/pkg/models"
	"github.com/kass/go-room-rank/pkg/ranking"
	"github.com/kass/go-room-rank/pkg/render"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(1, 2).
			MarginTop(1)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))
)

type sortMode int

const (
	sortRanked sortMode = iota
	sortScore
)

func (s sortMode) String() string {
	if s == sortScore {
		return "score only"
	}
	return "ranked"
}

type roomsLoadedMsg struct {
	rooms []models.Room
	err   error
}

type model struct {
	ranker *ranking.Ranker
	user   *models.Location
	nearby float64
	load   func() ([]models.Room, error)

	spinner spinner.Model
	table   table.Model
	loading bool
	err     error

	rooms  []models.Room
	shown  []models.ScoredRoom
	mode   sortMode
	detail bool
	width  int
	height int
}

func initialModel(ranker *ranking.Ranker, user *models.Location, nearby float64, load func() ([]models.Room, error)) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#6272A4")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#282A36")).
		Background(lipgloss.Color("#50FA7B")).
		Bold(false)
	t.SetStyles(styles)

	return model{
		ranker:  ranker,
		user:    user,
		nearby:  nearby,
		load:    load,
		spinner: s,
		table:   t,
		loading: true,
		width:   80,
		height:  24,
	}
}

func columns(width int) []table.Column {
	titleWidth := max(width-62, 16)
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: "Title", Width: titleWidth},
		{Title: "Distance", Width: 10},
		{Title: "Score", Width: 7},
		{Title: "Price", Width: 11},
		{Title: "District", Width: 16},
	}
}

func (m model) Init() tea.Cmd {
	load := m.load
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			rooms, err := load()
			return roomsLoadedMsg{rooms: rooms, err: err}
		},
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(max(msg.Height-10, 5))
		return m, nil

	case roomsLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.rooms = msg.rooms
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "/":
			if m.mode == sortRanked {
				m.mode = sortScore
			} else {
				m.mode = sortRanked
			}
			m.refresh()
			return m, nil
		case "enter":
			m.detail = !m.detail && len(m.shown) > 0
			return m, nil
		case "esc":
			m.detail = false
			return m, nil
		}
	}

	if m.detail {
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// refresh re-ranks the rooms for the current sort mode.
func (m *model) refresh() {
	user := m.user
	if m.mode == sortScore {
		user = nil
	}
	m.shown = m.ranker.Rank(m.rooms, user)

	rows := make([]table.Row, len(m.shown))
	for i, r := range m.shown {
		rows[i] = table.Row{
			fmt.Sprintf("%d", i+1),
			r.Room.Title,
			render.FormatDistance(r.DistanceMeters),
			fmt.Sprintf("%.1f", r.Score),
			render.FormatPrice(r.Room.RentPrice),
			r.Room.Region.District,
		}
	}
	m.table.SetRows(rows)
	m.table.GotoTop()
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🏠 Room Browser"))
	b.WriteString("\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " Loading rooms...\n")
	case m.err != nil:
		b.WriteString(errorStyle.Render("Failed to load rooms: " + m.err.Error()))
		b.WriteString("\n")
	case m.detail:
		b.WriteString(m.detailView())
	default:
		b.WriteString(subtitleStyle.Render(fmt.Sprintf("%d rooms, sorted: %s", len(m.shown), m.mode)))
		if m.user != nil {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  near %.4f, %.4f within %s",
				m.user.Lat, m.user.Lon, render.FormatDistance(m.nearby))))
		}
		b.WriteString("\n\n")
		b.WriteString(m.table.View())
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("↑/↓ move • / toggle sort • enter details • q quit"))
	return b.String()
}

func (m model) detailView() string {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.shown) {
		return ""
	}
	selected := m.shown[cursor]
	room := selected.Room
	bd := m.ranker.Breakdown(room)

	recency := "no creation date"
	if room.CreatedAt != nil {
		recency = fmt.Sprintf("%.2f", bd.Recency)
	}

	lines := []string{
		subtitleStyle.Render(room.Title),
		dimStyle.Render(room.ID),
		"",
		fmt.Sprintf("Distance:   %s", statStyle.Render(render.FormatDistance(selected.DistanceMeters))),
		fmt.Sprintf("Price:      %s", statStyle.Render(render.FormatPrice(room.RentPrice))),
		fmt.Sprintf("Area:       %s", statStyle.Render(fmt.Sprintf("%.0f m²", room.Area))),
		fmt.Sprintf("Region:     %s, %s", room.Region.District, room.Region.Province),
		fmt.Sprintf("Amenities:  %s", strings.Join(room.Amenities, ", ")),
		fmt.Sprintf("Furniture:  %s", strings.Join(room.Furniture, ", ")),
		"",
		fmt.Sprintf("Views       %s", statStyle.Render(fmt.Sprintf("%6.2f", bd.View))),
		fmt.Sprintf("Favorites   %s", statStyle.Render(fmt.Sprintf("%6.2f", bd.Favorite))),
		fmt.Sprintf("Contracts   %s", statStyle.Render(fmt.Sprintf("%6.2f", bd.Contract))),
		fmt.Sprintf("Recency     %s", statStyle.Render(recency)),
		fmt.Sprintf("Available   %s", statStyle.Render(fmt.Sprintf("%6.2f", bd.Available))),
		fmt.Sprintf("Amenities   %s", statStyle.Render(fmt.Sprintf("%6.2f", bd.Amenity))),
		fmt.Sprintf("Furniture   %s", statStyle.Render(fmt.Sprintf("%6.2f", bd.Furniture))),
		fmt.Sprintf("Total       %s / %.0f", statStyle.Render(fmt.Sprintf("%6.2f", bd.Total())), m.ranker.Weights().MaxScore()),
	}
	return boxStyle.Render(strings.Join(lines, "\n")) + "\n" + dimStyle.Render("esc back")
}

func main() {
	var (
		configPath string
		input      string
		lat, lon   float64
	)

	cmd := &cobra.Command{
		Use:          "demo",
		Short:        "Browse ranked rooms in the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if input == "" {
				return errors.New("no input: use --input rooms.json")
			}

			var user *models.Location
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
				user = &models.Location{Lat: lat, Lon: lon}
			}

			log, err := logging.New(cfg.Logging, "demo")
			if err != nil {
				return err
			}
			ranker := cfg.NewRanker(ranking.WithLogger(log.Logger))
			load := func() ([]models.Room, error) {
				file, err := os.Open(input)
				if err != nil {
					return nil, err
				}
				defer file.Close()

				rooms, err := models.DecodeRooms(file)
				if errors.Is(err, models.ErrInvalidRoom) {
					log.Warn("skipped invalid rooms", "error", err)
					err = nil
				}
				return rooms, err
			}

			// Not a terminal: print the ranking once.
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				rooms, err := load()
				if err != nil {
					return err
				}
				render.NewPrinter(os.Stdout, false).Ranked(ranker.Rank(rooms, user), cfg.Ranking.MaxDistanceMeters)
				return nil
			}

			p := tea.NewProgram(initialModel(ranker, user, cfg.Ranking.MaxDistanceMeters, load), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file path")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Rooms JSON file")
	cmd.Flags().Float64Var(&lat, "lat", 0, "User latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "User longitude")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

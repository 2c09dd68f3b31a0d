package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/gateway"
	"github.com/brensch/snekarena/room"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22c55e"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	playingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	waitingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
	endedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

type model struct {
	client   *http.Client
	url      string
	interval time.Duration

	rooms     []room.Info
	lastPoll  time.Time
	lastErr   error
	polls     int
	startTime time.Time
}

type roomsMsg struct {
	rooms []room.Info
	at    time.Time
	err   error
}

type TickMsg time.Time

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func fetchRooms(client *http.Client, url string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		rooms, err := getRooms(ctx, client, url)
		return roomsMsg{rooms: rooms, at: time.Now(), err: err}
	}
}

func getRooms(ctx context.Context, client *http.Client, url string) ([]room.Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	var body gateway.RoomsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return body.Rooms, nil
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchRooms(m.client, m.url), tickCmd(m.interval))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, fetchRooms(m.client, m.url)
		}
	case TickMsg:
		return m, tea.Batch(fetchRooms(m.client, m.url), tickCmd(m.interval))
	case roomsMsg:
		m.polls++
		m.lastPoll = msg.at
		m.lastErr = msg.err
		if msg.err == nil {
			m.rooms = msg.rooms
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("snekarena"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %s  polls=%d  up %s", m.url, m.polls, time.Since(m.startTime).Round(time.Second))))
	b.WriteString("\n\n")

	if m.lastErr != nil {
		b.WriteString(endedStyle.Render("error: " + m.lastErr.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-8s %-24s %-9s %-9s %-7s %s", "CODE", "NAME", "PHASE", "PLAYERS", "HUMANS", "AGE")))
	b.WriteString("\n")
	if len(m.rooms) == 0 {
		b.WriteString(dimStyle.Render("no rooms"))
		b.WriteString("\n")
	}
	totalPlayers := 0
	for _, r := range m.rooms {
		totalPlayers += r.PlayerCount
		name := r.Name
		if r.IsPrivate {
			name += " (private)"
		}
		if runes := []rune(name); len(runes) > 24 {
			name = string(runes[:23]) + "…"
		}
		line := fmt.Sprintf("%-8s %-24s %-9s %-9s %-7d %s",
			r.Code, name, phaseStyle(r.Phase).Render(fmt.Sprintf("%-9s", r.Phase)),
			fmt.Sprintf("%d/%d", r.PlayerCount, r.MaxPlayers), r.Humans,
			time.Since(time.UnixMilli(r.CreatedAt)).Round(time.Second))
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Rooms: %d  Players: %d", len(m.rooms), totalPlayers))
	if !m.lastPoll.IsZero() {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  last poll %s", m.lastPoll.Format("15:04:05"))))
	}
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("Press r to refresh, q to quit."))
	b.WriteString("\n")
	return b.String()
}

func phaseStyle(phase game.Phase) lipgloss.Style {
	switch phase {
	case game.PhasePlaying:
		return playingStyle
	case game.PhaseWaiting:
		return waitingStyle
	default:
		return endedStyle
	}
}

func main() {
	server := flag.String("server", getEnvOrDefault("ARENA_URL", "http://localhost:8080"), "Arena base URL")
	all := flag.Bool("all", false, "Include private and empty rooms")
	interval := flag.Duration("interval", time.Second, "Poll interval")
	flag.Parse()

	url := strings.TrimRight(*server, "/") + "/api/rooms"
	if *all {
		url += "?all=1"
	}

	m := model{
		client:    &http.Client{Timeout: 5 * time.Second},
		url:       url,
		interval:  *interval,
		startTime: time.Now(),
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Printf("arenatop: %v", err)
		os.Exit(1)
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

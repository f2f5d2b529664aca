// devpulse-tui renders live activity snapshots in the terminal. It
// subscribes to the daemon's redis pubsub channels and repaints whenever
// a tracked user's snapshot changes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisAddr = "localhost:6379"
	viewportHeight   = 20
	userTopicPattern = "user:*"
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	itemTimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(18)
	itemUserStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))

	commitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	prStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	issueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Wire types (mirrored from pkg/notify and pkg/aggregate to keep this
// binary free of the CGO sqlite dependency).

type envelope struct {
	Event   string          `json:"event"`
	UserID  string          `json:"userId"`
	Payload json.RawMessage `json:"payload"`
}

type activityItem struct {
	Type    string    `json:"type"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
	Title   string    `json:"title"`
	Repo    string    `json:"repo"`
	State   string    `json:"state"`
}

type snapshot struct {
	Commits        int            `json:"commits"`
	PullRequests   int            `json:"pullRequests"`
	Issues         int            `json:"issues"`
	Repositories   int            `json:"repositories"`
	Followers      int            `json:"followers"`
	RecentActivity []activityItem `json:"recentActivity"`
}

type envelopeMsg struct {
	user string
	snap snapshot
	at   time.Time
}

type streamErrMsg struct{ err error }

type model struct {
	spinner  spinner.Model
	viewport viewport.Model
	events   <-chan *redis.Message

	snapshots map[string]snapshot
	updatedAt map[string]time.Time
	received  int
	err       error
	ready     bool
}

func initialModel(events <-chan *redis.Message) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		spinner:   s,
		events:    events,
		snapshots: make(map[string]snapshot),
		updatedAt: make(map[string]time.Time),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, listen(m.events))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case envelopeMsg:
		m.err = nil
		m.received++
		if msg.user != "" {
			m.snapshots[msg.user] = msg.snap
			m.updatedAt[msg.user] = msg.at
			m.updateViewportContent()
		}
		cmds = append(cmds, listen(m.events))

	case streamErrMsg:
		m.err = msg.err

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.viewport.Style = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				PaddingRight(2)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	type entry struct {
		user string
		item activityItem
	}

	var entries []entry
	for user, snap := range m.snapshots {
		for _, item := range snap.RecentActivity {
			entries = append(entries, entry{user: user, item: item})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].item.Date.After(entries[j].item.Date)
	})

	var sb strings.Builder
	for _, e := range entries {
		ts := e.item.Date.Format("Jan 02 15:04")

		var label, text string
		switch e.item.Type {
		case "commit":
			label = commitStyle.Render("commit")
			text = fmt.Sprintf("%s (%s)", e.item.Message, e.item.Repo)
		case "pull_request":
			label = prStyle.Render("pull  ")
			text = fmt.Sprintf("%s [%s]", e.item.Title, e.item.State)
		default:
			label = issueStyle.Render("issue ")
			text = fmt.Sprintf("%s [%s]", e.item.Title, e.item.State)
		}

		sb.WriteString(fmt.Sprintf("%s %s %s %s\n",
			itemTimeStyle.Render(ts),
			label,
			itemUserStyle.Render("@"+e.user),
			text,
		))
	}

	m.viewport.SetContent(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Waiting for activity...", m.spinner.View())
	}

	var summary strings.Builder
	summary.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Tracked Users") + "\n\n")

	if len(m.snapshots) == 0 {
		summary.WriteString(subtleStyle.Render("No snapshots received yet."))
	} else {
		users := make([]string, 0, len(m.snapshots))
		for user := range m.snapshots {
			users = append(users, user)
		}
		sort.Strings(users)

		for _, user := range users {
			snap := m.snapshots[user]
			summary.WriteString(fmt.Sprintf("• %s  %d commits, %d PRs, %d issues, %d followers  %s\n",
				user, snap.Commits, snap.PullRequests, snap.Issues, snap.Followers,
				subtleStyle.Render(m.updatedAt[user].Format("15:04:05")),
			))
		}
	}

	topPane := paneStyle.Render(summary.String())
	header := headerStyle.Render(fmt.Sprintf("%s Recent Activity", m.spinner.View()))
	bottomPane := m.viewport.View()

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Stream error: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Live • %d updates • %d users", m.received, len(m.snapshots)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, bottomPane, footer)
}

// listen blocks on the pubsub channel and converts the next message into
// a tea.Msg.
func listen(events <-chan *redis.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return streamErrMsg{err: fmt.Errorf("pubsub channel closed")}
		}

		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			return streamErrMsg{err: err}
		}
		if env.Event != "activity-update" || len(env.Payload) == 0 {
			// connected events carry no snapshot
			return envelopeMsg{at: time.Now()}
		}

		var snap snapshot
		if err := json.Unmarshal(env.Payload, &snap); err != nil {
			return streamErrMsg{err: err}
		}
		return envelopeMsg{user: env.UserID, snap: snap, at: time.Now()}
	}
}

func main() {
	addr := os.Getenv("DEVPULSE_REDIS_ADDR")
	if addr == "" {
		addr = defaultRedisAddr
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Printf("Cannot reach redis at %s: %v\n", addr, err)
		fmt.Println("Is devpulsed running with redis configured?")
		os.Exit(1)
	}

	ps := rdb.PSubscribe(ctx, userTopicPattern)
	defer ps.Close()

	p := tea.NewProgram(initialModel(ps.Channel()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}

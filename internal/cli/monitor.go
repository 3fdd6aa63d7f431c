package cli

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/boardkit/boardkit/pkg/board"
	"github.com/boardkit/boardkit/pkg/sync"
)

// monitorCommand attaches a read-only terminal view to a running room.
func (c *CLI) monitorCommand() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "monitor <room>",
		Short: "Watch a room's participants and document live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMonitor(cmd, serverURL, args[0])
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "ws://localhost:8080", "server base URL")
	return cmd
}

func (c *CLI) runMonitor(cmd *cobra.Command, serverURL, room string) error {
	url := wsURL(serverURL, room)
	transport, err := sync.Dial(cmd.Context(), url)
	if err != nil {
		return err
	}

	session := sync.NewSession(sync.Options{
		Room:      room,
		User:      sync.Participant{ID: "monitor-" + uuid.NewString()[:8], Name: "monitor"},
		Transport: transport,
		Logger:    LoggerFrom(cmd.Context()),
	})
	defer session.Close()

	model := newMonitorModel(room, url)
	p := tea.NewProgram(model, tea.WithContext(cmd.Context()))

	offElements := session.OnElementsChange(func(els board.Elements, origin sync.Origin) {
		p.Send(elementsMsg{elements: els, remote: origin.Remote})
	})
	defer offElements()
	offAwareness := session.OnAwarenessChange(func(states []sync.PresenceState) {
		p.Send(awarenessMsg{states: states})
	})
	defer offAwareness()

	_, err = p.Run()
	return err
}

// wsURL builds the room endpoint from a base like ws://host:port.
func wsURL(base, room string) string {
	base = strings.TrimSuffix(base, "/")
	base = strings.Replace(base, "http://", "ws://", 1)
	base = strings.Replace(base, "https://", "wss://", 1)
	return fmt.Sprintf("%s/rooms/%s/ws", base, room)
}

// =============================================================================
// MonitorModel - Live room view
// =============================================================================

type elementsMsg struct {
	elements board.Elements
	remote   bool
}

type awarenessMsg struct {
	states []sync.PresenceState
}

type monitorModel struct {
	room    string
	url     string
	kinds   map[board.Kind]int
	total   int
	changes int
	states  []sync.PresenceState
}

func newMonitorModel(room, url string) monitorModel {
	return monitorModel{room: room, url: url, kinds: make(map[board.Kind]int)}
}

func (m monitorModel) Init() tea.Cmd {
	return nil
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case elementsMsg:
		m.kinds = make(map[board.Kind]int)
		for _, e := range msg.elements {
			m.kinds[e.Kind()]++
		}
		m.total = len(msg.elements)
		if msg.remote {
			m.changes++
		}
	case awarenessMsg:
		m.states = msg.states
	}
	return m, nil
}

func (m monitorModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Room " + m.room))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(m.url))
	b.WriteString("\n\n")

	b.WriteString(StyleValue.Render(fmt.Sprintf("%d elements", m.total)))
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %d remote changes\n", m.changes)))
	if len(m.kinds) > 0 {
		kinds := make([]string, 0, len(m.kinds))
		for k, n := range m.kinds {
			kinds = append(kinds, fmt.Sprintf("%s:%d", k, n))
		}
		sort.Strings(kinds)
		b.WriteString(StyleDim.Render(strings.Join(kinds, "  ")))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(StyleTitle.Render("Participants"))
	b.WriteString("\n")
	if len(m.states) == 0 {
		b.WriteString(StyleDim.Render("nobody here yet"))
		b.WriteString("\n")
	} else {
		rows := [][]string{}
		states := append([]sync.PresenceState(nil), m.states...)
		sort.Slice(states, func(i, j int) bool {
			return states[i].Participant.ID < states[j].Participant.ID
		})
		for _, st := range states {
			cursor := "-"
			if st.Cursor != nil {
				cursor = fmt.Sprintf("(%.0f, %.0f)", st.Cursor.X, st.Cursor.Y)
			}
			activity := ""
			if st.Drawing != nil {
				activity = "drawing " + string(st.Drawing.Kind())
			}
			rows = append(rows, []string{st.Participant.Name, cursor, activity})
		}
		t := table.New().
			Headers("NAME", "CURSOR", "ACTIVITY").
			Rows(rows...)
		b.WriteString(t.Render())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(StyleDim.Render("q quit"))
	b.WriteString("\n")
	return b.String()
}

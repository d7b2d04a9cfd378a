package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunesync/internal/queue"
)

// refreshInterval controls how often the monitor polls queue snapshots.
const refreshInterval = 300 * time.Millisecond

// QueueController is the slice of the queue manager the monitor drives.
type QueueController interface {
	List() []queue.Item
	Pause(id string) error
	Resume(id string) error
	Cancel(id string) error
	Clear() int
}

type snapshotMsg struct {
	items []queue.Item
}

type controlErrMsg struct {
	err error
}

// Model represents the queue monitor state.
type Model struct {
	manager QueueController
	list    list.Model
	width   int
	height  int
	ready   bool
	err     error
	help    help.Model
	keys    keyMap
}

// NewModel creates a queue monitor over the given controller.
func NewModel(manager QueueController) *Model {
	return &Model{
		manager: manager,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the snapshot polling loop.
func (m *Model) Init() tea.Cmd {
	return m.snapshot()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.ready {
			m.list.SetSize(msg.Width-4, msg.Height-6)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case snapshotMsg:
		m.applySnapshot(msg.items)
		return m, m.tick()

	case controlErrMsg:
		m.err = msg.err
		return m, nil
	}

	if m.ready {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the queue list with a summary line and contextual help.
func (m *Model) View() string {
	if !m.ready {
		return styles.help.Render("Loading queue...")
	}

	header := styles.title.Render("Download Queue")
	summary := m.summaryLine()
	helpView := m.help.ShortHelpView(m.keys.ShortHelp())

	body := fmt.Sprintf("%s\n%s\n\n%s\n\n%s", header, summary, m.list.View(), helpView)
	if m.err != nil {
		body += "\n" + styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	}
	return body
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "p":
		return m, m.control(m.manager.Pause)
	case "r":
		return m, m.control(m.manager.Resume)
	case "x":
		return m, m.control(m.manager.Cancel)
	case "c":
		m.manager.Clear()
		return m, m.snapshot()
	}

	if m.ready {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

// control applies a queue operation to the selected item.
func (m *Model) control(op func(id string) error) tea.Cmd {
	if !m.ready {
		return nil
	}
	selected, ok := m.list.SelectedItem().(queueItem)
	if !ok {
		return nil
	}

	m.err = nil
	id := selected.item.ID
	return func() tea.Msg {
		if err := op(id); err != nil {
			return controlErrMsg{err: err}
		}
		return snapshotMsg{items: m.manager.List()}
	}
}

// applySnapshot replaces the list contents, preserving the cursor.
func (m *Model) applySnapshot(items []queue.Item) {
	listItems := make([]list.Item, len(items))
	for i, item := range items {
		listItems[i] = queueItem{item: item}
	}

	if !m.ready {
		m.list = list.New(listItems, list.NewDefaultDelegate(), 0, 0)
		m.list.Title = "Download Queue"
		m.list.SetShowTitle(false)
		m.list.SetShowHelp(false)
		m.list.SetFilteringEnabled(false)
		m.list.SetSize(m.width-4, m.height-6)
		m.ready = true
		return
	}

	cursor := m.list.Index()
	m.list.SetItems(listItems)
	if cursor < len(listItems) {
		m.list.Select(cursor)
	}
}

func (m *Model) summaryLine() string {
	var active, paused, done, failed int
	for _, li := range m.list.Items() {
		item := li.(queueItem).item
		switch {
		case item.Status == queue.StatusPaused:
			paused++
		case item.Status == queue.StatusComplete:
			done++
		case item.Status == queue.StatusError || item.Status == queue.StatusCancelled:
			failed++
		default:
			active++
		}
	}
	return styles.help.Render(fmt.Sprintf("%d active • %d paused • %d done • %d failed", active, paused, done, failed))
}

func (m *Model) snapshot() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{items: m.manager.List()}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return snapshotMsg{items: m.manager.List()}
	})
}

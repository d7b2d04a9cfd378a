package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunesync/internal/queue"
)

// fakeController is an in-memory QueueController.
type fakeController struct {
	items     []queue.Item
	paused    []string
	resumed   []string
	cancelled []string
}

func (f *fakeController) List() []queue.Item { return f.items }
func (f *fakeController) Pause(id string) error {
	f.paused = append(f.paused, id)
	return nil
}
func (f *fakeController) Resume(id string) error {
	f.resumed = append(f.resumed, id)
	return nil
}
func (f *fakeController) Cancel(id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}
func (f *fakeController) Clear() int { return 0 }

func sampleItems() []queue.Item {
	return []queue.Item{
		{ID: "a", Title: "One", Artist: "Artist", Status: queue.StatusDownloading, Progress: 0.4, ETASec: 12},
		{ID: "b", Title: "Two", Artist: "Artist", Status: queue.StatusQueued, ETASec: -1},
		{ID: "c", Title: "Three", Artist: "Artist", Status: queue.StatusComplete, OutputPath: "/music/Three.mp3"},
	}
}

func readyModel(f *fakeController) *Model {
	m := NewModel(f)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m.Update(snapshotMsg{items: f.items})
	return m
}

func TestModelRendersSnapshot(t *testing.T) {
	f := &fakeController{items: sampleItems()}
	m := readyModel(f)

	view := m.View()
	if !strings.Contains(view, "Download Queue") {
		t.Errorf("view missing header:\n%s", view)
	}
	if !strings.Contains(view, "2 active") || !strings.Contains(view, "1 done") {
		t.Errorf("summary line wrong:\n%s", view)
	}
}

func TestModelPauseActsOnSelection(t *testing.T) {
	f := &fakeController{items: sampleItems()}
	m := readyModel(f)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	if cmd == nil {
		t.Fatal("pause key produced no command")
	}
	cmd()

	if len(f.paused) != 1 || f.paused[0] != "a" {
		t.Errorf("paused = %v, want [a]", f.paused)
	}
}

func TestModelQuitKey(t *testing.T) {
	m := readyModel(&fakeController{items: sampleItems()})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("quit key produced no command")
	}
	if msg := cmd(); msg == nil {
		t.Error("quit command returned nil msg")
	}
}

func TestQueueItemDescriptions(t *testing.T) {
	cases := []struct {
		item queue.Item
		want string
	}{
		{queue.Item{Status: queue.StatusError, Error: "socket reset"}, "socket reset"},
		{queue.Item{Status: queue.StatusComplete, OutputPath: "/music/x.mp3"}, "/music/x.mp3"},
		{queue.Item{Status: queue.StatusProcessing}, "converting"},
		{queue.Item{Status: queue.StatusDownloading, Progress: 0.5, ETASec: 30}, "50%"},
	}

	for _, tc := range cases {
		got := queueItem{item: tc.item}.Description()
		if !strings.Contains(got, tc.want) {
			t.Errorf("Description() for %s = %q, want substring %q", tc.item.Status, got, tc.want)
		}
	}
}

package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/tunesync/internal/queue"
	"github.com/desertthunder/tunesync/internal/shared"
)

var _ list.Item = queueItem{}

// queueItem wraps a [queue.Item] snapshot to implement [list.Item].
type queueItem struct {
	item queue.Item
}

func (i queueItem) FilterValue() string { return i.item.Title }

func (i queueItem) Title() string {
	return fmt.Sprintf("%s %s - %s", statusGlyph(i.item.Status), i.item.Artist, i.item.Title)
}

func (i queueItem) Description() string {
	switch i.item.Status {
	case queue.StatusDownloading:
		eta := "-"
		if i.item.ETASec >= 0 {
			eta = shared.FormatDuration(i.item.ETASec)
		}
		return fmt.Sprintf("%3.0f%% • %s • eta %s", i.item.Progress*100, shared.FormatSpeed(i.item.Speed), eta)
	case queue.StatusProcessing:
		return "converting audio..."
	case queue.StatusError:
		return i.item.Error
	case queue.StatusComplete:
		return i.item.OutputPath
	default:
		return string(i.item.Status)
	}
}

func statusGlyph(s queue.Status) string {
	switch s {
	case queue.StatusComplete:
		return styles.ok.Render("✓")
	case queue.StatusError:
		return styles.err.Render("✗")
	case queue.StatusCancelled:
		return styles.warn.Render("⊘")
	case queue.StatusPaused:
		return styles.warn.Render("‖")
	case queue.StatusDownloading, queue.StatusProcessing:
		return styles.ok.Render("↓")
	default:
		return styles.help.Render("·")
	}
}

// Package ui implements the interactive download-queue monitor using
// bubbletea's Elm architecture.
//
// The [Model] implements the standard Init/Update/View pattern. It polls the
// queue manager for item snapshots on a fixed interval and renders them as a
// bubbles list; pause, resume, and cancel act on the selected item.
//
// Keyboard navigation uses vim-style bindings (j/k, p/r/x, c, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui

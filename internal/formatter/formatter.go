// package formatter renders sync reports and queue status to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/desertthunder/tunesync/internal/queue"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/desertthunder/tunesync/internal/tasks"
)

// ReportToCSV converts a sync run result to CSV with one row per track and
// columns: Status, Artist, Title, Confidence, Source, Detail.
func ReportToCSV(result *tasks.SyncRunResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Status", "Artist", "Title", "Confidence", "Source", "Detail"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rt := range result.Resolved {
		record := []string{
			"queued",
			rt.Track.DisplayArtist(),
			rt.Track.Title,
			strconv.FormatFloat(rt.Confidence, 'f', 2, 64),
			rt.Candidate.SourceID,
			rt.MatchedBy,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	for _, at := range result.AmbiguousTracks {
		record := []string{
			"ambiguous",
			at.Track.DisplayArtist(),
			at.Track.Title,
			"",
			"",
			fmt.Sprintf("%d contenders", len(at.Contenders)),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	for _, ut := range result.UnresolvedTracks {
		record := []string{
			"unresolved",
			ut.Track.DisplayArtist(),
			ut.Track.Title,
			"",
			"",
			ut.Cause,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ReportToMarkdown converts a sync run result to Markdown.
func ReportToMarkdown(result *tasks.SyncRunResult) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Sync Report: %s\n\n", result.Service))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d total, %d unique\n", result.TotalTracks, result.Unique))
	buf.WriteString(fmt.Sprintf("**Queued**: %d | **Skipped**: %d | **Ambiguous**: %d | **Unresolved**: %d\n\n",
		result.Queued, result.Skipped, result.Ambiguous, result.Unresolved))

	if len(result.Resolved) > 0 {
		buf.WriteString("## Queued\n\n")
		for i, rt := range result.Resolved {
			buf.WriteString(fmt.Sprintf("%d. %s - %s (%.0f%%, %s)\n",
				i+1, rt.Track.DisplayArtist(), rt.Track.Title, rt.Confidence*100, rt.MatchedBy))
		}
		buf.WriteString("\n")
	}

	if len(result.AmbiguousTracks) > 0 {
		buf.WriteString("## Needs Review\n\n")
		for i, at := range result.AmbiguousTracks {
			buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, at.Track.DisplayArtist(), at.Track.Title))
			for _, c := range at.Contenders {
				buf.WriteString(fmt.Sprintf("   - %s (%s, %.0f%%)\n", c.Candidate.Title, c.Candidate.Channel, c.Confidence*100))
			}
		}
		buf.WriteString("\n")
	}

	if len(result.UnresolvedTracks) > 0 {
		buf.WriteString("## Unresolved\n\n")
		for i, ut := range result.UnresolvedTracks {
			buf.WriteString(fmt.Sprintf("%d. %s - %s (%s)\n", i+1, ut.Track.DisplayArtist(), ut.Track.Title, ut.Cause))
		}
	}

	return buf.Bytes()
}

// ReportToText converts a sync run result to a plain text summary.
func ReportToText(result *tasks.SyncRunResult) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Sync report for %s\n", result.Service))
	buf.WriteString(fmt.Sprintf("Tracks: %d total, %d unique\n", result.TotalTracks, result.Unique))
	buf.WriteString(fmt.Sprintf("Queued: %d  Skipped: %d  Ambiguous: %d  Unresolved: %d\n",
		result.Queued, result.Skipped, result.Ambiguous, result.Unresolved))

	if len(result.AmbiguousTracks) > 0 {
		buf.WriteString("\nNeeds review:\n")
		for i, at := range result.AmbiguousTracks {
			buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, at.Track.DisplayArtist(), at.Track.Title))
		}
	}

	if len(result.UnresolvedTracks) > 0 {
		buf.WriteString("\nUnresolved:\n")
		for i, ut := range result.UnresolvedTracks {
			buf.WriteString(fmt.Sprintf("%d. %s - %s (%s)\n", i+1, ut.Track.DisplayArtist(), ut.Track.Title, ut.Cause))
		}
	}

	return buf.Bytes()
}

// ReportToJSON generates an indented JSON representation of the run result.
func ReportToJSON(result *tasks.SyncRunResult) ([]byte, error) {
	return shared.MarshalJSON(result, true)
}

// QueueTable renders queue item snapshots as an aligned text table.
func QueueTable(items []queue.Item) []byte {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "STATUS\tTITLE\tARTIST\tPROGRESS\tSPEED\tETA")
	for _, item := range items {
		eta := "-"
		if item.ETASec >= 0 {
			eta = shared.FormatDuration(item.ETASec)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%3.0f%%\t%s\t%s\n",
			item.Status,
			item.Title,
			item.Artist,
			item.Progress*100,
			shared.FormatSpeed(item.Speed),
			eta,
		)
	}
	w.Flush()

	return buf.Bytes()
}

// WriteReport writes the run result to {base}.{ext} in the given format
// (csv, markdown, json, text) and returns the file path.
func WriteReport(result *tasks.SyncRunResult, base, format string) (string, error) {
	if base == "" {
		base = "sync_report"
	}

	var (
		data []byte
		ext  string
		err  error
	)

	switch format {
	case "csv":
		ext = ".csv"
		data, err = ReportToCSV(result)
	case "markdown", "md":
		ext = ".md"
		data = ReportToMarkdown(result)
	case "json":
		ext = ".json"
		data, err = ReportToJSON(result)
	default:
		ext = ".txt"
		data = ReportToText(result)
	}
	if err != nil {
		return "", err
	}

	path := base + ext
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}

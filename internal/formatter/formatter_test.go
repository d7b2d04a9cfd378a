package formatter

import (
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/queue"
	"github.com/desertthunder/tunesync/internal/tasks"
	ts "github.com/desertthunder/tunesync/internal/testing"
)

func sampleResult() *tasks.SyncRunResult {
	return &tasks.SyncRunResult{
		Service:     "spotify",
		TotalTracks: 4,
		Unique:      4,
		Queued:      2,
		Ambiguous:   1,
		Unresolved:  1,
		Resolved: []models.ResolvedTrack{
			{
				Track:      models.StreamingTrack{Service: "spotify", TrackID: "t1", Title: "One", Artists: []string{"Artist"}},
				Candidate:  models.Candidate{SourceID: "vid-1", Title: "One (Official Video)"},
				Confidence: 0.95,
				MatchedBy:  "isrc",
			},
			{
				Track:      models.StreamingTrack{Service: "spotify", TrackID: "t2", Title: "Two, Part 2", Artists: []string{"Artist"}},
				Candidate:  models.Candidate{SourceID: "vid-2"},
				Confidence: 0.81,
				MatchedBy:  "heuristic",
			},
		},
		AmbiguousTracks: []tasks.AmbiguousTrack{
			{
				Track: models.StreamingTrack{Service: "spotify", TrackID: "t3", Title: "Three", Artists: []string{"Artist"}},
				Contenders: []models.ScoredCandidate{
					{Candidate: models.Candidate{SourceID: "vid-3a", Title: "Three", Channel: "ArtistVEVO"}, Confidence: 0.8},
					{Candidate: models.Candidate{SourceID: "vid-3b", Title: "Three (Live)", Channel: "Fan"}, Confidence: 0.78},
				},
			},
		},
		UnresolvedTracks: []tasks.UnresolvedTrack{
			{
				Track: models.StreamingTrack{Service: "spotify", TrackID: "t4", Title: "Four", Artists: []string{"Artist"}},
				Cause: "no candidate above threshold",
			},
		},
	}
}

func TestReportToCSV(t *testing.T) {
	data, err := ReportToCSV(sampleResult())
	if err != nil {
		t.Fatalf("ReportToCSV failed: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("generated CSV does not parse: %v", err)
	}

	// header + 2 queued + 1 ambiguous + 1 unresolved
	if len(records) != 5 {
		t.Fatalf("CSV has %d records, want 5", len(records))
	}
	if records[0][0] != "Status" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][0] != "queued" || records[1][2] != "One" {
		t.Errorf("first row = %v", records[1])
	}
	if records[2][2] != "Two, Part 2" {
		t.Errorf("comma in title not preserved: %v", records[2])
	}
	if records[3][0] != "ambiguous" || records[4][0] != "unresolved" {
		t.Errorf("status rows = %v / %v", records[3], records[4])
	}
}

func TestReportToMarkdown(t *testing.T) {
	md := string(ReportToMarkdown(sampleResult()))

	for _, want := range []string{
		"# Sync Report: spotify",
		"## Queued",
		"## Needs Review",
		"## Unresolved",
		"Artist - One (95%, isrc)",
		"ArtistVEVO",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestReportToText(t *testing.T) {
	text := string(ReportToText(sampleResult()))

	if !strings.Contains(text, "Queued: 2  Skipped: 0  Ambiguous: 1  Unresolved: 1") {
		t.Errorf("summary line missing:\n%s", text)
	}
	if !strings.Contains(text, "Four (no candidate above threshold)") {
		t.Errorf("unresolved cause missing:\n%s", text)
	}
}

func TestQueueTable(t *testing.T) {
	table := string(QueueTable([]queue.Item{
		{Title: "One", Artist: "Artist", Status: queue.StatusDownloading, Progress: 0.5, Speed: 1024 * 512, ETASec: 30},
		{Title: "Two", Artist: "Artist", Status: queue.StatusQueued, ETASec: -1},
	}))

	if !strings.Contains(table, "STATUS") || !strings.Contains(table, "downloading") {
		t.Errorf("table missing columns:\n%s", table)
	}
	if !strings.Contains(table, "50%") {
		t.Errorf("progress missing:\n%s", table)
	}
	if !strings.Contains(table, "00:30") {
		t.Errorf("eta missing:\n%s", table)
	}
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()

	for format, ext := range map[string]string{
		"csv":      ".csv",
		"markdown": ".md",
		"json":     ".json",
		"text":     ".txt",
	} {
		base := filepath.Join(dir, "report_"+format)
		path, err := WriteReport(sampleResult(), base, format)
		if err != nil {
			t.Fatalf("WriteReport(%s) failed: %v", format, err)
		}
		if path != base+ext {
			t.Errorf("WriteReport(%s) path = %q, want %q", format, path, base+ext)
		}
		ts.AssertFileExists(t, path)
	}
}

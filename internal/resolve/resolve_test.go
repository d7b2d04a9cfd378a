package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/tunesync/internal/match"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
	ts "github.com/desertthunder/tunesync/internal/testing/mocks"
)

func newResolver(searcher *ts.MockSearcher) *Resolver {
	return New(searcher, match.New(shared.MatcherConfig{}), shared.ResolverConfig{
		SearchRate: 1000, // keep the limiter out of the way
	})
}

func testTrack() models.StreamingTrack {
	return models.StreamingTrack{
		Service:  "spotify",
		TrackID:  "t1",
		Title:    "Karma Police",
		Artists:  []string{"Radiohead"},
		Duration: 264,
	}
}

func TestResolveMatched(t *testing.T) {
	track := testTrack()
	searcher := &ts.MockSearcher{
		Results: map[string][]models.Candidate{
			track.CanonicalQuery(): {
				{SourceID: "good", Title: "Radiohead - Karma Police (Official Video)", Channel: "Radiohead", Duration: 265, Official: true},
				{SourceID: "bad", Title: "Top 50 Songs of the 90s", Duration: 3600},
			},
		},
	}

	result := newResolver(searcher).Resolve(context.Background(), track)

	if result.Kind != models.ResolutionMatched {
		t.Fatalf("Kind = %v, want Matched", result.Kind)
	}
	if result.Best == nil || result.Best.Candidate.SourceID != "good" {
		t.Errorf("Best = %+v", result.Best)
	}
	if len(searcher.Queries) != 1 {
		t.Errorf("expected one search, got %v", searcher.Queries)
	}
}

func TestResolveISRCMatch(t *testing.T) {
	track := testTrack()
	track.ISRC = "GBAYE9700123"
	searcher := &ts.MockSearcher{
		Default: []models.Candidate{
			{SourceID: "tagged", Title: "some upload", ISRC: "GBAYE9700123"},
		},
	}

	result := newResolver(searcher).Resolve(context.Background(), track)

	if result.Kind != models.ResolutionMatched {
		t.Fatalf("Kind = %v, want Matched", result.Kind)
	}
	if MatchedBy(result) != "isrc" {
		t.Errorf("MatchedBy = %q, want isrc", MatchedBy(result))
	}
}

func TestResolveAmbiguous(t *testing.T) {
	track := testTrack()
	// Two near-identical uploads: both clear the threshold and sit within
	// the ambiguity margin of each other.
	searcher := &ts.MockSearcher{
		Default: []models.Candidate{
			{SourceID: "a", Title: "Radiohead - Karma Police", Channel: "Radiohead", Duration: 264, ViewCount: 100},
			{SourceID: "b", Title: "Radiohead - Karma Police", Channel: "Radiohead", Duration: 264, ViewCount: 50},
		},
	}

	result := newResolver(searcher).Resolve(context.Background(), track)

	if result.Kind != models.ResolutionAmbiguous {
		t.Fatalf("Kind = %v, want Ambiguous", result.Kind)
	}
	if len(result.Contenders) != 2 {
		t.Fatalf("Contenders = %d, want 2", len(result.Contenders))
	}
	if result.Contenders[0].Candidate.SourceID != "a" {
		t.Errorf("tie should break toward the higher view count, got %q first", result.Contenders[0].Candidate.SourceID)
	}
}

func TestResolveRelaxedFallback(t *testing.T) {
	track := testTrack()
	searcher := &ts.MockSearcher{
		Results: map[string][]models.Candidate{
			track.CanonicalQuery(): {},
			track.RelaxedQuery(): {
				{SourceID: "relaxed", Title: "Radiohead - Karma Police", Channel: "Radiohead", Duration: 264},
			},
		},
	}

	result := newResolver(searcher).Resolve(context.Background(), track)

	if result.Kind != models.ResolutionMatched {
		t.Fatalf("Kind = %v, want Matched via fallback", result.Kind)
	}
	want := []string{track.CanonicalQuery(), track.RelaxedQuery()}
	if len(searcher.Queries) != 2 || searcher.Queries[0] != want[0] || searcher.Queries[1] != want[1] {
		t.Errorf("Queries = %v, want %v", searcher.Queries, want)
	}
}

func TestResolveExactlyOneFallback(t *testing.T) {
	searcher := &ts.MockSearcher{Default: []models.Candidate{}}

	result := newResolver(searcher).Resolve(context.Background(), testTrack())

	if result.Kind != models.ResolutionNotFound {
		t.Fatalf("Kind = %v, want NotFound", result.Kind)
	}
	if len(searcher.Queries) != 2 {
		t.Errorf("expected exactly two searches, got %d", len(searcher.Queries))
	}
}

func TestResolveSearchFailureBecomesNotFound(t *testing.T) {
	boom := errors.New("proxy unreachable")
	searcher := &ts.MockSearcher{Err: boom}

	result := newResolver(searcher).Resolve(context.Background(), testTrack())

	if result.Kind != models.ResolutionNotFound {
		t.Fatalf("Kind = %v, want NotFound", result.Kind)
	}
	if !errors.Is(result.Cause, boom) {
		t.Errorf("Cause = %v, want the search error", result.Cause)
	}
}

func TestResolveBelowThresholdNotFound(t *testing.T) {
	searcher := &ts.MockSearcher{
		Default: []models.Candidate{
			{SourceID: "junk", Title: "Unboxing my new headphones", Duration: 620},
		},
	}

	result := newResolver(searcher).Resolve(context.Background(), testTrack())

	if result.Kind != models.ResolutionNotFound {
		t.Fatalf("Kind = %v, want NotFound", result.Kind)
	}
	if result.Cause != nil {
		t.Errorf("Cause = %v, want nil for a plain miss", result.Cause)
	}
}

func TestSortScoredTieBreaks(t *testing.T) {
	scored := []models.ScoredCandidate{
		{Candidate: models.Candidate{SourceID: "z"}, Confidence: 0.8},
		{Candidate: models.Candidate{SourceID: "a"}, Confidence: 0.8},
		{Candidate: models.Candidate{SourceID: "official", Official: true}, Confidence: 0.8},
		{Candidate: models.Candidate{SourceID: "popular", ViewCount: 10}, Confidence: 0.8},
		{Candidate: models.Candidate{SourceID: "best"}, Confidence: 0.9},
	}

	sortScored(scored)

	wantOrder := []string{"best", "popular", "official", "a", "z"}
	for i, want := range wantOrder {
		if scored[i].Candidate.SourceID != want {
			t.Errorf("position %d = %q, want %q", i, scored[i].Candidate.SourceID, want)
		}
	}
}

func TestMatchedBy(t *testing.T) {
	heuristic := models.ResolutionResult{
		Kind: models.ResolutionMatched,
		Best: &models.ScoredCandidate{Reason: "title 0.95, artist present"},
	}
	if MatchedBy(heuristic) != "heuristic" {
		t.Errorf("MatchedBy = %q", MatchedBy(heuristic))
	}

	isrc := models.ResolutionResult{
		Kind: models.ResolutionMatched,
		Best: &models.ScoredCandidate{Reason: "isrc match"},
	}
	if MatchedBy(isrc) != "isrc" {
		t.Errorf("MatchedBy = %q", MatchedBy(isrc))
	}
}

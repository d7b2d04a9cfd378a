// Package resolve maps streaming tracks to their best video-platform source.
//
// The resolver pulls a bounded candidate set from the search capability,
// scores every candidate with the matcher, and classifies the outcome as
// Matched, Ambiguous, or NotFound. A transient search failure is folded into
// NotFound with the cause attached; it never escapes as a panic or an
// unwrapped error.
package resolve

import (
	"context"
	"sort"

	"github.com/desertthunder/tunesync/internal/match"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	"golang.org/x/time/rate"
)

// Resolver generates and classifies ranked candidates for streaming tracks.
type Resolver struct {
	searcher services.Searcher
	matcher  *match.Matcher
	limiter  *rate.Limiter

	limit           int
	acceptThreshold float64
	ambiguityMargin float64
}

// New creates a Resolver, filling zero config values with the embedded defaults.
func New(searcher services.Searcher, matcher *match.Matcher, cfg shared.ResolverConfig) *Resolver {
	defaults := shared.DefaultConfig().Resolver
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = defaults.SearchLimit
	}
	if cfg.AcceptThreshold <= 0 {
		cfg.AcceptThreshold = defaults.AcceptThreshold
	}
	if cfg.AmbiguityMargin <= 0 {
		cfg.AmbiguityMargin = defaults.AmbiguityMargin
	}
	if cfg.SearchRate <= 0 {
		cfg.SearchRate = defaults.SearchRate
	}

	return &Resolver{
		searcher:        searcher,
		matcher:         matcher,
		limiter:         rate.NewLimiter(rate.Limit(cfg.SearchRate), 1),
		limit:           cfg.SearchLimit,
		acceptThreshold: cfg.AcceptThreshold,
		ambiguityMargin: cfg.AmbiguityMargin,
	}
}

// Resolve classifies the best source for one track.
//
// The primary query is artist + title; when it yields nothing the resolver
// retries once with the title alone before giving up. Exactly one fallback,
// no retry loop.
func (r *Resolver) Resolve(ctx context.Context, track models.StreamingTrack) models.ResolutionResult {
	primary, err := r.attempt(ctx, track, track.CanonicalQuery())
	if err == nil && primary.Kind != models.ResolutionNotFound {
		return primary
	}

	relaxed, relaxedErr := r.attempt(ctx, track, track.RelaxedQuery())
	if relaxedErr != nil {
		cause := relaxedErr
		if err != nil {
			cause = err
		}
		return models.ResolutionResult{Kind: models.ResolutionNotFound, Cause: cause}
	}

	return relaxed
}

// attempt runs one search + score + classify pass for a single query.
func (r *Resolver) attempt(ctx context.Context, track models.StreamingTrack, query string) (models.ResolutionResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return models.ResolutionResult{}, err
	}

	candidates, err := r.searcher.Search(ctx, query, r.limit)
	if err != nil {
		return models.ResolutionResult{}, err
	}
	if len(candidates) == 0 {
		return models.ResolutionResult{Kind: models.ResolutionNotFound}, nil
	}

	scored := make([]models.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		confidence, reason := r.matcher.Score(track, c)
		scored = append(scored, models.ScoredCandidate{
			Candidate:  c,
			Confidence: confidence,
			Reason:     reason,
		})
	}

	sortScored(scored)
	return r.classify(scored), nil
}

// classify applies the acceptance threshold and ambiguity margin to a
// ranked candidate list.
func (r *Resolver) classify(scored []models.ScoredCandidate) models.ResolutionResult {
	best := scored[0]
	if best.Confidence < r.acceptThreshold {
		return models.ResolutionResult{Kind: models.ResolutionNotFound}
	}

	contenders := []models.ScoredCandidate{best}
	for _, sc := range scored[1:] {
		if best.Confidence-sc.Confidence < r.ambiguityMargin {
			contenders = append(contenders, sc)
		}
	}

	if len(contenders) > 1 {
		return models.ResolutionResult{
			Kind:       models.ResolutionAmbiguous,
			Contenders: contenders,
		}
	}

	return models.ResolutionResult{Kind: models.ResolutionMatched, Best: &best}
}

// sortScored orders candidates by confidence descending; ties break toward
// higher view counts, then the official flag, then source id so the order is
// stable for identical inputs.
func sortScored(scored []models.ScoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Candidate.ViewCount != b.Candidate.ViewCount {
			return a.Candidate.ViewCount > b.Candidate.ViewCount
		}
		if a.Candidate.Official != b.Candidate.Official {
			return a.Candidate.Official
		}
		return a.Candidate.SourceID < b.Candidate.SourceID
	})
}

// MatchedBy labels how a matched result was decided, for outcome records.
func MatchedBy(result models.ResolutionResult) string {
	if result.Best != nil && result.Best.Reason == "isrc match" {
		return "isrc"
	}
	return "heuristic"
}

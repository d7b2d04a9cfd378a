package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunesync/internal/match"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/resolve"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

// ResolveTrack resolves one track against the search proxy and prints the
// classification with every scored candidate. Debugging aid for tuning the
// matcher thresholds.
func (r *Runner) ResolveTrack(ctx context.Context, cmd *cli.Command) error {
	config := r.loadOrCreateConfig(cmd.String("config"))

	youtube := r.youtube
	if youtube == nil {
		youtube = services.NewYouTubeService(config.Credentials.YouTube.ProxyURL)
	}

	track := models.StreamingTrack{
		Service:  "manual",
		TrackID:  shared.GenerateID(),
		Title:    cmd.String("title"),
		Duration: int(cmd.Int("duration")),
		ISRC:     cmd.String("isrc"),
	}
	if artist := cmd.String("artist"); artist != "" {
		track.Artists = []string{artist}
	}

	resolver := resolve.New(youtube, match.New(config.Matcher), config.Resolver)
	result := resolver.Resolve(ctx, track)

	if cmd.Bool("json") {
		return r.writeJSON(resolutionView(result), true)
	}

	switch result.Kind {
	case models.ResolutionMatched:
		best := result.Best
		r.writePlain("✓ Matched (%s)\n\n", resolve.MatchedBy(result))
		r.writePlain("  %s\n", best.Candidate.Title)
		r.writePlain("  Channel: %s\n", best.Candidate.Channel)
		r.writePlain("  Source: %s\n", best.Candidate.SourceID)
		r.writePlain("  Confidence: %.2f (%s)\n", best.Confidence, best.Reason)
	case models.ResolutionAmbiguous:
		r.writePlain("? Ambiguous: %d contenders\n\n", len(result.Contenders))
		for i, c := range result.Contenders {
			r.writePlain("%d. %s (%s) %.2f\n", i+1, c.Candidate.Title, c.Candidate.Channel, c.Confidence)
		}
	default:
		r.writePlain("✗ Not found\n")
		if result.Cause != nil {
			r.writePlain("  Cause: %v\n", result.Cause)
		}
	}

	return nil
}

// resolutionView flattens a ResolutionResult for JSON output (errors don't
// marshal).
func resolutionView(result models.ResolutionResult) map[string]any {
	view := map[string]any{"kind": result.Kind.String()}
	if result.Best != nil {
		view["best"] = result.Best
	}
	if len(result.Contenders) > 0 {
		view["contenders"] = result.Contenders
	}
	if result.Cause != nil {
		view["cause"] = fmt.Sprintf("%v", result.Cause)
	}
	return view
}

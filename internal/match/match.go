// Package match implements the deterministic scoring heuristic that rates a
// search candidate against a streaming track.
package match

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// beyond the duration tolerance the total score is capped here, so a
// wrong-length cover or medley can never classify as Matched
const durationCapScore = 0.5

// markers that indicate a non-studio recording
var versionMarkers = []string{"live", "cover", "remix", "karaoke", "instrumental", "reaction", "sped up", "slowed"}

var (
	bracketPattern    = regexp.MustCompile(`\(.*?\)|\[.*?\]|\{.*?\}`)
	nonAlphanumeric   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Matcher scores (track, candidate) pairs. Pure and deterministic: identical
// inputs always produce identical output.
type Matcher struct {
	tolerance     int
	titleWeight   float64
	artistBonus   float64
	officialBonus float64
	livePenalty   float64
}

// New creates a Matcher from configuration, filling zero values with the
// embedded defaults.
func New(cfg shared.MatcherConfig) *Matcher {
	defaults := shared.DefaultConfig().Matcher
	if cfg.DurationToleranceSec <= 0 {
		cfg.DurationToleranceSec = defaults.DurationToleranceSec
	}
	if cfg.TitleWeight <= 0 {
		cfg.TitleWeight = defaults.TitleWeight
	}
	if cfg.ArtistBonus <= 0 {
		cfg.ArtistBonus = defaults.ArtistBonus
	}
	if cfg.OfficialBonus <= 0 {
		cfg.OfficialBonus = defaults.OfficialBonus
	}
	if cfg.LivePenalty <= 0 {
		cfg.LivePenalty = defaults.LivePenalty
	}

	return &Matcher{
		tolerance:     cfg.DurationToleranceSec,
		titleWeight:   cfg.TitleWeight,
		artistBonus:   cfg.ArtistBonus,
		officialBonus: cfg.OfficialBonus,
		livePenalty:   cfg.LivePenalty,
	}
}

// durationWeight is the share of the score awarded for duration closeness,
// whatever remains after title, artist, and authenticity.
func (m *Matcher) durationWeight() float64 {
	w := 1.0 - m.titleWeight - m.artistBonus - m.officialBonus
	if w < 0 {
		return 0
	}
	return w
}

// Score rates the candidate against the track, returning a confidence in
// [0,1] and a human readable reason.
//
// An exact ISRC match on both sides short-circuits to maximum confidence:
// the ISRC is an authoritative cross-reference and overrides the heuristic.
func (m *Matcher) Score(track models.StreamingTrack, candidate models.Candidate) (float64, string) {
	if track.ISRC != "" && candidate.ISRC != "" && strings.EqualFold(track.ISRC, candidate.ISRC) {
		return 1.0, "isrc match"
	}

	reasons := []string{}

	titleSim := similarity(normalizeTitle(track.Title), normalizeTitle(candidate.Title))
	score := m.titleWeight * titleSim
	reasons = append(reasons, fmt.Sprintf("title %.2f", titleSim))

	if m.artistPresent(track, candidate) {
		score += m.artistBonus
		reasons = append(reasons, "artist present")
	}

	diff, known := durationDiff(track, candidate)
	capped := false
	switch {
	case !known:
		// No duration on one side: award half the closeness weight so
		// candidates with a confirming duration still rank higher.
		score += m.durationWeight() / 2
	case diff <= m.tolerance:
		closeness := 1.0 - float64(diff)/float64(m.tolerance)
		score += m.durationWeight() * closeness
		reasons = append(reasons, fmt.Sprintf("duration Δ%ds", diff))
	default:
		capped = true
		reasons = append(reasons, fmt.Sprintf("duration Δ%ds exceeds tolerance", diff))
	}

	if m.authentic(track, candidate) {
		score += m.officialBonus
		reasons = append(reasons, "official")
	}

	if marker := m.versionMarker(track, candidate); marker != "" {
		score -= m.livePenalty
		reasons = append(reasons, marker+" marker")
	}

	if capped && score > durationCapScore {
		score = durationCapScore
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return score, strings.Join(reasons, ", ")
}

// artistPresent reports whether the track's artist appears in the candidate
// title or channel, by substring or token overlap.
func (m *Matcher) artistPresent(track models.StreamingTrack, candidate models.Candidate) bool {
	haystack := normalizeTitle(candidate.Title) + " " + normalizeTitle(candidate.Channel)
	haystackTokens := tokenSet(haystack)

	for _, artist := range track.Artists {
		name := normalizeTitle(artist)
		if name == "" {
			continue
		}
		if strings.Contains(haystack, name) {
			return true
		}
		overlap := 0
		artistTokens := strings.Fields(name)
		for _, tok := range artistTokens {
			if haystackTokens[tok] {
				overlap++
			}
		}
		if len(artistTokens) > 0 && overlap == len(artistTokens) {
			return true
		}
	}
	return false
}

// authentic reports whether the candidate carries an authenticity signal: the
// official flag, or a channel named after the artist plus Official/VEVO.
func (m *Matcher) authentic(track models.StreamingTrack, candidate models.Candidate) bool {
	if candidate.Official {
		return true
	}

	channel := strings.ToLower(candidate.Channel)
	if !strings.Contains(channel, "official") && !strings.Contains(channel, "vevo") {
		return false
	}
	for _, artist := range track.Artists {
		if strings.Contains(channel, strings.ToLower(artist)) {
			return true
		}
	}
	return false
}

// versionMarker returns the first live/cover/remix marker found in the
// candidate title that is absent from the source track title. A track that is
// itself a live or remix recording is not penalized for matching one.
func (m *Matcher) versionMarker(track models.StreamingTrack, candidate models.Candidate) string {
	candidateTitle := strings.ToLower(candidate.Title)
	trackTitle := strings.ToLower(track.Title)

	for _, marker := range versionMarkers {
		if strings.Contains(candidateTitle, marker) && !strings.Contains(trackTitle, marker) {
			return marker
		}
	}
	return ""
}

func durationDiff(track models.StreamingTrack, candidate models.Candidate) (int, bool) {
	if track.Duration <= 0 || candidate.Duration <= 0 {
		return 0, false
	}
	diff := track.Duration - candidate.Duration
	if diff < 0 {
		diff = -diff
	}
	return diff, true
}

// normalizeTitle lowercases, strips bracketed annotations like
// "(Official Video)" or "[Lyrics]", drops punctuation, and collapses spaces.
func normalizeTitle(s string) string {
	s = strings.ToLower(s)
	s = bracketPattern.ReplaceAllString(s, " ")
	s = nonAlphanumeric.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// similarity computes a deterministic string similarity in [0,1] for two
// normalized titles: the Sørensen–Dice coefficient over token bigrams, with a
// containment floor so "artist - title" wrappers still score highly.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	sim := diceCoefficient(bigrams(a), bigrams(b))

	// containment floor: a full substring match is a strong signal even when
	// the candidate title carries extra decoration
	if strings.Contains(b, a) || strings.Contains(a, b) {
		shorter, longer := len(a), len(b)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		contained := 0.75 + 0.25*float64(shorter)/float64(longer)
		if contained > sim {
			sim = contained
		}
	}

	return sim
}

func bigrams(s string) map[string]int {
	grams := map[string]int{}
	runes := []rune(s)
	if len(runes) < 2 {
		grams[string(runes)] = 1
		return grams
	}
	for i := 0; i < len(runes)-1; i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}

func diceCoefficient(a, b map[string]int) float64 {
	totalA, totalB := 0, 0
	for _, n := range a {
		totalA += n
	}
	for _, n := range b {
		totalB += n
	}
	if totalA+totalB == 0 {
		return 0
	}

	// iterate in sorted order so float accumulation is reproducible
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	overlap := 0
	for _, k := range keys {
		if nb, ok := b[k]; ok {
			na := a[k]
			if nb < na {
				overlap += nb
			} else {
				overlap += na
			}
		}
	}

	return 2 * float64(overlap) / float64(totalA+totalB)
}

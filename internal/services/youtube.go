// YouTube search and download capabilities, served by the local proxy.
//
// The proxy wraps ytmusicapi for search and yt-dlp + ffmpeg for audio
// download/transcode; this client stays a thin HTTP consumer.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

const defaultYTBaseURL string = "http://localhost:8080"

// chunk size for the download copy loop; control flags are polled between
// chunks, so this bounds cancellation latency
const downloadChunkSize = 64 * 1024

// pollInterval is how long a paused download sleeps between control checks.
const pollInterval = 100 * time.Millisecond

// ytSearchResult mirrors the proxy's search response items.
type ytSearchResult struct {
	VideoID     string `json:"videoId"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	DurationSec int    `json:"duration_seconds"`
	ViewCount   int64  `json:"view_count"`
	Official    bool   `json:"official"`
	ISRC        string `json:"isrc,omitempty"`
}

// YouTubeService implements [Searcher] and [Downloader] against the proxy.
type YouTubeService struct {
	baseURL    string
	httpClient *http.Client
}

// NewYouTubeService creates a new YouTube service instance.
func NewYouTubeService(baseURL string) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}

	return &YouTubeService{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

func (y *YouTubeService) Name() string {
	return "youtube"
}

// Search queries the proxy for video candidates matching the query.
func (y *YouTubeService) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}

	endpoint := fmt.Sprintf("%s/api/search?q=%s&limit=%d", y.baseURL, url.QueryEscape(query), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: rate limited", shared.ErrSearchFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", shared.ErrSearchFailed, resp.StatusCode)
	}

	var payload struct {
		Results []ytSearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", shared.ErrSearchFailed, err)
	}

	candidates := make([]models.Candidate, 0, len(payload.Results))
	for _, r := range payload.Results {
		candidates = append(candidates, models.Candidate{
			SourceID:  r.VideoID,
			URL:       r.URL,
			Title:     r.Title,
			Channel:   r.Channel,
			Duration:  r.DurationSec,
			ViewCount: r.ViewCount,
			Official:  r.Official,
			ISRC:      r.ISRC,
		})
	}

	return candidates, nil
}

// Download streams transcoded audio from the proxy into req.OutputPath.
//
// The body is copied in fixed-size chunks; control flags are polled between
// chunks so pause and cancel take effect at chunk boundaries. The stream is
// written to a .part file first and moved into place during the processing
// phase; a cancelled download discards the partial artifact.
func (y *YouTubeService) Download(ctx context.Context, req DownloadRequest, control Control, progress ProgressFunc) error {
	endpoint := fmt.Sprintf("%s/api/download/%s?bitrate=%d", y.baseURL, url.PathEscape(req.SourceRef), req.Bitrate)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := y.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", shared.ErrDownloadFailed, resp.StatusCode)
	}

	total := int64(0)
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		total, _ = strconv.ParseInt(cl, 10, 64)
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0755); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}

	partPath := req.OutputPath + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}

	discard := func() {
		out.Close()
		os.Remove(partPath)
	}

	var done int64
	started := time.Now()
	buf := make([]byte, downloadChunkSize)

	for {
		if err := waitControl(ctx, control); err != nil {
			discard()
			return err
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				discard()
				return fmt.Errorf("%w: write: %v", shared.ErrDownloadFailed, err)
			}
			done += int64(n)
			report(progress, PhaseDownloading, done, total, started)
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			discard()
			return fmt.Errorf("%w: read: %v", shared.ErrDownloadFailed, readErr)
		}
	}

	// post-processing: flush and move the finished file into place
	report(progress, PhaseProcessing, done, total, started)

	if err := out.Sync(); err != nil {
		discard()
		return fmt.Errorf("%w: sync: %v", shared.ErrDownloadFailed, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("%w: close: %v", shared.ErrDownloadFailed, err)
	}

	if err := waitControl(ctx, control); err != nil {
		os.Remove(partPath)
		return err
	}

	if err := os.Rename(partPath, req.OutputPath); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("%w: finalize: %v", shared.ErrDownloadFailed, err)
	}

	return nil
}

// waitControl blocks while paused and returns [shared.ErrCancelled] when a
// cancel is requested. Context cancellation unblocks a paused download.
func waitControl(ctx context.Context, control Control) error {
	if control == nil {
		return ctx.Err()
	}

	for {
		if control.Cancelled() {
			return shared.ErrCancelled
		}
		if !control.Paused() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func report(progress ProgressFunc, phase DownloadPhase, done, total int64, started time.Time) {
	if progress == nil {
		return
	}

	elapsed := time.Since(started).Seconds()
	speed := 0.0
	if elapsed > 0 {
		speed = float64(done) / elapsed
	}

	eta := -1
	if total > 0 && speed > 0 {
		eta = int(float64(total-done) / speed)
	}

	progress(DownloadProgress{
		Phase:      phase,
		BytesDone:  done,
		BytesTotal: total,
		Speed:      speed,
		ETASec:     eta,
	})
}

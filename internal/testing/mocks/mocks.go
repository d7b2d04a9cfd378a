// package mocks contains test doubles for service interfaces
package mocks

import (
	"context"
	"sync"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/services"
)

// MockLibrary is a test double for [services.Library]
type MockLibrary struct {
	Snapshot     *models.LibrarySnapshot
	AuthErr      error
	RefreshErr   error
	FetchErr     error
	FetchedOpts  services.LibraryOptions
	AuthCalls    int
	RefreshCalls int
}

func (m *MockLibrary) Authenticate(ctx context.Context, credentials map[string]string) error {
	m.AuthCalls++
	return m.AuthErr
}

func (m *MockLibrary) RefreshToken(ctx context.Context) error {
	m.RefreshCalls++
	return m.RefreshErr
}

func (m *MockLibrary) FetchLibrary(ctx context.Context, opts services.LibraryOptions) (*models.LibrarySnapshot, error) {
	m.FetchedOpts = opts
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if m.Snapshot != nil {
		return m.Snapshot, nil
	}
	return &models.LibrarySnapshot{Service: m.Name()}, nil
}

func (m *MockLibrary) Name() string { return "mock" }

// MockSearcher is a test double for [services.Searcher]. Results are keyed
// by query; queries without an entry return the Default slice.
type MockSearcher struct {
	Results map[string][]models.Candidate
	Default []models.Candidate
	Err     error
	Queries []string

	mu sync.Mutex
}

func (m *MockSearcher) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if cands, ok := m.Results[query]; ok {
		return cands, nil
	}
	return m.Default, nil
}

// MockDownloader is a test double for [services.Downloader]. Each call runs
// Script when set, otherwise reports one progress update and succeeds.
type MockDownloader struct {
	Script func(ctx context.Context, req services.DownloadRequest, control services.Control, progress services.ProgressFunc) error
	Err    error

	mu    sync.Mutex
	calls []services.DownloadRequest
}

func (m *MockDownloader) Download(ctx context.Context, req services.DownloadRequest, control services.Control, progress services.ProgressFunc) error {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.Script != nil {
		return m.Script(ctx, req, control, progress)
	}
	if m.Err != nil {
		return m.Err
	}
	if progress != nil {
		progress(services.DownloadProgress{Phase: services.PhaseDownloading, BytesDone: 1, BytesTotal: 1, ETASec: 0})
		progress(services.DownloadProgress{Phase: services.PhaseProcessing, BytesDone: 1, BytesTotal: 1, ETASec: 0})
	}
	return nil
}

// Calls returns a copy of the requests seen so far.
func (m *MockDownloader) Calls() []services.DownloadRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]services.DownloadRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesavant42/omnidash/internal/api"
	"github.com/thesavant42/omnidash/internal/models"
)

// fakeSource serves content per replay URL and tracks concurrency
type fakeSource struct {
	api.MockSource
	failures map[string]error
	delay    time.Duration

	mu       sync.Mutex
	active   int
	peak     int
	requests []string
}

func (f *fakeSource) DownloadSnapshotContent(ctx context.Context, waybackURL string) (string, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.requests = append(f.requests, waybackURL)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, ok := f.failures[waybackURL]; ok {
		return "", err
	}
	return "<html>" + waybackURL + "</html>", nil
}

// fakeStore records writes and flags concurrent writes of one id
type fakeStore struct {
	mu        sync.Mutex
	snapshots map[string]models.SavedSnapshot
	inFlight  map[string]bool
	overlap   int32
	err       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshots: map[string]models.SavedSnapshot{}, inFlight: map[string]bool{}}
}

func (s *fakeStore) SaveSnapshot(ctx context.Context, snap models.SavedSnapshot) error {
	s.mu.Lock()
	if s.inFlight[snap.ID] {
		atomic.AddInt32(&s.overlap, 1)
	}
	s.inFlight[snap.ID] = true
	s.mu.Unlock()

	time.Sleep(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, snap.ID)
	if s.err != nil {
		return s.err
	}
	s.snapshots[snap.ID] = snap
	return nil
}

const replayBase = "https://web.archive.org/web"

func record(ts, original string) models.CDXRecord {
	return models.CDXRecord{Timestamp: ts, Original: original, MimeType: "text/html", StatusCode: "200"}
}

func TestCapture(t *testing.T) {
	source := &fakeSource{}
	store := newFakeStore()
	svc := NewService(source, store, Options{ReplayBase: replayBase}, nil)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	snap, err := svc.Capture(context.Background(), record("20200101000000", "http://a.com/"))
	require.NoError(t, err)

	want := models.SavedSnapshot{
		ID:          "20200101000000_http://a.com/",
		URL:         "https://web.archive.org/web/20200101000000/http://a.com/",
		OriginalURL: "http://a.com/",
		Timestamp:   "20200101000000",
		SavedAt:     1700000000000,
		Content:     "<html>https://web.archive.org/web/20200101000000/http://a.com/</html>",
		MimeType:    "text/html",
	}
	assert.Equal(t, &want, snap)
	assert.Equal(t, want, store.snapshots[want.ID])
}

func TestCaptureFailureStoresNothing(t *testing.T) {
	url := replayBase + "/20200101000000/http://a.com/"
	source := &fakeSource{failures: map[string]error{url: errors.New("CORS Error: exhausted")}}
	store := newFakeStore()
	svc := NewService(source, store, Options{ReplayBase: replayBase}, nil)

	_, err := svc.Capture(context.Background(), record("20200101000000", "http://a.com/"))
	require.Error(t, err)
	assert.Empty(t, store.snapshots)
}

func TestCaptureStoreErrorIsSurfaced(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("disk full")
	svc := NewService(&fakeSource{}, store, Options{ReplayBase: replayBase}, nil)

	_, err := svc.Capture(context.Background(), record("20200101000000", "http://a.com/"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestCaptureAll(t *testing.T) {
	failing := replayBase + "/20200103000000/http://a.com/"
	source := &fakeSource{
		failures: map[string]error{failing: errors.New("boom")},
		delay:    5 * time.Millisecond,
	}
	store := newFakeStore()
	svc := NewService(source, store, Options{ReplayBase: replayBase, Concurrency: 3}, nil)

	var records []models.CDXRecord
	for day := 1; day <= 9; day++ {
		records = append(records, record(fmt.Sprintf("202001%02d000000", day), "http://a.com/"))
	}
	// duplicates of the first two
	records = append(records, records[0], records[1], records[0])

	var calls int32
	result, err := svc.CaptureAll(context.Background(), records, func(p Progress) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 9, p.Total)
	})
	require.NoError(t, err)

	assert.Len(t, result.Saved, 8)
	require.Len(t, result.Failed, 1)
	assert.EqualError(t, result.Failed["20200103000000_http://a.com/"], "boom")
	assert.Equal(t, 3, result.Duplicates)
	assert.Equal(t, int32(9), atomic.LoadInt32(&calls))

	assert.Len(t, store.snapshots, 8)
	assert.Zero(t, atomic.LoadInt32(&store.overlap))
	assert.Len(t, source.requests, 9)
	assert.LessOrEqual(t, source.peak, 3)
}

func TestCaptureAllRateLimit(t *testing.T) {
	source := &fakeSource{}
	svc := NewService(source, newFakeStore(), Options{ReplayBase: replayBase, Concurrency: 4, RateLimit: 50}, nil)

	records := []models.CDXRecord{
		record("20200101000000", "http://a.com/"),
		record("20200102000000", "http://a.com/"),
		record("20200103000000", "http://a.com/"),
		record("20200104000000", "http://a.com/"),
	}

	start := time.Now()
	result, err := svc.CaptureAll(context.Background(), records, nil)
	require.NoError(t, err)
	assert.Len(t, result.Saved, 4)
	// burst of one, then 20ms between starts
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestCaptureAllCancellation(t *testing.T) {
	source := &fakeSource{delay: time.Hour}
	svc := NewService(source, newFakeStore(), Options{ReplayBase: replayBase, Concurrency: 2}, nil)

	var records []models.CDXRecord
	for day := 1; day <= 6; day++ {
		records = append(records, record(fmt.Sprintf("202001%02d000000", day), "http://a.com/"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	result, err := svc.CaptureAll(ctx, records, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Saved)
	assert.LessOrEqual(t, len(source.requests), 2+2)
}

func TestParseReplayURL(t *testing.T) {
	tests := []struct {
		in      string
		want    models.CDXRecord
		wantErr bool
	}{
		{
			in:   "https://web.archive.org/web/20200101000000/http://a.com/page?q=1",
			want: models.CDXRecord{Timestamp: "20200101000000", Original: "http://a.com/page?q=1"},
		},
		{
			in:   "https://web.archive.org/web/20200101000000id_/https://a.com/",
			want: models.CDXRecord{Timestamp: "20200101000000", Original: "https://a.com/"},
		},
		{
			in:      "https://example.com/",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseReplayURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

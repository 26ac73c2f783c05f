package workbench_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/clueword/internal/apperr"
	"github.com/starford/clueword/internal/models"
	"github.com/starford/clueword/internal/waveform"
	"github.com/starford/clueword/internal/workbench"
)

// memStore is an in-memory SessionStore that records every save.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*models.Session
	saves    []models.SessionPayload
	saveErr  error
	getErr   error
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[int64]*models.Session)}
}

func (s *memStore) ListSessions(context.Context) ([]models.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.SessionSummary{}
	for _, sess := range s.sessions {
		out = append(out, sess.Summary())
	}
	return out, nil
}

func (s *memStore) SaveSession(_ context.Context, p models.SessionPayload) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, p)
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	var id int64
	if p.SessionID == nil {
		s.nextID++
		id = s.nextID
	} else {
		id = *p.SessionID
		if _, ok := s.sessions[id]; !ok {
			return nil, &apperr.RemoteError{Status: 404, Message: "Session not found"}
		}
	}
	sess := &models.Session{
		ID:              id,
		SessionName:     p.SessionName,
		CaseInfo:        p.CaseInfo,
		TrackFiles:      p.TrackFiles,
		BandpassEnabled: p.BandpassEnabled,
		Annotations:     p.Annotations.Normalize(),
	}
	s.sessions[id] = sess
	cp := *sess
	return &cp, nil
}

func (s *memStore) GetSession(_ context.Context, id int64) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, &apperr.RemoteError{Status: 404, Message: "Session not found"}
	}
	cp := *sess
	return &cp, nil
}

func (s *memStore) DeleteSession(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return &apperr.RemoteError{Status: 404, Message: "Session not found"}
	}
	delete(s.sessions, id)
	return nil
}

func (s *memStore) put(sess *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	if sess.ID > s.nextID {
		s.nextID = sess.ID
	}
}

func (s *memStore) saved() []models.SessionPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SessionPayload(nil), s.saves...)
}

func (s *memStore) failSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// fakeAudio standardizes by echoing the filename back with the backend's
// default audio path.
type fakeAudio struct{}

func (fakeAudio) Standardize(_ context.Context, track models.Track, filename string, r io.Reader) (*models.StandardizedAudio, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	if filename == "broken.wav" {
		return nil, &apperr.RemoteError{Status: 400, Message: "unsupported format"}
	}
	return &models.StandardizedAudio{Success: true, URL: models.DefaultAudioPath(track), OriginalFilename: filename}, nil
}

func (fakeAudio) AudioURL(path string) string { return "http://backend" + path }

type fakeExporter struct {
	mu   sync.Mutex
	reqs []models.ExportRequest
	err  error
}

func (e *fakeExporter) Export(_ context.Context, req models.ExportRequest) (io.ReadCloser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reqs = append(e.reqs, req)
	if e.err != nil {
		return nil, e.err
	}
	return io.NopCloser(strings.NewReader("PK-archive")), nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []workbench.Notice
	views   int
}

func (n *recordingNotifier) Notify(nt workbench.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, nt)
}

func (n *recordingNotifier) StateChanged(workbench.View) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.views++
}

func (n *recordingNotifier) all() []workbench.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]workbench.Notice(nil), n.notices...)
}

type bench struct {
	wb       *workbench.Workbench
	q, c     *waveform.Headless
	store    *memStore
	exporter *fakeExporter
	notes    *recordingNotifier
}

func (b *bench) renderer(t models.Track) *waveform.Headless {
	if t == models.Control {
		return b.c
	}
	return b.q
}

func newBench(t *testing.T, store *memStore, q, c *waveform.Headless, opts ...workbench.Option) *bench {
	t.Helper()
	if store == nil {
		store = newMemStore()
	}
	return newBenchOver(t, store, store, q, c, opts...)
}

// newBenchOver is newBench with backend standing in front of store.
func newBenchOver(t *testing.T, store *memStore, backend workbench.SessionStore, q, c *waveform.Headless, opts ...workbench.Option) *bench {
	t.Helper()
	if q == nil {
		q = waveform.NewHeadless()
	}
	if c == nil {
		c = waveform.NewHeadless()
	}
	b := &bench{q: q, c: c, store: store, exporter: &fakeExporter{}, notes: &recordingNotifier{}}
	b.wb = workbench.New(q, c, backend, append([]workbench.Option{
		workbench.WithAudioSource(fakeAudio{}),
		workbench.WithExporter(b.exporter),
		workbench.WithNotifier(b.notes),
	}, opts...)...)
	t.Cleanup(func() { b.wb.Close() })
	return b
}

func (b *bench) loadAudio(t *testing.T, track models.Track, filename string) {
	t.Helper()
	if err := b.wb.LoadAudio(context.Background(), track, filename, strings.NewReader("RIFF")); err != nil {
		t.Fatalf("LoadAudio(%s): %v", track, err)
	}
}

func (b *bench) loadBoth(t *testing.T) {
	t.Helper()
	b.loadAudio(t, models.Question, "q.wav")
	b.loadAudio(t, models.Control, "c.wav")
}

// draw simulates a user drag on track and delivers the region-created event.
func (b *bench) draw(t *testing.T, track models.Track, start, end float64) workbench.Region {
	t.Helper()
	reg, err := b.renderer(track).Draw(start, end)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if err := b.wb.HandleRegionCreated(track, reg); err != nil {
		t.Fatalf("HandleRegionCreated: %v", err)
	}
	return reg
}

// annotate draws a region and names it through the naming workflow.
func (b *bench) annotate(t *testing.T, track models.Track, label string, start, end float64) workbench.Annotation {
	t.Helper()
	b.draw(t, track, start, end)
	p, ok := b.wb.RequestNaming(track)
	if !ok {
		t.Fatal("nothing to name")
	}
	ann, err := b.wb.CommitLabel(track, p.Handle, label)
	if err != nil {
		t.Fatalf("CommitLabel: %v", err)
	}
	return ann
}

func (b *bench) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.wb.AutoSaver().Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func within(a, b float64) bool {
	d := a - b
	return d <= workbench.MatchEpsilon && d >= -workbench.MatchEpsilon
}

var errOffline = errors.New("connection refused")

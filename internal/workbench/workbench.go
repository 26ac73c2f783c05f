// Package workbench is the region lifecycle and session synchronization
// engine of the clueword annotator.
//
// A Workbench owns one State. Render-engine events, user actions and network
// completions may arrive on any goroutine; each handler runs to completion
// under the workbench lock, so they observe the same one-event-at-a-time
// ordering a UI event loop would give them. Network calls and renderer calls
// never run while the lock is held: renderer calls decided inside a handler
// are queued and run right after it unlocks, so an engine may report
// region and playback events synchronously from inside them.
package workbench

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/clueword/internal/apperr"
	"github.com/starford/clueword/internal/models"
)

// Option configures a Workbench.
type Option func(*Workbench)

// WithAudioSource sets the audio standardization endpoint.
func WithAudioSource(a AudioSource) Option {
	return func(w *Workbench) { w.audio = a }
}

// WithExporter sets the export endpoint.
func WithExporter(e Exporter) Option {
	return func(w *Workbench) { w.exporter = e }
}

// WithNotifier sets the receiver of notices and state snapshots.
func WithNotifier(n Notifier) Option {
	return func(w *Workbench) { w.notifier = n }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Workbench) { w.log = l }
}

// WithClock overrides the clock used to seed annotation ids.
func WithClock(now func() time.Time) Option {
	return func(w *Workbench) { w.now = now }
}

// WithAutoSaveDelay coalesces auto-saves triggered within d of each other.
func WithAutoSaveDelay(d time.Duration) Option {
	return func(w *Workbench) { w.autosaveDelay = d }
}

// Workbench mediates between the two render engines, the UI and the backend.
type Workbench struct {
	mu        sync.Mutex
	st        *State
	renderers map[models.Track]Renderer
	rev       uint64
	lastID    int64
	// effects holds renderer calls queued by the running handler.
	effects []func()

	// saveMu serializes explicit saves, auto-saves and deletes.
	saveMu   sync.Mutex
	savedSum string

	store         SessionStore
	audio         AudioSource
	exporter      Exporter
	notifier      Notifier
	saver         *AutoSaver
	autosaveDelay time.Duration
	log           *slog.Logger
	now           func() time.Time
}

// New creates a workbench over one renderer per track. Close stops its
// background auto-saver.
func New(question, control Renderer, store SessionStore, opts ...Option) *Workbench {
	w := &Workbench{
		renderers: map[models.Track]Renderer{
			models.Question: question,
			models.Control:  control,
		},
		store:    store,
		notifier: nopNotifier{},
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.st = newState(1, 0)
	w.saver = NewAutoSaver(w.sendAutoSave, w.autosaveDelay, w.log)
	return w
}

// Close flushes pending auto-saves and stops the saver.
func (w *Workbench) Close() error {
	w.saver.Close()
	return nil
}

// AutoSaver exposes the background saver, mainly so callers can Flush it.
func (w *Workbench) AutoSaver() *AutoSaver { return w.saver }

// View returns a snapshot of the current state.
func (w *Workbench) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st.view()
}

// HasUnsavedWork reports whether leaving now would lose work: a region is
// still waiting for a label or annotations changed since the last save.
func (w *Workbench) HasUnsavedWork() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st.hasPending() || w.st.rev > w.st.savedRev
}

// update runs fn under the lock, then the renderer calls fn queued with
// after, then publishes the resulting view.
func (w *Workbench) update(fn func(st *State) error) error {
	w.mu.Lock()
	err := fn(w.st)
	v := w.st.view()
	effects := w.effects
	w.effects = nil
	w.mu.Unlock()

	for _, f := range effects {
		f()
	}
	w.notifier.StateChanged(v)
	return err
}

// after queues f to run once the current update releases the lock.
func (w *Workbench) after(f func()) {
	w.effects = append(w.effects, f)
}

// clearRenderers stops both engines and removes every region. Called without
// the lock.
func (w *Workbench) clearRenderers() {
	for _, t := range models.Tracks {
		r, err := w.renderer(t)
		if err != nil {
			continue
		}
		r.Stop()
		for _, reg := range r.Regions() {
			r.RemoveRegion(reg.Handle)
		}
	}
}

func (w *Workbench) renderer(t models.Track) (Renderer, error) {
	r, ok := w.renderers[t]
	if !ok || r == nil {
		return nil, fmt.Errorf("workbench: no renderer for track %q", t)
	}
	return r, nil
}

func checkTrack(t models.Track) error {
	if !t.Valid() {
		return fmt.Errorf("workbench: unknown track %q", t)
	}
	return nil
}

// nextID hands out strictly increasing annotation ids seeded from the clock.
func (w *Workbench) nextID() int64 {
	id := w.now().UnixMilli()
	if id <= w.lastID {
		id = w.lastID + 1
	}
	w.lastID = id
	return id
}

// touch records an annotation mutation and queues an auto-save when the
// state belongs to a saved session. Called with the lock held.
func (w *Workbench) touch(st *State) {
	w.rev++
	st.rev = w.rev
	st.refreshStage()
	if st.sessionID != nil {
		w.saver.Schedule(st.rev)
	}
}

// notify records n as the last notice and forwards it. Called without the lock.
func (w *Workbench) notify(n Notice) {
	w.mu.Lock()
	w.st.notice = &n
	w.mu.Unlock()
	w.notifier.Notify(n)
}

func (w *Workbench) fail(err error) error {
	level := NoticeError
	if errors.Is(err, apperr.ErrValidation) {
		level = NoticeWarn
	}
	w.notify(Notice{Level: level, Message: err.Error()})
	return err
}

// DismissNotice clears the last notice.
func (w *Workbench) DismissNotice() {
	_ = w.update(func(st *State) error {
		st.notice = nil
		return nil
	})
}

package workbench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"github.com/starford/clueword/internal/apperr"
	"github.com/starford/clueword/internal/checksum"
	"github.com/starford/clueword/internal/models"
)

// Save stores the current state under name. On success the stored id and
// name become the active session; on failure nothing local changes.
func (w *Workbench) Save(ctx context.Context, name string) (*models.Session, error) {
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, validation.Required, validation.Length(1, 200)); err != nil {
		return nil, apperr.Invalid("session_name", err)
	}

	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	w.mu.Lock()
	p := w.st.payload()
	p.SessionName = name
	rev, gen := w.st.rev, w.st.generation
	w.mu.Unlock()

	sess, err := w.store.SaveSession(ctx, p)
	if err != nil {
		w.log.Error("session save failed", slog.String("name", name), slog.Any("error", err))
		return nil, w.fail(apperr.SaveError(err))
	}

	p.SessionID = &sess.ID
	p.SessionName = sess.SessionName
	w.recordSaved(p)

	_ = w.update(func(st *State) error {
		if st.generation != gen {
			return nil
		}
		id := sess.ID
		st.sessionID = &id
		st.sessionName = sess.SessionName
		st.savedRev = max(st.savedRev, rev)
		if st.rev > st.savedRev {
			// edited while the save was in flight
			w.saver.Schedule(st.rev)
		}
		return nil
	})
	w.log.Info("session saved", slog.Int64("id", sess.ID), slog.String("name", sess.SessionName))
	w.notify(Notice{Level: NoticeInfo, Message: fmt.Sprintf("Session %q saved", sess.SessionName), Transient: true})
	return sess, nil
}

// recordSaved remembers the checksum of the last stored payload. Called with
// saveMu held.
func (w *Workbench) recordSaved(p models.SessionPayload) {
	if sum, err := checksum.JSON(p); err == nil {
		w.savedSum = sum
	}
}

// sendAutoSave is the AutoSaver's send function. It builds the payload from
// the state as it is when the send runs, so a save or delete that finished
// in the meantime is always reflected. Nothing is sent when the state has no
// session or nothing changed since the last save. Failures only produce a
// transient notice.
func (w *Workbench) sendAutoSave(ctx context.Context, _ uint64) {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	w.mu.Lock()
	st := w.st
	if st.sessionID == nil || st.rev <= st.savedRev {
		w.mu.Unlock()
		return
	}
	p := st.payload()
	rev, gen := st.rev, st.generation
	w.mu.Unlock()

	sum, err := checksum.JSON(p)
	if err == nil && sum == w.savedSum {
		w.markSaved(gen, rev)
		return
	}

	if _, err := w.store.SaveSession(ctx, p); err != nil {
		w.log.Warn("auto-save failed", slog.Uint64("rev", rev), slog.Any("error", err))
		w.notify(Notice{Level: NoticeWarn, Message: "Auto-save failed: " + err.Error(), Transient: true})
		return
	}
	w.savedSum = sum
	w.markSaved(gen, rev)
	w.log.Debug("auto-saved", slog.Int64("id", *p.SessionID), slog.Uint64("rev", rev))
	w.notify(Notice{Level: NoticeInfo, Message: "Auto-saved", Transient: true})
}

func (w *Workbench) markSaved(gen, rev uint64) {
	w.mu.Lock()
	if w.st.generation == gen {
		w.st.savedRev = max(w.st.savedRev, rev)
	}
	w.mu.Unlock()
}

// TrackReport describes the reload of one track during Load.
type TrackReport struct {
	Track    models.Track
	AudioURL string
	// Reconstructed counts annotations matched to a redrawn region, Skipped
	// those that could not be matched.
	Reconstructed int
	Skipped       int
	// Stale is set when another load or a new session replaced the state
	// before the audio became ready.
	Stale bool
	Err   error
}

// LoadReport describes a completed Load.
type LoadReport struct {
	SessionID   int64
	SessionName string
	Tracks      map[models.Track]*TrackReport
}

// Load fetches session id and makes it the current state. Nothing changes
// if the fetch fails. Tracks that have audio are reloaded concurrently; each
// track's regions are redrawn only after its renderer is ready.
func (w *Workbench) Load(ctx context.Context, id int64) (*LoadReport, error) {
	sess, err := w.store.GetSession(ctx, id)
	if err != nil {
		w.log.Error("session load failed", slog.Int64("id", id), slog.Any("error", err))
		return nil, w.fail(apperr.LoadError(err))
	}

	report := &LoadReport{
		SessionID:   sess.ID,
		SessionName: sess.SessionName,
		Tracks:      make(map[models.Track]*TrackReport),
	}
	urls := make(map[models.Track]string)

	w.mu.Lock()
	st := newState(w.st.generation+1, w.rev)
	st.active = w.st.active
	st.caseInfo = sess.CaseInfo
	st.bandpass = sess.BandpassEnabled
	sid := sess.ID
	st.sessionID = &sid
	st.sessionName = sess.SessionName
	for _, t := range models.Tracks {
		ts := st.track(t)
		ts.filename = sess.Filename(t)
		ts.audioPath = sess.FilePath(t)
		for _, seg := range sess.Annotations.For(t) {
			ts.annotations = append(ts.annotations, Annotation{
				ID:    w.nextID(),
				Track: t,
				Label: seg.Label,
				Start: seg.Start,
				End:   seg.End,
			})
		}
		if ts.filename != "" {
			urls[t] = w.audioURL(t, ts.audioPath)
			report.Tracks[t] = &TrackReport{Track: t, AudioURL: urls[t]}
		}
	}
	st.refreshStage()
	w.st = st
	gen := st.generation
	v := st.view()
	w.mu.Unlock()
	w.clearRenderers()
	w.notifier.StateChanged(v)

	w.log.Info("session loaded", slog.Int64("id", sess.ID), slog.String("name", sess.SessionName))

	var g errgroup.Group
	for t, url := range urls {
		tr := report.Tracks[t]
		g.Go(func() error {
			w.reloadTrack(ctx, gen, t, url, tr)
			return nil
		})
	}
	_ = g.Wait()

	for _, tr := range report.Tracks {
		if tr.Err != nil {
			w.notify(Notice{Level: NoticeWarn, Message: fmt.Sprintf("%s audio could not be reloaded: %v", tr.Track, tr.Err)})
		}
	}
	return report, nil
}

// reloadTrack loads the audio of one track and, once the renderer is ready,
// redraws its annotations.
func (w *Workbench) reloadTrack(ctx context.Context, gen uint64, t models.Track, url string, tr *TrackReport) {
	r, err := w.renderer(t)
	if err != nil {
		tr.Err = err
		return
	}
	if err := r.Load(ctx, url); err != nil {
		tr.Err = &apperr.OpError{Op: apperr.OpAudio, Err: err}
		w.log.Warn("audio reload failed", slog.String("track", string(t)), slog.String("url", url), slog.Any("error", err))
		return
	}
	res, stale := w.redraw(t, gen, func(st *State, ts *trackState) {
		ts.loaded = true
		st.refreshStage()
	})
	tr.Stale = stale
	tr.Reconstructed, tr.Skipped = res.matched, res.skipped
}

func (w *Workbench) audioURL(t models.Track, path string) string {
	if path == "" {
		path = models.DefaultAudioPath(t)
	}
	if w.audio == nil {
		return path
	}
	return w.audio.AudioURL(path)
}

// Delete removes a stored session. Deleting the active session leaves the
// current work in place but unsaved; an auto-save still queued for it is
// dropped.
func (w *Workbench) Delete(ctx context.Context, id int64) error {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()

	if err := w.store.DeleteSession(ctx, id); err != nil {
		w.log.Error("session delete failed", slog.Int64("id", id), slog.Any("error", err))
		return w.fail(&apperr.OpError{Op: apperr.OpDelete, Err: err})
	}
	return w.update(func(st *State) error {
		if st.sessionID != nil && *st.sessionID == id {
			st.sessionID = nil
			st.sessionName = ""
		}
		return nil
	})
}

// List returns the stored sessions.
func (w *Workbench) List(ctx context.Context) ([]models.SessionSummary, error) {
	out, err := w.store.ListSessions(ctx)
	if err != nil {
		return nil, w.fail(&apperr.OpError{Op: apperr.OpList, Err: err})
	}
	return out, nil
}

// NewSession drops all in-memory work. Stored sessions are not touched.
func (w *Workbench) NewSession() {
	w.mu.Lock()
	st := newState(w.st.generation+1, w.rev)
	st.active = w.st.active
	w.st = st
	v := st.view()
	w.mu.Unlock()
	w.clearRenderers()
	w.notifier.StateChanged(v)
}

// LoadAudio standardizes an uploaded file for track, loads it into the
// track's renderer and redraws the track's existing annotations on it.
func (w *Workbench) LoadAudio(ctx context.Context, track models.Track, filename string, r io.Reader) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	if w.audio == nil {
		return errors.New("workbench: no audio source configured")
	}
	rend, err := w.renderer(track)
	if err != nil {
		return err
	}

	std, err := w.audio.Standardize(ctx, track, filename, r)
	if err != nil {
		w.log.Error("audio standardization failed", slog.String("track", string(track)), slog.Any("error", err))
		return w.fail(&apperr.OpError{Op: apperr.OpAudio, Err: err})
	}

	var gen uint64
	_ = w.update(func(st *State) error {
		gen = st.generation
		ts := st.track(track)
		ts.loaded = false
		ts.playing = false
		ts.pending = nil
		clear(ts.links)
		return nil
	})

	url := w.audioURL(track, std.URL)
	if err := rend.Load(ctx, url); err != nil {
		w.log.Error("audio load failed", slog.String("track", string(track)), slog.String("url", url), slog.Any("error", err))
		return w.fail(&apperr.OpError{Op: apperr.OpAudio, Err: err})
	}

	w.redraw(track, gen, func(st *State, ts *trackState) {
		ts.loaded = true
		ts.zoom = defaultZoom
		ts.filename = std.OriginalFilename
		// server-relative, resolved through AudioURL
		ts.audioPath = std.URL
		st.refreshStage()
	})
	return nil
}

// SetCaseInfo replaces the case metadata.
func (w *Workbench) SetCaseInfo(info models.CaseInfo) {
	_ = w.update(func(st *State) error {
		st.caseInfo = info
		st.refreshStage()
		return nil
	})
}

// SetBandpass toggles the bandpass filter flag sent with exports.
func (w *Workbench) SetBandpass(enabled bool) {
	_ = w.update(func(st *State) error {
		st.bandpass = enabled
		return nil
	})
}

// Export streams the clueword archive of the current state to dst.
func (w *Workbench) Export(ctx context.Context, dst io.Writer) (int64, error) {
	if w.exporter == nil {
		return 0, errors.New("workbench: no exporter configured")
	}
	w.mu.Lock()
	if !w.st.canExport() {
		w.mu.Unlock()
		return 0, w.fail(apperr.Invalid("export", errors.New("both tracks need audio, a filename and at least one annotation")))
	}
	req := w.st.exportRequest()
	gen := w.st.generation
	w.mu.Unlock()

	rc, err := w.exporter.Export(ctx, req)
	if err != nil {
		w.log.Error("export failed", slog.Any("error", err))
		return 0, w.fail(&apperr.OpError{Op: apperr.OpExport, Err: err})
	}
	defer rc.Close()
	n, err := io.Copy(dst, rc)
	if err != nil {
		return n, w.fail(&apperr.OpError{Op: apperr.OpExport, Err: err})
	}

	_ = w.update(func(st *State) error {
		if st.generation == gen {
			st.exported = true
			st.refreshStage()
		}
		return nil
	})
	w.log.Info("export complete", slog.Int64("bytes", n))
	w.notify(Notice{Level: NoticeInfo, Message: "Export complete", Transient: true})
	return n, nil
}

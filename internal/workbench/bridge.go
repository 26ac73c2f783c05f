package workbench

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/clueword/internal/apperr"
	"github.com/starford/clueword/internal/models"
)

// HandleRegionCreated queues a user-drawn region for naming.
func (w *Workbench) HandleRegionCreated(track models.Track, r Region) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	return w.update(func(st *State) error {
		ts := st.track(track)
		if ts.pendingIndex(r.Handle) >= 0 {
			return nil
		}
		ts.pending = append(ts.pending, PendingRegion{
			Track:  track,
			Handle: r.Handle,
			Start:  r.Start,
			End:    r.End,
		})
		return nil
	})
}

// PendingRegions returns the naming queue of track, oldest first.
func (w *Workbench) PendingRegions(track models.Track) []PendingRegion {
	w.mu.Lock()
	defer w.mu.Unlock()
	ts := w.st.track(track)
	if ts == nil {
		return nil
	}
	return append([]PendingRegion(nil), ts.pending...)
}

// RequestNaming returns the oldest pending region of track and previews it.
// The region stays queued until CommitLabel or CancelLabel; ok is false when
// nothing is waiting.
func (w *Workbench) RequestNaming(track models.Track) (PendingRegion, bool) {
	if checkTrack(track) != nil {
		return PendingRegion{}, false
	}
	w.mu.Lock()
	ts := w.st.track(track)
	if len(ts.pending) == 0 {
		w.mu.Unlock()
		return PendingRegion{}, false
	}
	head := ts.pending[0]
	w.mu.Unlock()

	if r, err := w.renderer(track); err == nil {
		r.PlayRange(head.Start, head.End)
	}
	return head, true
}

// CommitLabel promotes a pending region into an annotation. A blank label is
// rejected with a validation error and leaves everything as it was.
func (w *Workbench) CommitLabel(track models.Track, h RegionHandle, label string) (Annotation, error) {
	if err := checkTrack(track); err != nil {
		return Annotation{}, err
	}
	label = strings.TrimSpace(label)
	if err := validation.Validate(label, validation.Required); err != nil {
		return Annotation{}, apperr.Invalid("label", err)
	}

	var ann Annotation
	err := w.update(func(st *State) error {
		ts := st.track(track)
		i := ts.pendingIndex(h)
		if i < 0 {
			return fmt.Errorf("workbench: pending region %s: %w", h, apperr.ErrNotFound)
		}
		p := ts.pending[i]
		ts.pending = append(ts.pending[:i], ts.pending[i+1:]...)
		ann = Annotation{
			ID:    w.nextID(),
			Track: track,
			Label: label,
			Start: p.Start,
			End:   p.End,
		}
		ts.links[p.Handle] = ann.ID
		w.add(st, ann)
		return nil
	})
	return ann, err
}

// CancelLabel discards a pending region and removes it from the waveform.
func (w *Workbench) CancelLabel(track models.Track, h RegionHandle) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	return w.update(func(st *State) error {
		ts := st.track(track)
		i := ts.pendingIndex(h)
		if i < 0 {
			return fmt.Errorf("workbench: pending region %s: %w", h, apperr.ErrNotFound)
		}
		ts.pending = append(ts.pending[:i], ts.pending[i+1:]...)
		if r, err := w.renderer(track); err == nil {
			w.after(func() { r.RemoveRegion(h) })
		}
		return nil
	})
}

// HandleRegionRemoved forgets a region the render engine removed on its own.
// The annotation it represented is kept.
func (w *Workbench) HandleRegionRemoved(track models.Track, h RegionHandle) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	return w.update(func(st *State) error {
		ts := st.track(track)
		if i := ts.pendingIndex(h); i >= 0 {
			ts.pending = append(ts.pending[:i], ts.pending[i+1:]...)
		}
		delete(ts.links, h)
		return nil
	})
}

// HandleRegionClicked plays the clicked region.
func (w *Workbench) HandleRegionClicked(track models.Track, h RegionHandle) error {
	r, err := w.renderer(track)
	if err != nil {
		return err
	}
	for _, reg := range r.Regions() {
		if reg.Handle == h {
			r.PlayRange(reg.Start, reg.End)
			return nil
		}
	}
	return fmt.Errorf("workbench: region %s: %w", h, apperr.ErrNotFound)
}

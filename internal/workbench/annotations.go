package workbench

import (
	"fmt"
	"log/slog"

	"github.com/starford/clueword/internal/apperr"
	"github.com/starford/clueword/internal/models"
)

// add appends ann to its track. Called with the lock held.
func (w *Workbench) add(st *State, ann Annotation) {
	ts := st.track(ann.Track)
	ts.annotations = append(ts.annotations, ann)
	w.touch(st)
}

// Annotations returns the annotations of track in insertion order.
func (w *Workbench) Annotations(track models.Track) []Annotation {
	w.mu.Lock()
	defer w.mu.Unlock()
	ts := w.st.track(track)
	if ts == nil {
		return nil
	}
	return append([]Annotation(nil), ts.annotations...)
}

// CanExport reports whether an export may run now.
func (w *Workbench) CanExport() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st.canExport()
}

// Remove deletes an annotation together with the live region that currently
// shows it.
func (w *Workbench) Remove(track models.Track, id int64) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	r, rerr := w.renderer(track)
	var live []Region
	if rerr == nil {
		live = r.Regions()
	}
	return w.update(func(st *State) error {
		ts := st.track(track)
		i := ts.annotationIndex(id)
		if i < 0 {
			return fmt.Errorf("workbench: annotation %d: %w", id, apperr.ErrNotFound)
		}
		ann := ts.annotations[i]
		if rerr == nil && ts.loaded {
			if h, ok := resolveRegion(live, ts, ann); ok {
				delete(ts.links, h)
				w.after(func() { r.RemoveRegion(h) })
			}
		}
		ts.unlink(id)
		ts.annotations = append(ts.annotations[:i], ts.annotations[i+1:]...)
		w.touch(st)
		return nil
	})
}

// resolveRegion finds the live region showing ann by its bounds. A region
// linked to another annotation is never taken, even when the bounds match.
func resolveRegion(live []Region, ts *trackState, ann Annotation) (RegionHandle, bool) {
	for _, reg := range live {
		if !ann.matches(reg.Start, reg.End) {
			continue
		}
		if linked, ok := ts.links[reg.Handle]; !ok || linked == ann.ID {
			return reg.Handle, true
		}
	}
	return "", false
}

// HandleRegionUpdated applies a drag or resize reported by the render engine.
// Pending regions get their queued bounds updated; annotations are found
// through the region lookup and updated in place.
func (w *Workbench) HandleRegionUpdated(track models.Track, h RegionHandle, start, end float64) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	if end <= start {
		return apperr.Invalid("region", fmt.Errorf("end %.3f must be greater than start %.3f", end, start))
	}
	return w.update(func(st *State) error {
		ts := st.track(track)
		if i := ts.pendingIndex(h); i >= 0 {
			ts.pending[i].Start, ts.pending[i].End = start, end
			return nil
		}
		id, ok := ts.links[h]
		if !ok {
			return nil
		}
		i := ts.annotationIndex(id)
		if i < 0 {
			delete(ts.links, h)
			return nil
		}
		ts.annotations[i].Start, ts.annotations[i].End = start, end
		w.touch(st)
		return nil
	})
}

// PlayAnnotation plays the range of one annotation.
func (w *Workbench) PlayAnnotation(track models.Track, id int64) error {
	r, err := w.renderer(track)
	if err != nil {
		return err
	}
	w.mu.Lock()
	ts := w.st.track(track)
	i := ts.annotationIndex(id)
	if i < 0 {
		w.mu.Unlock()
		return fmt.Errorf("workbench: annotation %d: %w", id, apperr.ErrNotFound)
	}
	ann, loaded := ts.annotations[i], ts.loaded
	w.mu.Unlock()

	if loaded {
		r.PlayRange(ann.Start, ann.End)
	}
	return nil
}

type reconstruction struct {
	created int
	matched int
	skipped int
}

// redraw replaces the regions of track with one per annotation and rebuilds
// the region lookup by (start,end) matching. The renderer is driven without
// the lock; if the state was swapped meanwhile (generation gen is gone) the
// drawn regions are taken back and stale is reported. done runs under the
// lock once the lookup is rebuilt. Annotations that cannot be drawn or
// matched are logged and skipped.
func (w *Workbench) redraw(track models.Track, gen uint64, done func(st *State, ts *trackState)) (res reconstruction, stale bool) {
	r, err := w.renderer(track)
	if err != nil {
		return res, false
	}

	w.mu.Lock()
	if w.st.generation != gen {
		w.mu.Unlock()
		return res, true
	}
	ts := w.st.track(track)
	anns := append([]Annotation(nil), ts.annotations...)
	clear(ts.links)
	w.mu.Unlock()

	for _, reg := range r.Regions() {
		r.RemoveRegion(reg.Handle)
	}
	drawn := make([]RegionHandle, 0, len(anns))
	for _, ann := range anns {
		h, err := r.AddRegion(ann.Start, ann.End)
		if err != nil {
			w.log.Warn("region not recreated",
				slog.String("track", string(track)),
				slog.Int64("annotation", ann.ID),
				slog.Any("error", err),
			)
			continue
		}
		drawn = append(drawn, h)
		res.created++
	}
	live := r.Regions()

	_ = w.update(func(st *State) error {
		if st.generation != gen {
			stale = true
			return nil
		}
		ts := st.track(track)
		for _, ann := range anns {
			i := ts.annotationIndex(ann.ID)
			if i < 0 {
				// removed while drawing: take its region back
				if h, ok := matchRegion(live, ts.links, ann); ok {
					ts.links[h] = ann.ID
					w.after(func() { r.RemoveRegion(h) })
					defer delete(ts.links, h)
				}
				continue
			}
			if ts.linked(ann.ID) {
				continue
			}
			h, ok := matchRegion(live, ts.links, ts.annotations[i])
			if !ok {
				res.skipped++
				w.log.Warn("annotation has no matching region",
					slog.String("track", string(track)),
					slog.Int64("annotation", ann.ID),
					slog.String("label", ann.Label),
					slog.Float64("start", ann.Start),
					slog.Float64("end", ann.End),
				)
				continue
			}
			ts.links[h] = ann.ID
			res.matched++
		}
		if done != nil {
			done(st, ts)
		}
		return nil
	})
	if stale {
		for _, h := range drawn {
			r.RemoveRegion(h)
		}
	}
	return res, stale
}
func matchRegion(live []Region, links map[RegionHandle]int64, ann Annotation) (RegionHandle, bool) {
	for _, reg := range live {
		if _, taken := links[reg.Handle]; taken {
			continue
		}
		if ann.matches(reg.Start, reg.End) {
			return reg.Handle, true
		}
	}
	return "", false
}

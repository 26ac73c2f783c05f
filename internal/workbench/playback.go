package workbench

import (
	"fmt"

	"github.com/starford/clueword/internal/models"
)

// ZoomDirection selects zoom in or out.
type ZoomDirection int

const (
	ZoomIn ZoomDirection = iota
	ZoomOut
)

const (
	zoomInFactor  = 1.25
	zoomOutFactor = 0.8
)

// PlaybackEvent is a playback notification from a render engine.
type PlaybackEvent string

const (
	EventPlay   PlaybackEvent = "play"
	EventPause  PlaybackEvent = "pause"
	EventFinish PlaybackEvent = "finish"
)

func clampZoom(z float64) float64 {
	return min(max(z, minZoom), maxZoom)
}

// Zoom scales the zoom factor of track and applies it to the render engine.
// It returns the resulting factor; nothing changes while the track has no
// drawable audio.
func (w *Workbench) Zoom(track models.Track, dir ZoomDirection) (float64, error) {
	r, err := w.renderer(track)
	if err != nil {
		return 0, err
	}
	ready := r.Ready()
	var level float64
	err = w.update(func(st *State) error {
		ts := st.track(track)
		level = ts.zoom
		if !ts.loaded || !ready {
			return nil
		}
		factor := zoomInFactor
		if dir == ZoomOut {
			factor = zoomOutFactor
		}
		level = clampZoom(ts.zoom * factor)
		ts.zoom = level
		w.after(func() {
			r.SetZoom(level)
			r.DrawCurrentBuffer()
		})
		return nil
	})
	return level, err
}

// TogglePlayback plays or pauses track.
func (w *Workbench) TogglePlayback(track models.Track) error {
	r, err := w.renderer(track)
	if err != nil {
		return err
	}
	return w.update(func(st *State) error {
		ts := st.track(track)
		if !ts.loaded {
			return nil
		}
		if ts.playing {
			w.after(r.Pause)
		} else {
			w.after(r.Play)
		}
		ts.playing = !ts.playing
		return nil
	})
}

// Stop stops playback of track.
func (w *Workbench) Stop(track models.Track) error {
	r, err := w.renderer(track)
	if err != nil {
		return err
	}
	return w.update(func(st *State) error {
		ts := st.track(track)
		if !ts.loaded {
			return nil
		}
		w.after(r.Stop)
		ts.playing = false
		return nil
	})
}

// HandlePlaybackEvent mirrors the engine's playback state, whatever started
// or stopped it.
func (w *Workbench) HandlePlaybackEvent(track models.Track, ev PlaybackEvent) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	var playing bool
	switch ev {
	case EventPlay:
		playing = true
	case EventPause, EventFinish:
	default:
		return fmt.Errorf("workbench: unknown playback event %q", ev)
	}
	return w.update(func(st *State) error {
		st.track(track).playing = playing
		return nil
	})
}

// Activate makes track the one receiving wheel and keyboard actions.
func (w *Workbench) Activate(track models.Track) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	return w.update(func(st *State) error {
		st.active = track
		return nil
	})
}

// ActiveTrack returns the active track.
func (w *Workbench) ActiveTrack() models.Track {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st.active
}

// ZoomActive zooms the active track.
func (w *Workbench) ZoomActive(dir ZoomDirection) (float64, error) {
	return w.Zoom(w.ActiveTrack(), dir)
}

// TogglePlaybackActive plays or pauses the active track.
func (w *Workbench) TogglePlaybackActive() error {
	return w.TogglePlayback(w.ActiveTrack())
}

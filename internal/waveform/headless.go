// Package waveform provides a headless render engine: it keeps regions,
// zoom and playback in memory without decoding or drawing audio. The restore
// command and the workbench tests drive it in place of a browser waveform.
package waveform

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/clueword/internal/workbench"
)

// Option configures a Headless renderer.
type Option func(*Headless)

// WithLoadDelay delays the ready signal of every Load by d.
func WithLoadDelay(d time.Duration) Option {
	return func(h *Headless) { h.loadDelay = d }
}

// WithLoadError makes every Load fail with err.
func WithLoadError(err error) Option {
	return func(h *Headless) { h.loadErr = err }
}

// WithRegionTransform rewrites the bounds of programmatically added regions,
// e.g. to simulate engine-side rounding.
func WithRegionTransform(fn func(start, end float64) (float64, float64)) Option {
	return func(h *Headless) { h.transform = fn }
}

// Range is a played interval.
type Range struct {
	Start, End float64
}

// Headless is an in-memory workbench.Renderer.
type Headless struct {
	loadDelay time.Duration
	loadErr   error
	transform func(start, end float64) (float64, float64)

	mu      sync.Mutex
	url     string
	ready   bool
	loads   int
	regions []workbench.Region
	zoom    float64
	draws   int
	playing bool
	played  []Range
}

var _ workbench.Renderer = (*Headless)(nil)

// NewHeadless creates an empty renderer.
func NewHeadless(opts ...Option) *Headless {
	h := &Headless{zoom: 1}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Load replaces the current audio. Existing regions do not survive it.
func (h *Headless) Load(ctx context.Context, url string) error {
	if url == "" {
		return errors.New("waveform: empty audio url")
	}
	h.mu.Lock()
	h.ready = false
	h.playing = false
	h.regions = nil
	h.loads++
	h.mu.Unlock()

	if h.loadDelay > 0 {
		t := time.NewTimer(h.loadDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	if h.loadErr != nil {
		return fmt.Errorf("waveform: load %s: %w", url, h.loadErr)
	}

	h.mu.Lock()
	h.url = url
	h.ready = true
	h.zoom = 1
	h.mu.Unlock()
	return nil
}

// Ready reports whether audio is loaded and drawable.
func (h *Headless) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// URL returns the loaded audio URL.
func (h *Headless) URL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.url
}

// Loads counts Load calls.
func (h *Headless) Loads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loads
}

// AddRegion draws a region.
func (h *Headless) AddRegion(start, end float64) (workbench.RegionHandle, error) {
	r, err := h.addRegion(start, end, h.transform)
	return r.Handle, err
}

// Draw simulates a user drag-selection and returns the region the engine
// would report in its region-created event.
func (h *Headless) Draw(start, end float64) (workbench.Region, error) {
	return h.addRegion(start, end, nil)
}

func (h *Headless) addRegion(start, end float64, transform func(start, end float64) (float64, float64)) (workbench.Region, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ready {
		return workbench.Region{}, errors.New("waveform: not ready")
	}
	if transform != nil {
		start, end = transform(start, end)
	}
	if end <= start {
		return workbench.Region{}, fmt.Errorf("waveform: empty region [%.3f, %.3f]", start, end)
	}
	r := workbench.Region{Handle: workbench.RegionHandle(uuid.NewString()), Start: start, End: end}
	h.regions = append(h.regions, r)
	return r, nil
}

// Resize moves an existing region, as a user drag would.
func (h *Headless) Resize(handle workbench.RegionHandle, start, end float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := slices.IndexFunc(h.regions, func(r workbench.Region) bool { return r.Handle == handle })
	if i < 0 {
		return fmt.Errorf("waveform: no region %s", handle)
	}
	h.regions[i].Start, h.regions[i].End = start, end
	return nil
}

// RemoveRegion deletes a region; unknown handles are ignored.
func (h *Headless) RemoveRegion(handle workbench.RegionHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.regions = slices.DeleteFunc(h.regions, func(r workbench.Region) bool { return r.Handle == handle })
}

// Regions returns the live regions in creation order.
func (h *Headless) Regions() []workbench.Region {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.regions)
}

func (h *Headless) SetZoom(level float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.zoom = level
}

func (h *Headless) DrawCurrentBuffer() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.draws++
}

// Zoom returns the last applied zoom level.
func (h *Headless) Zoom() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.zoom
}

// Draws counts redraws.
func (h *Headless) Draws() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.draws
}

func (h *Headless) Play() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = h.ready
}

func (h *Headless) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
}

func (h *Headless) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
}

func (h *Headless) PlayRange(start, end float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.played = append(h.played, Range{Start: start, End: end})
	h.playing = h.ready
}

// Playing reports whether playback is running.
func (h *Headless) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

// Played returns every range passed to PlayRange.
func (h *Headless) Played() []Range {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.played)
}

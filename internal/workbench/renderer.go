package workbench

import (
	"context"
	"io"

	"github.com/starford/clueword/internal/models"
)

// RegionHandle identifies a live region inside one render engine. It is only
// meaningful while the engine's current audio stays loaded.
type RegionHandle string

// Region is a time interval drawn on a waveform.
type Region struct {
	Handle RegionHandle
	Start  float64
	End    float64
}

// Zoomer is the zoom capability every render engine adapter implements.
type Zoomer interface {
	SetZoom(level float64)
	DrawCurrentBuffer()
}

// Renderer is the per-track render engine. Load returns once the engine is
// ready to draw or the load failed. AddRegion does not emit a region-created
// event; user-drawn regions reach the workbench through HandleRegionCreated.
//
// The workbench never holds its lock while calling a Renderer, so an
// implementation may call HandleRegionRemoved or HandlePlaybackEvent from
// inside RemoveRegion, Play, Pause or Stop.
type Renderer interface {
	Zoomer
	Load(ctx context.Context, url string) error
	Ready() bool
	AddRegion(start, end float64) (RegionHandle, error)
	RemoveRegion(h RegionHandle)
	Regions() []Region
	Play()
	Pause()
	Stop()
	PlayRange(start, end float64)
}

// SessionStore is the backend session CRUD contract.
type SessionStore interface {
	ListSessions(ctx context.Context) ([]models.SessionSummary, error)
	SaveSession(ctx context.Context, p models.SessionPayload) (*models.Session, error)
	GetSession(ctx context.Context, id int64) (*models.Session, error)
	DeleteSession(ctx context.Context, id int64) error
}

// AudioSource standardizes uploaded audio and resolves stored audio paths.
type AudioSource interface {
	Standardize(ctx context.Context, track models.Track, filename string, r io.Reader) (*models.StandardizedAudio, error)
	AudioURL(path string) string
}

// Exporter produces the clueword archive.
type Exporter interface {
	Export(ctx context.Context, req models.ExportRequest) (io.ReadCloser, error)
}

// NoticeLevel grades a status message.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a non-blocking status message. Transient notices disappear on
// their own; the others wait to be dismissed.
type Notice struct {
	Level     NoticeLevel
	Message   string
	Transient bool
}

// Notifier receives status messages and state snapshots. It is called
// without the workbench lock held but must not block.
type Notifier interface {
	Notify(n Notice)
	StateChanged(v View)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice)     {}
func (nopNotifier) StateChanged(View) {}

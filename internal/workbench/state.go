package workbench

import (
	"math"

	"github.com/starford/clueword/internal/models"
	"github.com/starford/clueword/internal/progress"
)

// MatchEpsilon is the tolerance, in seconds, used to pair an annotation with
// a live region.
const MatchEpsilon = 0.01

const (
	minZoom     = 0.1
	maxZoom     = 100.0
	defaultZoom = 1.0
)

// PendingRegion is a drawn region that has not been labeled yet.
type PendingRegion struct {
	Track  models.Track
	Handle RegionHandle
	Start  float64
	End    float64
}

// Annotation is a committed, labeled segment of one track.
type Annotation struct {
	ID    int64
	Track models.Track
	Label string
	Start float64
	End   float64
}

// Segment reduces the annotation to its persisted form.
func (a Annotation) Segment() models.Segment {
	return models.Segment{Label: a.Label, Start: a.Start, End: a.End}
}

func (a Annotation) matches(start, end float64) bool {
	return math.Abs(a.Start-start) <= MatchEpsilon && math.Abs(a.End-end) <= MatchEpsilon
}

type trackState struct {
	pending     []PendingRegion
	annotations []Annotation
	// links maps live region handles to annotation ids. It is rebuilt by
	// (start,end) matching whenever the track's audio is (re)loaded.
	links     map[RegionHandle]int64
	loaded    bool
	filename  string
	audioPath string
	zoom      float64
	playing   bool
}

func newTrackState() *trackState {
	return &trackState{links: make(map[RegionHandle]int64), zoom: defaultZoom}
}

func (ts *trackState) pendingIndex(h RegionHandle) int {
	for i, p := range ts.pending {
		if p.Handle == h {
			return i
		}
	}
	return -1
}

func (ts *trackState) annotationIndex(id int64) int {
	for i, a := range ts.annotations {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (ts *trackState) unlink(id int64) {
	for h, linked := range ts.links {
		if linked == id {
			delete(ts.links, h)
		}
	}
}

func (ts *trackState) linked(id int64) bool {
	for _, linked := range ts.links {
		if linked == id {
			return true
		}
	}
	return false
}

func (ts *trackState) segments() []models.Segment {
	out := make([]models.Segment, 0, len(ts.annotations))
	for _, a := range ts.annotations {
		out = append(out, a.Segment())
	}
	return out
}

// State is the whole in-memory session. Load and NewSession replace it in one
// swap; everything else mutates it under the workbench lock.
type State struct {
	tracks      map[models.Track]*trackState
	caseInfo    models.CaseInfo
	bandpass    bool
	sessionID   *int64
	sessionName string
	stage       progress.Stage
	exported    bool
	active      models.Track
	notice      *Notice

	// generation changes on every swap so in-flight reloads can tell they
	// belong to a replaced state.
	generation uint64
	// rev is the workbench revision of the last mutation, savedRev the
	// revision the last successful save covered.
	rev      uint64
	savedRev uint64
}

func newState(generation, rev uint64) *State {
	st := &State{
		tracks:     make(map[models.Track]*trackState, len(models.Tracks)),
		active:     models.Question,
		generation: generation,
		rev:        rev,
		savedRev:   rev,
	}
	for _, t := range models.Tracks {
		st.tracks[t] = newTrackState()
	}
	return st
}

func (st *State) track(t models.Track) *trackState { return st.tracks[t] }

func (st *State) files() models.TrackFiles {
	q, c := st.track(models.Question), st.track(models.Control)
	return models.TrackFiles{
		QuestionFilename: q.filename,
		ControlFilename:  c.filename,
		QuestionFilePath: q.audioPath,
		ControlFilePath:  c.audioPath,
	}
}

func (st *State) annotationSegments() models.TrackSegments {
	var ts models.TrackSegments
	for _, t := range models.Tracks {
		ts.Set(t, st.track(t).segments())
	}
	return ts
}

// payload builds the wire form of the state. Region handles and local ids
// are dropped.
func (st *State) payload() models.SessionPayload {
	var id *int64
	if st.sessionID != nil {
		v := *st.sessionID
		id = &v
	}
	return models.SessionPayload{
		SessionID:       id,
		SessionName:     st.sessionName,
		CaseInfo:        st.caseInfo,
		TrackFiles:      st.files(),
		BandpassEnabled: st.bandpass,
		Annotations:     st.annotationSegments(),
	}
}

func (st *State) exportRequest() models.ExportRequest {
	files := st.files()
	return models.ExportRequest{
		Annotations:      st.annotationSegments(),
		QuestionFilename: files.QuestionFilename,
		ControlFilename:  files.ControlFilename,
		BandpassEnabled:  st.bandpass,
		CaseInfo:         st.caseInfo,
	}
}

// canExport holds when both tracks have loaded audio, at least one
// annotation and a known original filename.
func (st *State) canExport() bool {
	for _, t := range models.Tracks {
		ts := st.track(t)
		if !ts.loaded || len(ts.annotations) == 0 || ts.filename == "" {
			return false
		}
	}
	return true
}

func (st *State) hasPending() bool {
	for _, t := range models.Tracks {
		if len(st.track(t).pending) > 0 {
			return true
		}
	}
	return false
}

func (st *State) refreshStage() {
	q, c := st.track(models.Question), st.track(models.Control)
	st.stage = progress.Derive(st.stage, progress.Inputs{
		CaseInfoEntered: st.caseInfo.Entered(),
		QuestionLoaded:  q.loaded,
		ControlLoaded:   c.loaded,
		Annotated:       len(q.annotations) > 0 || len(c.annotations) > 0,
		Exported:        st.exported,
	})
}

// TrackView is the read-only state of one track.
type TrackView struct {
	Annotations []Annotation
	Pending     int
	CanName     bool
	Zoom        float64
	Playing     bool
	Loaded      bool
	Filename    string
	AudioPath   string
}

// View is a read-only snapshot of the workbench for a UI.
type View struct {
	Tracks      map[models.Track]TrackView
	CaseInfo    models.CaseInfo
	Bandpass    bool
	SessionID   *int64
	SessionName string
	Active      models.Track
	CanExport   bool
	Stage       progress.Stage
	Unsaved     bool
	Notice      *Notice
}

func (st *State) view() View {
	v := View{
		Tracks:      make(map[models.Track]TrackView, len(st.tracks)),
		CaseInfo:    st.caseInfo,
		Bandpass:    st.bandpass,
		SessionName: st.sessionName,
		Active:      st.active,
		CanExport:   st.canExport(),
		Stage:       st.stage,
		Unsaved:     st.hasPending() || st.rev > st.savedRev,
	}
	if st.sessionID != nil {
		id := *st.sessionID
		v.SessionID = &id
	}
	if st.notice != nil {
		n := *st.notice
		v.Notice = &n
	}
	for t, ts := range st.tracks {
		v.Tracks[t] = TrackView{
			Annotations: append([]Annotation(nil), ts.annotations...),
			Pending:     len(ts.pending),
			CanName:     len(ts.pending) > 0,
			Zoom:        ts.zoom,
			Playing:     ts.playing,
			Loaded:      ts.loaded,
			Filename:    ts.filename,
			AudioPath:   ts.audioPath,
		}
	}
	return v
}

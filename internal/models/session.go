// Package models defines the domain and wire types for clueword sessions.
package models

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Track identifies one of the two compared audio channels.
type Track string

const (
	Question Track = "question"
	Control  Track = "control"
)

// Tracks lists both tracks in display order.
var Tracks = [2]Track{Question, Control}

// Valid reports whether t is one of the two known tracks.
func (t Track) Valid() bool {
	return t == Question || t == Control
}

// ParseTrack converts a string into a Track.
func ParseTrack(s string) (Track, error) {
	t := Track(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown track %q", s)
	}
	return t, nil
}

// Segment is the persisted form of an annotation. Region handles and local
// ids are never part of it.
type Segment struct {
	Label string  `json:"label"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Validate checks the segment bounds and label.
func (s Segment) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Label, validation.Required),
		validation.Field(&s.Start, validation.Min(0.0)),
		validation.Field(&s.End, validation.By(func(any) error {
			if s.End <= s.Start {
				return errors.New("must be greater than start")
			}
			return nil
		})),
	)
}

// TrackSegments holds both tracks' segments.
type TrackSegments struct {
	Question []Segment `json:"question"`
	Control  []Segment `json:"control"`
}

// For returns the segments of track t.
func (ts TrackSegments) For(t Track) []Segment {
	if t == Control {
		return ts.Control
	}
	return ts.Question
}

// Set replaces the segments of track t.
func (ts *TrackSegments) Set(t Track, segs []Segment) {
	if t == Control {
		ts.Control = segs
		return
	}
	ts.Question = segs
}

// Normalize replaces nil lists with empty ones so they encode as [].
func (ts TrackSegments) Normalize() TrackSegments {
	if ts.Question == nil {
		ts.Question = []Segment{}
	}
	if ts.Control == nil {
		ts.Control = []Segment{}
	}
	return ts
}

// Validate validates every segment of both tracks.
func (ts TrackSegments) Validate() error {
	return validation.ValidateStruct(&ts,
		validation.Field(&ts.Question),
		validation.Field(&ts.Control),
	)
}

// CaseInfo is the free-text case metadata of a session.
type CaseInfo struct {
	CaseNumber    string `json:"case_number"`
	PoliceStation string `json:"police_station"`
	District      string `json:"district"`
	CRNumber      string `json:"cr_number"`
	SpeakerName   string `json:"speaker_name"`
}

// Entered reports whether any field carries non-blank text.
func (c CaseInfo) Entered() bool {
	for _, v := range []string{c.CaseNumber, c.PoliceStation, c.District, c.CRNumber, c.SpeakerName} {
		if trimmed(v) != "" {
			return true
		}
	}
	return false
}

// TrackFiles holds per-track file information.
type TrackFiles struct {
	QuestionFilename string `json:"question_filename"`
	ControlFilename  string `json:"control_filename"`
	QuestionFilePath string `json:"question_file_path"`
	ControlFilePath  string `json:"control_file_path"`
}

// Filename returns the original filename of track t.
func (f TrackFiles) Filename(t Track) string {
	if t == Control {
		return f.ControlFilename
	}
	return f.QuestionFilename
}

// FilePath returns the standardized audio path of track t.
func (f TrackFiles) FilePath(t Track) string {
	if t == Control {
		return f.ControlFilePath
	}
	return f.QuestionFilePath
}

// SessionPayload is the create-or-update body sent to the session store.
type SessionPayload struct {
	SessionID   *int64 `json:"session_id"`
	SessionName string `json:"session_name"`
	CaseInfo
	TrackFiles
	BandpassEnabled bool          `json:"bandpass_enabled"`
	Annotations     TrackSegments `json:"annotations"`
}

// Validate validates the payload.
func (p SessionPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.SessionName, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Annotations),
	)
}

// Session is a stored session as returned by the store.
type Session struct {
	ID          int64  `json:"id"`
	SessionName string `json:"session_name"`
	CaseInfo
	TrackFiles
	BandpassEnabled bool          `json:"bandpass_enabled"`
	Annotations     TrackSegments `json:"annotations"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// SessionSummary is a lightweight item in a list response.
type SessionSummary struct {
	ID          int64  `json:"id"`
	SessionName string `json:"session_name"`
	CaseInfo
	HasQuestionAudio bool      `json:"has_question_audio"`
	HasControlAudio  bool      `json:"has_control_audio"`
	QuestionCount    int       `json:"question_count"`
	ControlCount     int       `json:"control_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Summary reduces a session to its list form.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:               s.ID,
		SessionName:      s.SessionName,
		CaseInfo:         s.CaseInfo,
		HasQuestionAudio: s.QuestionFilename != "",
		HasControlAudio:  s.ControlFilename != "",
		QuestionCount:    len(s.Annotations.Question),
		ControlCount:     len(s.Annotations.Control),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

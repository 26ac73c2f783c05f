package models

import "strings"

// StandardizedAudio is the answer of the audio standardization endpoint.
type StandardizedAudio struct {
	Success          bool   `json:"success"`
	URL              string `json:"url"`
	OriginalFilename string `json:"original_filename"`
}

// ExportRequest carries everything the export endpoint needs to build the
// clueword archive.
type ExportRequest struct {
	Annotations      TrackSegments
	QuestionFilename string
	ControlFilename  string
	BandpassEnabled  bool
	CaseInfo         CaseInfo
}

// DefaultAudioPath is where the backend keeps the standardized audio of track
// when a session carries no explicit path.
func DefaultAudioPath(track Track) string {
	return "/static/temp_standardized/" + string(track) + "_standardized.wav"
}

func trimmed(s string) string { return strings.TrimSpace(s) }

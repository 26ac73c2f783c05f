// Package testutil provides shared test helpers for setting up session databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/clueword/internal/models"
	"github.com/starford/clueword/internal/sessionstore"
)

// TestDB creates a temporary SQLite session database that is automatically cleaned up.
func TestDB(t *testing.T) *sessionstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "clueword-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := sessionstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Payload returns a valid payload named name with one segment per track.
func Payload(name string) models.SessionPayload {
	return models.SessionPayload{
		SessionName: name,
		CaseInfo:    models.CaseInfo{CaseNumber: "CN-1", SpeakerName: "Speaker"},
		TrackFiles: models.TrackFiles{
			QuestionFilename: "q.wav",
			ControlFilename:  "c.wav",
			QuestionFilePath: "/static/temp_standardized/question_standardized.wav",
			ControlFilePath:  "/static/temp_standardized/control_standardized.wav",
		},
		BandpassEnabled: true,
		Annotations: models.TrackSegments{
			Question: []models.Segment{{Label: "hello", Start: 1.0, End: 2.5}},
			Control:  []models.Segment{{Label: "hello", Start: 0.5, End: 1.25}},
		},
	}
}

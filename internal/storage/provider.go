// Package storage keeps export archives in a local directory.
package storage

import (
	"io"
	"time"
)

// Entry describes one stored file.
type Entry struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for archive file operations. Paths are relative
// to the provider root.
type Provider interface {
	// List returns every file under dir whose name ends with ext ("" for all).
	List(dir, ext string) ([]Entry, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// WriteWith atomically writes whatever fn produces to path. Nothing
	// appears at path if fn fails.
	WriteWith(path string, fn func(w io.Writer) error) error
	// Delete removes the file at path.
	Delete(path string) error
}

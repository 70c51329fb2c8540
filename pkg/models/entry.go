// Package models contains shared data types used across the client.
package models

import (
	"strings"
	"time"
)

// Kind classifies a listing entry for rendering.
type Kind int

const (
	KindOther Kind = iota
	KindFolder
	KindImage
	KindVideo
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindText:
		return "text"
	default:
		return "other"
	}
}

var (
	imageExtensions = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true}
	videoExtensions = map[string]bool{"mp4": true, "webm": true, "ogg": true}
	textExtensions  = map[string]bool{"txt": true, "md": true, "py": true, "js": true, "html": true, "css": true}
)

// FileEntry is one line item of a folder listing. Entries are snapshots of a
// single listing response and are never modified after creation.
type FileEntry struct {
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	Extension string `json:"extension,omitempty"`
}

// IsFolder reports whether the entry is a folder.
func (e FileEntry) IsFolder() bool {
	return e.Kind == KindFolder
}

// Previewable reports whether the server offers a text preview for the entry.
func (e FileEntry) Previewable() bool {
	return e.Kind == KindText
}

// Extension returns the lower-cased text after the last dot of name, or ""
// when name has no dot.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Classify derives a FileEntry from a name returned by a listing.
// A name without a dot is a folder.
func Classify(name string) FileEntry {
	if !strings.Contains(name, ".") {
		return FileEntry{Name: name, Kind: KindFolder}
	}

	ext := Extension(name)
	entry := FileEntry{Name: name, Kind: KindOther, Extension: ext}
	switch {
	case imageExtensions[ext]:
		entry.Kind = KindImage
	case videoExtensions[ext]:
		entry.Kind = KindVideo
	case textExtensions[ext]:
		entry.Kind = KindText
	}
	return entry
}

// PreviewLine is one line of a text preview.
type PreviewLine struct {
	Text string `json:"text"`
	// Recent is false for lines past the highlighted head of the preview.
	Recent bool `json:"recent"`
}

// PublicLink is a shareable, server-expired link to a single file.
type PublicLink struct {
	TempToken string    `json:"temp_token"`
	ShortURL  string    `json:"short_url"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

package history

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// Origin records which file operation produced a snapshot.
type Origin string

const (
	OriginOpen   Origin = "open"
	OriginSaveAs Origin = "save_as"
	OriginSave   Origin = "save"
)

// Snapshot is the text of a file as it was opened or saved.
type Snapshot struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Origin    Origin    `json:"origin"`
	Size      int       `json:"size"`
	Content   string    `json:"content,omitempty"` // empty in listings
	CreatedAt time.Time `json:"createdAt"`
}

// Entry summarizes the snapshots of one path.
type Entry struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Snapshots int       `json:"snapshots"`
	LastSeen  time.Time `json:"lastSeen"`
}

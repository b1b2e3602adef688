// Package storage persists built similarity indexes as versioned artifacts.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/eiga/internal/index"
)

// ErrNoArtifact is returned when the store holds no artifact to load.
var ErrNoArtifact = errors.New("no index artifact stored")

// ArtifactInfo summarizes one stored artifact.
type ArtifactInfo struct {
	BuildID        string    `json:"build_id"`
	BuiltAt        time.Time `json:"built_at"`
	Movies         int       `json:"movies"`
	VocabularySize int       `json:"vocabulary_size"`
	Source         string    `json:"source"`
	Fingerprint    string    `json:"fingerprint"`
	Analysis       string    `json:"analysis"`
}

// ArtifactStore saves and restores index snapshots.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, ix *index.Index) error
	Load(ctx context.Context, buildID string) (*index.Index, error)
	LoadLatest(ctx context.Context) (*index.Index, error)
	ListArtifacts(ctx context.Context) ([]ArtifactInfo, error)
	Prune(ctx context.Context, keep int) (int, error)
	Close() error
}

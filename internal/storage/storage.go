package storage

import (
	"context"
	"time"

	"graphrag/pkg/common"
)

// SnapshotVersion is the current on-disk snapshot schema version. Loading a
// snapshot with a different version fails rather than guessing.
const SnapshotVersion = 1

const (
	snapshotFile = "snapshot.json"
	exportFile   = "graph.json"
	logFile      = "logs.json"
)

// Snapshot is the persisted state of one tenant graph: the store contents,
// the entity embeddings used for retrieval, and bookkeeping timestamps.
type Snapshot struct {
	Version    int                  `json:"version"`
	GraphID    string               `json:"graph_id"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
	Entities   []common.Entity      `json:"entities"`
	Relations  []common.Relation    `json:"relations"`
	Embeddings map[string][]float32 `json:"embeddings"`
}

// SnapshotStore persists tenant graph state. Implementations keep three
// artifacts per graph id: the snapshot itself, a viewer-friendly export, and
// an append-only update log.
//
// LoadSnapshot returns a not-found error when no snapshot exists for the id.
// LoadLog returns an empty slice in that case. Clear is a no-op when nothing
// was ever persisted.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, graphID string, snap *Snapshot, export *common.GraphExport) error
	LoadSnapshot(ctx context.Context, graphID string) (*Snapshot, error)
	AppendLog(ctx context.Context, graphID string, entry common.UpdateLogEntry) error
	LoadLog(ctx context.Context, graphID string) ([]common.UpdateLogEntry, error)
	Clear(ctx context.Context, graphID string) error
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"graphrag/pkg/common"
)

// DiskStore persists snapshots under root/<graphID>/. Writes go through a
// temp file and rename so a crash mid-write never leaves a torn snapshot.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed and returns a store
// rooted there.
func NewDiskStore(root string) (*DiskStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: storage root must not be empty", common.ErrInvalidInput)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating storage root: %v", common.ErrPersistence, err)
	}
	return &DiskStore{root: root}, nil
}

func (d *DiskStore) graphDir(graphID string) string {
	return filepath.Join(d.root, graphID)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (d *DiskStore) SaveSnapshot(ctx context.Context, graphID string, snap *Snapshot, export *common.GraphExport) error {
	dir := d.graphDir(graphID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating graph dir: %v", common.ErrPersistence, err)
	}

	snap.Version = SnapshotVersion
	snapData, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding snapshot: %v", common.ErrPersistence, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, snapshotFile), snapData); err != nil {
		return fmt.Errorf("%w: writing snapshot: %v", common.ErrPersistence, err)
	}

	exportData, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding export: %v", common.ErrPersistence, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, exportFile), exportData); err != nil {
		return fmt.Errorf("%w: writing export: %v", common.ErrPersistence, err)
	}
	return nil
}

func (d *DiskStore) LoadSnapshot(ctx context.Context, graphID string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(d.graphDir(graphID), snapshotFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no snapshot for graph %s", common.ErrNotFound, graphID)
		}
		return nil, fmt.Errorf("%w: reading snapshot: %v", common.ErrPersistence, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: decoding snapshot: %v", common.ErrPersistence, err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", common.ErrPersistence, snap.Version)
	}
	return &snap, nil
}

func (d *DiskStore) AppendLog(ctx context.Context, graphID string, entry common.UpdateLogEntry) error {
	dir := d.graphDir(graphID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating graph dir: %v", common.ErrPersistence, err)
	}
	entries, err := d.LoadLog(ctx, graphID)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding update log: %v", common.ErrPersistence, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, logFile), data); err != nil {
		return fmt.Errorf("%w: writing update log: %v", common.ErrPersistence, err)
	}
	return nil
}

func (d *DiskStore) LoadLog(ctx context.Context, graphID string) ([]common.UpdateLogEntry, error) {
	data, err := os.ReadFile(filepath.Join(d.graphDir(graphID), logFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []common.UpdateLogEntry{}, nil
		}
		return nil, fmt.Errorf("%w: reading update log: %v", common.ErrPersistence, err)
	}
	entries := []common.UpdateLogEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: decoding update log: %v", common.ErrPersistence, err)
	}
	return entries, nil
}

func (d *DiskStore) Clear(ctx context.Context, graphID string) error {
	if err := os.RemoveAll(d.graphDir(graphID)); err != nil {
		return fmt.Errorf("%w: clearing graph %s: %v", common.ErrPersistence, graphID, err)
	}
	return nil
}

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/avolkov/pricevault/internal/model"
)

// snapshot is the on-disk layout: one flat record list. Symbol and dedup
// indexes are rebuilt on load.
type snapshot struct {
	Observations []model.PriceObservation `json:"observations"`
}

// persistLocked writes the full record set atomically: marshal, write to a
// temp file in the same directory, fsync, then rename over the canonical
// path. A crash at any point leaves either the old snapshot or the new one,
// never a torn file. Caller holds s.mu.
func (s *Store) persistLocked() error {
	snap := s.snapshotLocked()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.cfg.DataDir, snapshotFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace snapshot: %w", err)
	}

	s.dirty = false
	return nil
}

// snapshotLocked flattens the in-memory state for serialization.
// Caller holds s.mu.
func (s *Store) snapshotLocked() snapshot {
	snap := snapshot{Observations: make([]model.PriceObservation, 0, s.count)}
	for _, recs := range s.bySymbol {
		snap.Observations = append(snap.Observations, recs...)
	}
	return snap
}

// load reads the snapshot file and rebuilds the indexes. A missing file is an
// empty store. A corrupt file is moved to a .bak path and logged so ingestion
// can proceed; recovery starts empty rather than guessing at torn JSON.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		bak := s.path + ".bak"
		s.logger.Warn("snapshot corrupt, starting empty",
			"path", s.path,
			"backup", bak,
			"error", err,
		)
		if renameErr := os.Rename(s.path, bak); renameErr != nil {
			s.logger.Error("failed to back up corrupt snapshot", "error", renameErr)
		}
		return nil
	}

	for _, obs := range snap.Observations {
		if key := obs.Key(); !key.Zero() {
			s.byKey[key] = struct{}{}
		}
		s.bySymbol[obs.Symbol] = append(s.bySymbol[obs.Symbol], obs)
		s.count++
	}

	s.logger.Info("loaded snapshot", "path", s.path, "records", s.count)
	return nil
}

package engine

import (
	"fmt"

	"github.com/yungbote/learnhub/internal/observability"
	"github.com/yungbote/learnhub/internal/platform/fileutil"
	"github.com/yungbote/learnhub/internal/platform/logger"
)

// Store persists one State document. Writes go through a temp file and a
// rename so readers see either the old or the new file.
type Store struct {
	path    string
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewStore(path string, baseLog *logger.Logger, metrics *observability.Metrics) *Store {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Store{path: path, log: baseLog.With("component", "engine_store", "path", path), metrics: metrics}
}

func (s *Store) Path() string { return s.path }

func (s *Store) BackupPath() string { return s.path + ".bak" }

// LoadResult says where a loaded state came from.
type LoadResult string

const (
	LoadedFromFile LoadResult = "file"
	LoadedDefaults LoadResult = "defaults"
	RecoveredBad   LoadResult = "recovered"
)

// Load reads the state file. A missing file yields defaults. A file that
// cannot be decoded or validated is copied to BackupPath and replaced by
// defaults in memory; the original is not deleted.
func (s *Store) Load(h Hyper) (*State, LoadResult) {
	st := &State{}
	found, err := fileutil.ReadJSON(s.path, st)
	if !found && err == nil {
		s.log.Info("No engine state on disk, starting fresh")
		return NewState(h), LoadedDefaults
	}
	if err == nil {
		err = st.normalize(h)
	}
	if err == nil {
		return st, LoadedFromFile
	}

	s.metrics.IncCorruptState()
	if found {
		if bErr := fileutil.CopyFile(s.path, s.BackupPath()); bErr != nil {
			s.log.Error("Failed to back up corrupt engine state", "error", bErr)
		} else {
			s.log.Warn("Engine state unreadable, backed up and starting fresh", "error", err, "backup", s.BackupPath())
		}
	} else {
		s.log.Error("Engine state could not be read, starting fresh", "error", err)
	}
	return NewState(h), RecoveredBad
}

func (s *Store) Save(st *State) error {
	if err := fileutil.WriteJSONAtomic(s.path, st); err != nil {
		return fmt.Errorf("save engine state: %w", err)
	}
	return nil
}

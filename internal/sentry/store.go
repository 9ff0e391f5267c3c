package sentry

import (
	"fmt"
	"path/filepath"

	"github.com/yungbote/learnhub/internal/platform/fileutil"
)

const (
	contingencyFile = "contingency.json"
	masteryFile     = "mastery_summary.json"
	cursorsFile     = "event_cursors.json"
	graphFile       = "skill_graph.json"
)

// State is everything one analysis pass reads and writes.
type State struct {
	Tables  Tables
	Mastery *Mastery
	Cursors *Cursors
}

func NewState() *State {
	return &State{Tables: Tables{}, Mastery: NewMastery(), Cursors: NewCursors()}
}

// Store keeps each state blob in its own file under dir.
type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

func (s *Store) GraphPath() string { return s.path(graphFile) }

// BackupPath is where a corrupt state blob is copied before it is reset.
func (s *Store) BackupPath(name string) string { return s.path(name) + ".bak" }

// Load reads the three state blobs. A blob that exists but cannot be decoded
// is copied to BackupPath and all three are reset together: the tables,
// mastery and cursors describe one fold of the event log, so fresh cursors
// replay the log into fresh tables. recovered names the corrupt files.
// Read failures other than decoding are returned as errors.
func (s *Store) Load() (st *State, recovered []string, err error) {
	st = NewState()
	blobs := []struct {
		name string
		v    any
	}{
		{contingencyFile, &st.Tables},
		{masteryFile, st.Mastery},
		{cursorsFile, st.Cursors},
	}
	for _, b := range blobs {
		found, rerr := fileutil.ReadJSON(s.path(b.name), b.v)
		if rerr == nil {
			continue
		}
		if !found {
			return nil, nil, fmt.Errorf("load %s: %w", b.name, rerr)
		}
		if cerr := fileutil.CopyFile(s.path(b.name), s.BackupPath(b.name)); cerr != nil {
			return nil, nil, fmt.Errorf("back up corrupt %s: %w", b.name, cerr)
		}
		recovered = append(recovered, b.name)
	}
	if len(recovered) > 0 {
		st = NewState()
	}
	if st.Tables == nil {
		st.Tables = Tables{}
	}
	if st.Mastery.Students == nil {
		st.Mastery.Students = map[string]map[string]float64{}
	}
	if st.Cursors.Cursors == nil {
		st.Cursors.Cursors = map[string]int{}
	}
	return st, recovered, nil
}

// Save writes the tables and mastery before the cursors, so an interrupted
// save can only cause lines to be folded again, never skipped.
func (s *Store) Save(st *State) error {
	if err := fileutil.WriteJSONAtomic(s.path(contingencyFile), st.Tables); err != nil {
		return fmt.Errorf("save contingency: %w", err)
	}
	if err := fileutil.WriteJSONAtomic(s.path(masteryFile), st.Mastery); err != nil {
		return fmt.Errorf("save mastery: %w", err)
	}
	if err := fileutil.WriteJSONAtomic(s.path(cursorsFile), st.Cursors); err != nil {
		return fmt.Errorf("save cursors: %w", err)
	}
	return nil
}

func (s *Store) LoadMastery() (*Mastery, error) {
	m := NewMastery()
	if _, err := fileutil.ReadJSON(s.path(masteryFile), m); err != nil {
		return nil, err
	}
	if m.Students == nil {
		m.Students = map[string]map[string]float64{}
	}
	return m, nil
}

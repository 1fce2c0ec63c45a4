package vectors

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Errors returned by vector index operations.
var (
	ErrEmptyCorpus        = errors.New("no papers found in corpus")
	ErrIndexNotReady      = errors.New("vector index not ready")
	ErrSnapshotNotFound   = errors.New("vector snapshot not found")
	ErrSnapshotCorrupt    = errors.New("vector snapshot corrupt")
	ErrPaperNotIndexed    = errors.New("paper not in vector index")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

const (
	// SnapshotFileName is the default name of the snapshot file.
	SnapshotFileName = "doc_vectors.gob"

	// CurrentSnapshotVersion is the format version for compatibility checking.
	// Increment this when making breaking changes to the snapshot format.
	CurrentSnapshotVersion = 1
)

// Save persists the snapshot to path using GOB encoding. The data is written
// to a temp file in the same directory and renamed into place, so an
// existing snapshot stays valid until the new one is complete.
func (s *Snapshot) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := f.Name()

	if err := gob.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("syncing snapshot: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// LoadSnapshot reads a snapshot from disk.
// Returns ErrSnapshotNotFound if the file does not exist and an error
// wrapping ErrSnapshotCorrupt if it cannot be decoded or fails validation.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: decoding: %v", ErrSnapshotCorrupt, err)
	}

	if s.Version != CurrentSnapshotVersion {
		return nil, fmt.Errorf("%w: %w: got %d, want %d",
			ErrSnapshotCorrupt, ErrUnsupportedVersion, s.Version, CurrentSnapshotVersion)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}

	s.Model.index()
	return &s, nil
}

// validate checks the structural invariants of a decoded snapshot.
func (s *Snapshot) validate() error {
	if len(s.PaperIDs) != len(s.Vectors) {
		return fmt.Errorf("%d paper ids but %d vectors", len(s.PaperIDs), len(s.Vectors))
	}
	if len(s.PaperIDs) == 0 {
		return errors.New("snapshot has no papers")
	}
	if len(s.Model.Terms) != len(s.Model.IDF) {
		return fmt.Errorf("%d terms but %d idf weights", len(s.Model.Terms), len(s.Model.IDF))
	}
	vocab := len(s.Model.Terms)
	for i, v := range s.Vectors {
		if len(v.Cols) != len(v.Weights) {
			return fmt.Errorf("vector %d: %d columns but %d weights", i, len(v.Cols), len(v.Weights))
		}
		for _, col := range v.Cols {
			if col < 0 || col >= vocab {
				return fmt.Errorf("vector %d: column %d outside vocabulary of %d", i, col, vocab)
			}
		}
	}
	return nil
}

// SnapshotSize returns the size of the snapshot file in bytes.
func SnapshotSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrSnapshotNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}

// Exists checks if a snapshot file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

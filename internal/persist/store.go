package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"pkt.systems/pslog"
	"pkt.systems/replwin/schema"
)

// TranscriptVersion is the on-disk format version written by Save.
const TranscriptVersion = 1

const transcriptExt = ".json"

// Transcript captures the committed view and history of a named session.
type Transcript struct {
	Version int            `json:"version"`
	SavedAt time.Time      `json:"saved_at"`
	Blocks  []schema.Block `json:"blocks"`
	History []string       `json:"history,omitempty"`
}

// Store persists transcripts to disk, one file per session name.
type Store struct {
	dir string
	log pslog.Logger
	now func() time.Time
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger, now: time.Now}, nil
}

// Load reads a transcript. The boolean is false when none was saved.
// Malformed files yield a *schema.InvalidDataError.
func (s *Store) Load(name string) (Transcript, bool, error) {
	path := s.pathFor(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.debug("state load miss", "name", name)
			return Transcript{}, false, nil
		}
		s.warn("state load failed", "name", name, "err", err)
		return Transcript{}, false, err
	}
	transcript, err := decode(data)
	if err != nil {
		s.warn("state load failed", "name", name, "err", err)
		return Transcript{}, false, err
	}
	s.debug("state load ok", "name", name, "blocks", len(transcript.Blocks), "history", len(transcript.History))
	return transcript, true, nil
}

func decode(data []byte) (Transcript, error) {
	var transcript Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return Transcript{}, &schema.InvalidDataError{Msg: err.Error(), Err: err}
	}
	if transcript.Version > TranscriptVersion {
		return Transcript{}, &schema.InvalidDataError{Msg: fmt.Sprintf("unsupported transcript version %d", transcript.Version)}
	}
	for i, block := range transcript.Blocks {
		if !block.Kind.Valid() {
			return Transcript{}, &schema.InvalidDataError{Msg: fmt.Sprintf("block %d has unknown kind %d", i, int(block.Kind))}
		}
	}
	return transcript, nil
}

// Save writes a transcript atomically.
func (s *Store) Save(name string, transcript Transcript) error {
	path := s.pathFor(name)
	transcript.Version = TranscriptVersion
	if transcript.SavedAt.IsZero() {
		transcript.SavedAt = s.now().UTC()
	}
	if transcript.Blocks == nil {
		transcript.Blocks = []schema.Block{}
	}
	if err := s.writeAtomic(path, transcript); err != nil {
		s.warn("state save failed", "name", name, "err", err)
		return err
	}
	s.trace("state save ok", "name", name, "blocks", len(transcript.Blocks))
	return nil
}

func (s *Store) writeAtomic(path string, transcript Transcript) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Delete removes a saved transcript. Deleting a missing one is not an error.
func (s *Store) Delete(name string) error {
	err := os.Remove(s.pathFor(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.warn("state delete failed", "name", name, "err", err)
		return err
	}
	return nil
}

// List returns the stored session names, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, transcriptExt) || strings.HasPrefix(name, "state-") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, transcriptExt))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) pathFor(name string) string {
	clean := sanitize(name)
	if clean == "" {
		clean = "default"
	}
	return filepath.Join(s.dir, clean+transcriptExt)
}

func (s *Store) debug(msg string, kv ...any) {
	if s.log != nil {
		s.log.Debug(msg, kv...)
	}
}

func (s *Store) trace(msg string, kv ...any) {
	if s.log != nil {
		s.log.Trace(msg, kv...)
	}
}

func (s *Store) warn(msg string, kv ...any) {
	if s.log != nil {
		s.log.Warn(msg, kv...)
	}
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}

// Package artifact owns the per-run output directory: draft writes, content
// digests, and the manifest that records what a run produced.
package artifact

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zeebo/blake3"
)

// Store writes drafts under Dir and appends one manifest entry per save.
// Names matching an exclude glob are still written but left out of the
// manifest (scratch artifacts a summary should not list).
type Store struct {
	Dir          string
	ExcludeGlobs []string

	mu sync.Mutex
}

type SavedDraft struct {
	Name   string
	Path   string
	Bytes  int
	Digest string
}

type manifestEntry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Bytes   int       `json:"bytes"`
	Digest  string    `json:"digest"`
	SavedAt time.Time `json:"saved_at"`
}

func NewStore(dir string, excludeGlobs []string) *Store {
	return &Store{Dir: dir, ExcludeGlobs: excludeGlobs}
}

// Save validates and writes content under the store directory. Empty or
// whitespace-only content and empty names are rejected; names are normalized
// to carry a markdown extension; containing directories are created on
// demand.
func (s *Store) Save(content, name string) (SavedDraft, error) {
	if strings.TrimSpace(content) == "" {
		return SavedDraft{}, fmt.Errorf("draft content is empty")
	}
	name = NormalizeName(name)
	if name == "" {
		return SavedDraft{}, fmt.Errorf("draft name is empty")
	}

	path := filepath.Join(s.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return SavedDraft{}, fmt.Errorf("create draft directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return SavedDraft{}, fmt.Errorf("write draft: %w", err)
	}

	sum := blake3.Sum256([]byte(content))
	saved := SavedDraft{
		Name:   name,
		Path:   path,
		Bytes:  len(content),
		Digest: hex.EncodeToString(sum[:]),
	}

	if !s.excluded(name) {
		if err := s.appendManifest(saved); err != nil {
			return SavedDraft{}, err
		}
	}
	return saved, nil
}

func (s *Store) excluded(name string) bool {
	for _, g := range s.ExcludeGlobs {
		if ok, err := doublestar.Match(g, filepath.ToSlash(name)); err == nil && ok {
			return true
		}
	}
	return false
}

func (s *Store) appendManifest(saved SavedDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := manifestEntry{
		Name:    saved.Name,
		Path:    saved.Path,
		Bytes:   saved.Bytes,
		Digest:  saved.Digest,
		SavedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(s.Dir, "manifest.ndjson"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("append manifest: %w", err)
	}
	return nil
}

// Manifest returns the recorded entries in save order.
func (s *Store) Manifest() ([]SavedDraft, error) {
	b, err := os.ReadFile(filepath.Join(s.Dir, "manifest.ndjson"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []SavedDraft
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e manifestEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("decode manifest entry: %w", err)
		}
		out = append(out, SavedDraft{Name: e.Name, Path: e.Path, Bytes: e.Bytes, Digest: e.Digest})
	}
	return out, nil
}

// NormalizeName trims the name and ensures a markdown extension.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	low := strings.ToLower(name)
	if !strings.HasSuffix(low, ".md") && !strings.HasSuffix(low, ".markdown") {
		name += ".md"
	}
	return name
}

// DerivedName builds a draft filename from a free-text topic: spaces become
// underscores and the stem is capped at maxStem characters.
func DerivedName(topic string, maxStem int) string {
	stem := strings.ReplaceAll(strings.TrimSpace(topic), " ", "_")
	if maxStem > 0 && len(stem) > maxStem {
		stem = stem[:maxStem]
	}
	if stem == "" {
		stem = "draft"
	}
	return stem + ".md"
}

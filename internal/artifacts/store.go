// Package artifacts stores generated images and audio on disk.
package artifacts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

var ErrNotFound = errors.New("artifact not found")

var validName = regexp.MustCompile(`^(image|audio)-[0-9a-f-]{36}\.[a-z0-9]{2,4}$`)

// Store writes artifacts into a single directory under generated names.
type Store struct {
	dir     string
	baseURL string
}

// NewStore creates dir if missing. baseURL prefixes artifact links, for
// example "http://localhost:8080/api/v1/artifacts".
func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir %s: %w", dir, err)
	}
	return &Store{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Save writes data and returns the artifact name.
func (s *Store) Save(kind Kind, ext string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("artifact data is empty")
	}
	name := fmt.Sprintf("%s-%s.%s", kind, uuid.New().String(), strings.TrimPrefix(ext, "."))
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating artifact: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("publishing artifact: %w", err)
	}
	return name, nil
}

// Open returns a reader for a stored artifact. Names that were not
// produced by Save are rejected.
func (s *Store) Open(name string) (io.ReadSeekCloser, os.FileInfo, error) {
	if !validName.MatchString(name) {
		return nil, nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

// Read returns the bytes of a stored artifact.
func (s *Store) Read(name string) ([]byte, error) {
	f, _, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Path returns the on-disk location of an artifact.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// URL returns the public link of an artifact, or "" without a base URL.
func (s *Store) URL(name string) string {
	if s.baseURL == "" || name == "" {
		return ""
	}
	return s.baseURL + "/" + name
}

// Prune removes artifacts last modified before cutoff and returns how many
// were removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("listing artifacts: %w", err)
	}
	removed := 0
	var errList []error
	for _, e := range entries {
		if e.IsDir() || !validName.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
				errList = append(errList, err)
				continue
			}
			removed++
		}
	}
	return removed, errors.Join(errList...)
}

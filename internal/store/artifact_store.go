package store

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// maxSuffix bounds the collision counter so a broken filesystem cannot spin forever.
const maxSuffix = 1_000_000

// ArtifactStore writes crawl artifacts into folders without ever
// overwriting an existing file: a colliding name gets _1, _2, ... appended.
type ArtifactStore struct {
	mu      sync.Mutex
	folders map[string]*sync.Mutex
}

func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{
		folders: make(map[string]*sync.Mutex),
	}
}

// EnsureFolders creates every folder that does not exist yet.
func (s *ArtifactStore) EnsureFolders(folders ...string) error {
	for _, f := range folders {
		if err := os.MkdirAll(f, 0o755); err != nil {
			return fmt.Errorf("create folder %s: %w", f, err)
		}
	}
	return nil
}

func (s *ArtifactStore) folderLock(folder string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := filepath.Clean(folder)
	l, ok := s.folders[key]
	if !ok {
		l = &sync.Mutex{}
		s.folders[key] = l
	}
	return l
}

// candidate is the i-th name tried for base+ext: base+ext, base_1+ext,
// base_2+ext and so on.
func candidate(base, ext string, i int) string {
	if i == 0 {
		return base + ext
	}
	return fmt.Sprintf("%s_%d%s", base, i, ext)
}

// create reserves a unique name in folder by creating the file exclusively.
// Name selection is serialized per folder.
func (s *ArtifactStore) create(folder, base, ext string) (*os.File, string, error) {
	l := s.folderLock(folder)
	l.Lock()
	defer l.Unlock()

	for i := 0; i < maxSuffix; i++ {
		name := candidate(base, ext, i)
		f, err := os.OpenFile(filepath.Join(folder, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create %s: %w", name, err)
		}
		return f, name, nil
	}
	return nil, "", fmt.Errorf("no free name for %s%s in %s", base, ext, folder)
}

// Write stores content under a collision-free name and returns that name.
func (s *ArtifactStore) Write(folder, base, ext string, content []byte) (string, error) {
	f, name, err := s.create(folder, base, ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return name, nil
}

// WriteStream copies r into a collision-free file in 8 KiB chunks. A failed
// copy removes the partial file.
func (s *ArtifactStore) WriteStream(folder, base, ext string, r io.Reader) (string, int64, error) {
	f, name, err := s.create(folder, base, ext)
	if err != nil {
		return "", 0, err
	}
	n, err := io.CopyBuffer(f, r, make([]byte, 8192))
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", n, fmt.Errorf("stream %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", n, fmt.Errorf("close %s: %w", name, err)
	}
	return name, n, nil
}

// Deduplicate removes every file in folder whose MD5 matches a file seen
// earlier in lexical order, and returns the removed paths.
func (s *ArtifactStore) Deduplicate(folder string) ([]string, error) {
	l := s.folderLock(folder)
	l.Lock()
	defer l.Unlock()

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", folder, err)
	}

	seen := make(map[string]string)
	var removed []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(folder, e.Name())
		sum, err := fileMD5(path)
		if err != nil {
			return removed, err
		}
		if _, dup := seen[sum]; dup {
			if err := os.Remove(path); err != nil {
				return removed, fmt.Errorf("remove duplicate %s: %w", path, err)
			}
			removed = append(removed, path)
			continue
		}
		seen[sum] = path
	}
	return removed, nil
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

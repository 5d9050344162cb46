// Local filesystem storage for session artifacts.
package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
)

type FileStorage interface {
	Save(path string, data io.Reader) error
	SaveBytes(path string, data []byte) error
	Get(path string) (io.ReadCloser, error)
	GetBytes(path string) ([]byte, error)
	Delete(path string) error
	Exists(path string) bool
	// ListDirs returns top-level directories sorted by modification time,
	// newest first. Used by old-session cleanup.
	ListDirs() ([]string, error)
}

type fileStorage struct {
	basePath string
}

func NewFileStorage(basePath string) FileStorage {
	return &fileStorage{basePath: basePath}
}

func (s *fileStorage) Save(path string, data io.Reader) error {
	fullPath := filepath.Join(s.basePath, path)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, data)
	return err
}

func (s *fileStorage) SaveBytes(path string, data []byte) error {
	return s.Save(path, bytes.NewReader(data))
}

func (s *fileStorage) Get(path string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.basePath, path))
}

func (s *fileStorage) GetBytes(path string) ([]byte, error) {
	reader, err := s.Get(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func (s *fileStorage) Delete(path string) error {
	return os.RemoveAll(filepath.Join(s.basePath, path))
}

func (s *fileStorage) Exists(path string) bool {
	_, err := os.Stat(filepath.Join(s.basePath, path))
	return !os.IsNotExist(err)
}

func (s *fileStorage) ListDirs() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type dirInfo struct {
		name string
		mod  int64
	}
	dirs := make([]dirInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, dirInfo{name: e.Name(), mod: info.ModTime().UnixNano()})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].mod > dirs[j].mod })

	names := make([]string, 0, len(dirs))
	for _, d := range dirs {
		names = append(names, d.name)
	}
	return names, nil
}

package database

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/slurpey/anvilizer/internal/entity"
	"github.com/slurpey/anvilizer/internal/pkg/storage"
)

const (
	metaFile    = "meta.json"
	packageFile = "layers.zip"
)

func NewSessionRepository(storage storage.FileStorage) SessionRepository {
	return &fileSessionRepository{storage: storage}
}

func (r *fileSessionRepository) SaveStyle(uid string, style entity.Style, data []byte) error {
	return r.storage.SaveBytes(r.stylePath(uid, style), data)
}

func (r *fileSessionRepository) StyleData(uid string, style entity.Style) ([]byte, error) {
	data, err := r.storage.GetBytes(r.stylePath(uid, style))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, entity.ErrSessionNotFound
		}
		return nil, err
	}
	return data, nil
}

func (r *fileSessionRepository) SavePackage(uid string, data []byte) error {
	return r.storage.SaveBytes(filepath.Join(uid, packageFile), data)
}

func (r *fileSessionRepository) PackageData(uid string) ([]byte, error) {
	data, err := r.storage.GetBytes(filepath.Join(uid, packageFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, entity.ErrSessionNotFound
		}
		return nil, err
	}
	return data, nil
}

func (r *fileSessionRepository) SaveMeta(uid string, meta entity.SessionMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return r.storage.SaveBytes(filepath.Join(uid, metaFile), data)
}

func (r *fileSessionRepository) Meta(uid string) (*entity.SessionMeta, error) {
	data, err := r.storage.GetBytes(filepath.Join(uid, metaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, entity.ErrSessionNotFound
		}
		return nil, err
	}
	var meta entity.SessionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (r *fileSessionRepository) Styles(uid string) ([]entity.Style, error) {
	if !r.storage.Exists(uid) {
		return nil, entity.ErrSessionNotFound
	}
	var styles []entity.Style
	for _, style := range entity.AllStyles() {
		if r.storage.Exists(r.stylePath(uid, style)) {
			styles = append(styles, style)
		}
	}
	return styles, nil
}

func (r *fileSessionRepository) Delete(uid string) error {
	return r.storage.Delete(uid)
}

func (r *fileSessionRepository) Sessions() ([]string, error) {
	return r.storage.ListDirs()
}

func (r *fileSessionRepository) stylePath(uid string, style entity.Style) string {
	return filepath.Join(uid, string(style)+".png")
}

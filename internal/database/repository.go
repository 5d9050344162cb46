package database

import (
	"github.com/slurpey/anvilizer/internal/entity"
	"github.com/slurpey/anvilizer/internal/pkg/storage"
)

// SessionRepository persists the artifacts of one finished job: the style
// PNGs, an optional layer-package zip, and a meta.json used to build
// friendly download names.
type SessionRepository interface {
	SaveStyle(uid string, style entity.Style, data []byte) error
	StyleData(uid string, style entity.Style) ([]byte, error)
	SavePackage(uid string, data []byte) error
	PackageData(uid string) ([]byte, error)
	SaveMeta(uid string, meta entity.SessionMeta) error
	Meta(uid string) (*entity.SessionMeta, error)
	Styles(uid string) ([]entity.Style, error)
	Delete(uid string) error
	Sessions() ([]string, error)
}

type fileSessionRepository struct {
	storage storage.FileStorage
}

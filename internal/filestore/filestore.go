// Package filestore persists rendered attachments before dispatch so failed
// sends leave an inspectable artifact behind.
package filestore

import (
	"path/filepath"

	"github.com/ledgerline/dunning/internal/config"
	"github.com/spf13/afero"
	"go.uber.org/fx"
)

// File is a stored attachment artifact.
type File struct {
	Name     string
	Path     string
	MIMEType string
	Size     int64
}

type Store struct {
	fs  afero.Fs
	dir string
}

func New(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// Create writes content under the store directory and returns its handle.
func (s *Store) Create(name, mimeType string, content []byte) (File, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return File{}, err
	}
	path := filepath.Join(s.dir, name)
	if err := afero.WriteFile(s.fs, path, content, 0o644); err != nil {
		return File{}, err
	}
	return File{
		Name:     name,
		Path:     path,
		MIMEType: mimeType,
		Size:     int64(len(content)),
	}, nil
}

// Read returns the content of a previously created file.
func (s *Store) Read(name string) ([]byte, error) {
	return afero.ReadFile(s.fs, filepath.Join(s.dir, name))
}

var Module = fx.Module("filestore",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) *Store {
	return New(afero.NewOsFs(), cfg.AttachmentDir)
}

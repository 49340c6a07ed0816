package assets

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
)

// Spool keeps image bytes on local disk until they are uploaded. A ref is a
// file name inside the spool directory.
type Spool struct {
	dir string
}

func NewSpool(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &Spool{dir: dir}, nil
}

// Put stores src and returns its ref.
func (s *Spool) Put(src Source) (string, error) {
	if _, err := src.ContentType(); err != nil {
		return "", err
	}
	ref := uuid.NewString() + src.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, ref), src.Data, 0o640); err != nil {
		return "", fmt.Errorf("spool %s: %w", src.Name, err)
	}
	return ref, nil
}

// Open reads a spooled image back.
func (s *Spool) Open(ref string) (Source, error) {
	p, err := s.path(ref)
	if err != nil {
		return Source{}, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return Source{}, fmt.Errorf("spooled image %s: %w", ref, errs.ErrNotFound)
	}
	if err != nil {
		return Source{}, fmt.Errorf("read spooled image %s: %w", ref, err)
	}
	return Source{Name: ref, Data: data}, nil
}

// Remove deletes a spooled image. Missing refs are ignored.
func (s *Spool) Remove(ref string) error {
	p, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove spooled image %s: %w", ref, err)
	}
	return nil
}

func (s *Spool) path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || ref == "." || ref == ".." {
		return "", fmt.Errorf("invalid spool ref %q: %w", ref, errs.ErrValidation)
	}
	return filepath.Join(s.dir, ref), nil
}

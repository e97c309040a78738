package fieldfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

// Source reads field documents from disk. Identifiers are paths, resolved
// against Root when relative.
type Source struct {
	Root string
}

// NewSource creates a Source rooted at root.
func NewSource(root string) *Source {
	return &Source{Root: root}
}

func (s *Source) path(id string) string {
	if filepath.IsAbs(id) || s.Root == "" {
		return id
	}
	return filepath.Join(s.Root, id)
}

func (s *Source) readDocument(id string) (Document, error) {
	f, err := os.Open(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, fmt.Errorf("%w: %s", domain.ErrDataUnavailable, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("open %s: %w", id, err)
	}
	defer f.Close()
	return Decode(f, IsCompressed(id))
}

// ReadField implements domain.FieldSource. A document whose variable or level
// metadata disagrees with the request counts as unavailable.
func (s *Source) ReadField(_ context.Context, id, variable, level string) (domain.Field, error) {
	doc, err := s.readDocument(id)
	if err != nil {
		return domain.Field{}, err
	}
	if !doc.Matches(variable, level) {
		return domain.Field{}, fmt.Errorf("%w: %s holds %s/%s, not %s/%s",
			domain.ErrDataUnavailable, id, doc.Variable, doc.Level, variable, level)
	}
	return doc.Field()
}

// ReadGrid implements domain.GridSource.
func (s *Source) ReadGrid(_ context.Context, id string) (domain.Grid, error) {
	doc, err := s.readDocument(id)
	if err != nil {
		return domain.Grid{}, err
	}
	return doc.Grid()
}

// WriteFile stores doc at path, creating parent directories and compressing
// when path ends in CompressedSuffix.
func WriteFile(path string, doc Document) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Encode(f, doc, IsCompressed(path))
}

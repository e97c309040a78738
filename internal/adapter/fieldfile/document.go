// Package fieldfile reads and writes field documents: JSON objects holding a
// 2D value array and its latitude/longitude coordinates, optionally
// zstd-compressed.
package fieldfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
	"github.com/couchcryptid/storm-data-verify/internal/grid"
)

// CompressedSuffix marks zstd-compressed documents.
const CompressedSuffix = ".zst"

// Coords is either a 1D axis or a full 2D coordinate array.
type Coords struct {
	Axis []float64
	Mesh [][]float64
}

// Axis builds 1D coordinates.
func Axis(v []float64) Coords { return Coords{Axis: v} }

// MeshOf builds 2D coordinates from an array.
func MeshOf(a domain.Array2D) Coords { return Coords{Mesh: a.RowsOf()} }

func (c Coords) is2D() bool { return c.Mesh != nil }

func (c Coords) MarshalJSON() ([]byte, error) {
	if c.is2D() {
		return json.Marshal(c.Mesh)
	}
	return json.Marshal(c.Axis)
}

func (c *Coords) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	c.Axis, c.Mesh = nil, nil
	if len(raw) > 0 && bytes.HasPrefix(bytes.TrimSpace(raw[0]), []byte("[")) {
		return json.Unmarshal(b, &c.Mesh)
	}
	return json.Unmarshal(b, &c.Axis)
}

// Document is the on-disk and over-the-wire field representation. Grid
// documents omit Values.
type Document struct {
	Variable string      `json:"variable,omitempty"`
	Level    string      `json:"level,omitempty"`
	Values   [][]float64 `json:"values,omitempty"`
	Lat      Coords      `json:"lat"`
	Lon      Coords      `json:"lon"`
}

// Grid returns the document's coordinates as a 2D grid. 1D axes are expanded
// into a mesh with latitude varying along rows.
func (d Document) Grid() (domain.Grid, error) {
	switch {
	case !d.Lat.is2D() && !d.Lon.is2D():
		if len(d.Lat.Axis) == 0 || len(d.Lon.Axis) == 0 {
			return domain.Grid{}, fmt.Errorf("%w: empty coordinate axis", domain.ErrInputShape)
		}
		return grid.Mesh(d.Lat.Axis, d.Lon.Axis), nil
	case d.Lat.is2D() && d.Lon.is2D():
		lat, err := domain.ArrayFrom(d.Lat.Mesh)
		if err != nil {
			return domain.Grid{}, fmt.Errorf("latitude: %w", err)
		}
		lon, err := domain.ArrayFrom(d.Lon.Mesh)
		if err != nil {
			return domain.Grid{}, fmt.Errorf("longitude: %w", err)
		}
		return domain.NewGrid(lat, lon)
	default:
		return domain.Grid{}, fmt.Errorf("%w: latitude and longitude must both be 1D or both 2D", domain.ErrInputShape)
	}
}

// Field returns the document's values on its grid.
func (d Document) Field() (domain.Field, error) {
	values, err := domain.ArrayFrom(d.Values)
	if err != nil {
		return domain.Field{}, fmt.Errorf("values: %w", err)
	}
	g, err := d.Grid()
	if err != nil {
		return domain.Field{}, err
	}
	return domain.NewField(values, g.Lat, g.Lon)
}

// Matches reports whether the document carries the requested variable and
// level. Empty metadata on either side matches anything.
func (d Document) Matches(variable, level string) bool {
	if d.Variable != "" && variable != "" && !strings.EqualFold(d.Variable, variable) {
		return false
	}
	if d.Level != "" && level != "" && !strings.EqualFold(d.Level, level) {
		return false
	}
	return true
}

// Decode reads one document, decompressing when compressed is set.
func Decode(r io.Reader, compressed bool) (Document, error) {
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return Document{}, fmt.Errorf("open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode field document: %w", err)
	}
	return doc, nil
}

// Encode writes one document, compressing when compressed is set.
func Encode(w io.Writer, doc Document, compressed bool) error {
	if !compressed {
		return json.NewEncoder(w).Encode(doc)
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("open zstd stream: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(doc); err != nil {
		zw.Close()
		return fmt.Errorf("encode field document: %w", err)
	}
	return zw.Close()
}

// IsCompressed reports whether an identifier names a compressed document.
func IsCompressed(id string) bool { return strings.HasSuffix(id, CompressedSuffix) }

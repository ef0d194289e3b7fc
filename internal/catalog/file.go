package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/fuzzyrestaurants/finder/internal/models"
)

// fileFormatVersion is bumped whenever the on-disk layout changes.
const fileFormatVersion = 1

// fileDocument is the on-disk layout of a catalog file.
type fileDocument struct {
	Version     int                 `json:"version"`
	BuiltAt     time.Time           `json:"built_at"`
	Model       string              `json:"model,omitempty"`
	Restaurants []models.Restaurant `json:"restaurants"`
}

// FileSource reads a catalog from a JSON file. Paths ending in ".gz" are
// gzip-decompressed.
type FileSource struct {
	Path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) ([]models.Restaurant, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()

	doc, err := decodeDocument(f, isGzip(s.Path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return doc.Restaurants, nil
}

func decodeDocument(r io.Reader, compressed bool) (*fileDocument, error) {
	if compressed {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()

		r = zr
	}

	var doc fileDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if doc.Version != fileFormatVersion {
		return nil, fmt.Errorf("unsupported catalog version %d", doc.Version)
	}

	return &doc, nil
}

// FileSink writes catalog files. Files are written to a temporary path and
// renamed into place so readers never see a partial catalog.
type FileSink struct {
	Path  string
	Model string
}

// NewFileSink creates a FileSink for path. model records which embedding model
// produced the review vectors.
func NewFileSink(path, model string) *FileSink {
	return &FileSink{Path: path, Model: model}
}

// Write stores restaurants at the sink path.
func (s *FileSink) Write(ctx context.Context, restaurants []models.Restaurant) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)

	tmp, err := os.CreateTemp(dir, ".catalog-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // best-effort cleanup after rename

	doc := fileDocument{
		Version:     fileFormatVersion,
		BuiltAt:     time.Now().UTC(),
		Model:       s.Model,
		Restaurants: restaurants,
	}

	if err := encodeDocument(tmp, &doc, isGzip(s.Path)); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write catalog: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("rename catalog file: %w", err)
	}

	return nil
}

func encodeDocument(w io.Writer, doc *fileDocument, compressed bool) error {
	if !compressed {
		return json.NewEncoder(w).Encode(doc)
	}

	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}

	if err := json.NewEncoder(zw).Encode(doc); err != nil {
		_ = zw.Close()

		return err
	}

	return zw.Close()
}

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

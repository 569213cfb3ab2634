package arraygroup

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/colframe/blobstore"
	"github.com/hupe1980/colframe/codec"
	"github.com/hupe1980/colframe/segment"
)

// IndexVersion is the current index file version.
const IndexVersion = 1

var (
	// ErrNotFound is returned when an index file does not exist.
	ErrNotFound = errors.New("arraygroup: not found")
	// ErrInvalidIndex is returned for structurally invalid index files.
	ErrInvalidIndex = errors.New("arraygroup: invalid index")
	// ErrRowCountMismatch is returned when columns disagree on a segment's rows.
	ErrRowCountMismatch = errors.New("arraygroup: row count mismatch")
	// ErrUnsupportedVersion is returned for index files of another version.
	ErrUnsupportedVersion = errors.New("arraygroup: unsupported index version")
)

// ColumnMeta describes one logical column.
type ColumnMeta struct {
	Name     string            `json:"name"`
	Kind     codec.Kind        `json:"kind"`
	Metadata map[string]string `json:"metadata,omitempty"`
	// SegmentRows holds the row count of the column in each segment.
	SegmentRows []uint64 `json:"segment_rows"`
}

// Rows returns the total rows of the column.
func (c ColumnMeta) Rows() uint64 {
	var n uint64
	for _, r := range c.SegmentRows {
		n += r
	}
	return n
}

// Index is the content of an array-group index file.
type Index struct {
	Version   int       `json:"version"`
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	// SegmentFiles are relative to the directory of the index file.
	SegmentFiles []string     `json:"segment_files"`
	Columns      []ColumnMeta `json:"columns"`

	name string
}

// NewIndex creates an index with a fresh ID.
func NewIndex(name string, segmentFiles []string, columns []ColumnMeta) *Index {
	return &Index{
		Version:      IndexVersion,
		ID:           uuid.New(),
		CreatedAt:    time.Now().UTC(),
		SegmentFiles: segmentFiles,
		Columns:      columns,
		name:         name,
	}
}

// Name returns the blob name the index was loaded from or saved to.
func (idx *Index) Name() string { return idx.name }

// NumColumns returns the number of columns.
func (idx *Index) NumColumns() int { return len(idx.Columns) }

// NumSegments returns the number of segment files.
func (idx *Index) NumSegments() int { return len(idx.SegmentFiles) }

// NumRows returns the row count shared by all columns.
func (idx *Index) NumRows() uint64 {
	if len(idx.Columns) == 0 {
		return 0
	}
	return idx.Columns[0].Rows()
}

// SegmentPath returns the blob name of segment i.
func (idx *Index) SegmentPath(i int) string {
	return path.Join(path.Dir(idx.name), idx.SegmentFiles[i])
}

// ColumnSpec returns the "path:col" address of column col in segment seg.
func (idx *Index) ColumnSpec(col, seg int) string {
	return segment.ColumnSpec(idx.SegmentPath(seg), col)
}

// validateShape checks what readers rely on: one row count per segment for
// every column.
func (idx *Index) validateShape() error {
	if idx.Version != IndexVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, idx.Version)
	}
	for i, c := range idx.Columns {
		if len(c.SegmentRows) != len(idx.SegmentFiles) {
			return fmt.Errorf("%w: column %d (%s) has %d segment row counts for %d segments",
				ErrInvalidIndex, i, c.Name, len(c.SegmentRows), len(idx.SegmentFiles))
		}
	}
	return nil
}

// Validate checks the index shape and that all columns agree on the rows of
// every segment.
func (idx *Index) Validate() error {
	if err := idx.validateShape(); err != nil {
		return err
	}
	if len(idx.Columns) == 0 {
		return nil
	}
	want := idx.Columns[0].SegmentRows
	for i, c := range idx.Columns[1:] {
		for s, rows := range c.SegmentRows {
			if rows != want[s] {
				return fmt.Errorf("%w: segment %d: column %d (%s) has %d rows, column 0 has %d",
					ErrRowCountMismatch, s, i+1, c.Name, rows, want[s])
			}
		}
	}
	return nil
}

// Load reads an index file. Row agreement across columns is not verified;
// call Validate for that.
func Load(ctx context.Context, store blobstore.BlobStore, name string) (*Index, error) {
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}

	var idx Index
	if err := codec.Default.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidIndex, name, err)
	}
	if err := idx.validateShape(); err != nil {
		return nil, err
	}
	idx.name = name
	return &idx, nil
}

// Save writes idx to name.
func Save(ctx context.Context, store blobstore.BlobStore, name string, idx *Index) error {
	data, err := codec.Default.Marshal(idx)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, name, data); err != nil {
		return err
	}
	idx.name = name
	return nil
}

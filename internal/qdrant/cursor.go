package qdrant

import (
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/protobuf/proto"
)

// Cursor is the continuation token between scroll pages. It wraps the
// backend's next-page offset and is only ever passed back as received.
// The zero Cursor starts a scan.
type Cursor struct {
	offset *qdrant.PointId
}

// NewCursor wraps a next-page offset. A nil offset yields the zero Cursor.
func NewCursor(offset *qdrant.PointId) Cursor {
	return Cursor{offset: offset}
}

// IsZero reports whether the cursor marks the start or the end of a scan.
func (c Cursor) IsZero() bool {
	return c.offset == nil
}

// Equal reports whether both cursors point at the same offset.
func (c Cursor) Equal(other Cursor) bool {
	if c.offset == nil || other.offset == nil {
		return c.offset == other.offset
	}
	return proto.Equal(c.offset, other.offset)
}

// String renders the cursor for logs.
func (c Cursor) String() string {
	if c.offset == nil {
		return "<start>"
	}
	return IDString(c.offset)
}

func (c Cursor) proto() *qdrant.PointId {
	return c.offset
}

package vectorstore

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/ragstore/internal/qdrant"
)

// Payload keys holding the chunk text. PageContentKey is canonical;
// DocumentKey is the key FastEmbed-based clients write and read.
const (
	PageContentKey = "page_content"
	DocumentKey    = "document"
)

// idNamespace maps caller strings that are not UUIDs onto stable UUIDs.
var idNamespace = uuid.MustParse("6f1a0c5e-2b7d-5d3e-9c41-8a2f5e7b0d13")

type idKind uint8

const (
	idNone idKind = iota
	idString
	idNumeric
)

// PointID identifies a chunk: a string or an unsigned integer. The zero
// value means "not set" and makes Add generate one.
type PointID struct {
	kind idKind
	str  string
	num  uint64
}

// StringID returns a string id. Strings that are not UUIDs are stored under
// a UUIDv5 derived from them.
func StringID(s string) PointID {
	return PointID{kind: idString, str: s}
}

// NumericID returns an integer id.
func NumericID(n uint64) PointID {
	return PointID{kind: idNumeric, num: n}
}

// NewPointID returns a fresh random UUID id.
func NewPointID() PointID {
	return StringID(uuid.NewString())
}

// IsZero reports whether the id is unset.
func (id PointID) IsZero() bool {
	return id.kind == idNone
}

// IsNumeric reports whether the id is an integer id.
func (id PointID) IsNumeric() bool {
	return id.kind == idNumeric
}

// String returns the id as given by the caller.
func (id PointID) String() string {
	switch id.kind {
	case idString:
		return id.str
	case idNumeric:
		return strconv.FormatUint(id.num, 10)
	default:
		return ""
	}
}

// Stored returns the id the backend keeps for this id: integers and UUIDs
// as they are, other strings as their UUIDv5.
func (id PointID) Stored() PointID {
	if id.kind != idString {
		return id
	}
	if u, err := uuid.Parse(id.str); err == nil {
		return StringID(u.String())
	}
	return StringID(uuid.NewSHA1(idNamespace, []byte(id.str)).String())
}

func (id PointID) backend() *qdrant.PointID {
	stored := id.Stored()
	switch stored.kind {
	case idNumeric:
		return qdrant.NumID(stored.num)
	case idString:
		return qdrant.UUIDID(stored.str)
	default:
		return nil
	}
}

func pointIDFromBackend(p *qdrant.PointID) PointID {
	if p == nil {
		return PointID{}
	}
	if u := p.GetUuid(); u != "" {
		return StringID(u)
	}
	return NumericID(p.GetNum())
}

// Metadata is a chunk's payload: scalars, nil, time.Time, and nested lists
// and maps of those.
type Metadata map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Chunk is a unit of text to ingest.
type Chunk struct {
	// ID is generated when zero.
	ID       PointID
	Text     string
	Metadata Metadata
}

// QueryResult is one search hit.
type QueryResult struct {
	ID PointID
	// Score is nil only when the backend returned no ranking.
	Score       *float32
	PageContent string
	// Metadata is the full payload, content keys included.
	Metadata Metadata
}

// Record is one chunk read by ScrollAll.
type Record struct {
	ID          PointID
	PageContent string
	Metadata    Metadata
}

// resolveContent prefers the canonical key, then the backend's default key,
// and never returns nil.
func resolveContent(payload map[string]any) string {
	if s, ok := payload[PageContentKey].(string); ok && s != "" {
		return s
	}
	if s, ok := payload[DocumentKey].(string); ok {
		return s
	}
	return ""
}

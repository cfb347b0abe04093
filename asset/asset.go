package asset

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when an asset or group does not exist.
var ErrNotFound = errors.New("asset: not found")

// Type is the media kind of an asset. Similarity search only compares assets
// of the same type.
type Type string

const (
	TypeImage Type = "image"
	TypeVideo Type = "video"
	TypeAudio Type = "audio"
	TypeOther Type = "other"
)

// ParseType parses a media type name.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeImage, TypeVideo, TypeAudio, TypeOther:
		return t, nil
	}
	return "", fmt.Errorf("asset: unknown type %q", s)
}

// Visibility controls whether an asset takes part in duplicate detection.
type Visibility string

const (
	VisibilityNormal  Visibility = "normal"
	VisibilityArchive Visibility = "archive"
	VisibilityHidden  Visibility = "hidden"
	VisibilityLocked  Visibility = "locked"
)

// ParseVisibility parses a visibility name; "timeline" is accepted as an
// alias of normal and the empty string defaults to normal.
func ParseVisibility(s string) (Visibility, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "normal", "timeline":
		return VisibilityNormal, nil
	case string(VisibilityArchive), string(VisibilityHidden), string(VisibilityLocked):
		return Visibility(v), nil
	}
	return "", fmt.Errorf("asset: unknown visibility %q", s)
}

// Excluded reports whether assets with this visibility are skipped.
func (v Visibility) Excluded() bool {
	return v == VisibilityHidden || v == VisibilityLocked
}

// Asset carries the fields duplicate detection reads and writes.
type Asset struct {
	ID         string
	OwnerID    string
	Type       Type
	Visibility Visibility

	// StackID is set when the asset belongs to a stack. Stacked assets are
	// never deduplicated.
	StackID *string

	// DuplicateID references the duplicate group of the asset, if any.
	DuplicateID *string

	Embedding []float32

	// DuplicatesDetectedAt records when detection last ran for the asset.
	DuplicatesDetectedAt *time.Time
}

// Stacked reports whether the asset is part of a stack.
func (a *Asset) Stacked() bool { return a.StackID != nil && *a.StackID != "" }

// GroupID returns the duplicate group id or "" when the asset has none.
func (a *Asset) GroupID() string { return Deref(a.DuplicateID) }

// Match is a candidate returned by a similarity search.
type Match struct {
	AssetID     string
	DuplicateID *string
	Distance    float64
}

// GroupID returns the candidate's duplicate group id or "".
func (m Match) GroupID() string { return Deref(m.DuplicateID) }

// SearchQuery describes a duplicate similarity search for one asset.
type SearchQuery struct {
	// AssetID is excluded from the results.
	AssetID     string
	Embedding   []float32
	MaxDistance float64
	Type        Type
	OwnerIDs    []string
}

// Group is a set of assets considered mutual near-duplicates.
type Group struct {
	ID       string
	AssetIDs []string
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ref returns a pointer to s, or nil when s is empty.
func Ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

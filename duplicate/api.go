package duplicate

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/viant/sqlite-dedup/asset"
	"github.com/viant/sqlite-dedup/config"
)

// Source enumerates and loads assets.
type Source interface {
	// StreamForDetection calls fn for every eligible asset id. Unless force
	// is set only assets never scanned are produced.
	StreamForDetection(ctx context.Context, force bool, fn func(id string) error) error
	// LoadForDetection returns the asset or an error wrapping
	// asset.ErrNotFound.
	LoadForDetection(ctx context.Context, id string) (*asset.Asset, error)
}

// Searcher finds near-duplicate candidates.
type Searcher interface {
	SearchDuplicates(ctx context.Context, query asset.SearchQuery) ([]asset.Match, error)
}

// Store persists group membership. Merge must be atomic.
type Store interface {
	Merge(ctx context.Context, targetID string, assetIDs, sourceIDs []string) error
	ClearGroup(ctx context.Context, assetID string) error
	StampScanned(ctx context.Context, ids []string, at time.Time) error
}

// Queue accepts job batches.
type Queue interface {
	Submit(ctx context.Context, jobs []asset.Job) error
}

// Features reports the current duplicate detection settings.
type Features interface {
	DuplicateDetection(ctx context.Context) (config.DuplicateDetection, error)
}

// IDGenerator mints new group ids.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// NewID returns a random UUID string.
func NewID() string { return uuid.NewString() }

// Observer receives detection events.
type Observer interface {
	OnJob(job asset.JobName, status asset.Status, d time.Duration)
	OnSearch(d time.Duration, candidates int, err error)
	OnMerge(sources int, created bool)
	OnSubmit(jobs int)
}

type nopObserver struct{}

func (nopObserver) OnJob(asset.JobName, asset.Status, time.Duration) {}
func (nopObserver) OnSearch(time.Duration, int, error)               {}
func (nopObserver) OnMerge(int, bool)                                {}
func (nopObserver) OnSubmit(int)                                     {}

package duplicate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/viant/sqlite-dedup/asset"
	"github.com/viant/sqlite-dedup/logging"
)

// DefaultBatchSize is the number of scan-one jobs submitted per queue call.
const DefaultBatchSize = 1000

// Deps are the collaborators of a Service.
type Deps struct {
	Source   Source
	Searcher Searcher
	Store    Store
	Queue    Queue
	Features Features
}

// Option customizes a Service.
type Option func(*Service)

// WithIDGenerator overrides the group id generator.
func WithIDGenerator(fn IDGenerator) Option { return func(s *Service) { s.newID = fn } }

// WithClock overrides the clock used for scan stamps.
func WithClock(fn Clock) Option { return func(s *Service) { s.now = fn } }

// WithBatchSize sets the scan-all submission batch size.
func WithBatchSize(n int) Option { return func(s *Service) { s.batchSize = n } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option { return func(s *Service) { s.observer = o } }

// Service runs the duplicate detection jobs. It holds no lock across
// collaborator calls and is safe for concurrent use.
type Service struct {
	deps      Deps
	newID     IDGenerator
	now       Clock
	batchSize int
	logger    zerolog.Logger
	observer  Observer
}

// New creates a Service.
func New(deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("duplicate: source is nil")
	case deps.Searcher == nil:
		return nil, fmt.Errorf("duplicate: searcher is nil")
	case deps.Store == nil:
		return nil, fmt.Errorf("duplicate: store is nil")
	case deps.Queue == nil:
		return nil, fmt.Errorf("duplicate: queue is nil")
	case deps.Features == nil:
		return nil, fmt.Errorf("duplicate: features is nil")
	}
	s := &Service{
		deps:      deps,
		newID:     NewID,
		now:       time.Now,
		batchSize: DefaultBatchSize,
		logger:    zerolog.Nop(),
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.batchSize <= 0 {
		return nil, fmt.Errorf("duplicate: batch size must be positive, got %d", s.batchSize)
	}
	return s, nil
}

// Handle runs job and returns its terminal status.
func (s *Service) Handle(ctx context.Context, job asset.Job) (asset.Status, error) {
	if err := job.Validate(); err != nil {
		return asset.StatusFailed, err
	}
	start := time.Now()
	var (
		status asset.Status
		err    error
	)
	switch job.Name {
	case asset.JobScanAll:
		status, err = s.ScanAll(ctx, job.Force)
	default:
		status, err = s.ScanOne(ctx, job.AssetID)
	}
	if err != nil {
		status = asset.StatusFailed
	}
	s.observer.OnJob(job.Name, status, time.Since(start))
	return status, err
}

// ScanAll queues a scan-one job for every eligible asset, submitting them in
// batches. With force unset, assets that were already scanned are left out.
func (s *Service) ScanAll(ctx context.Context, force bool) (asset.Status, error) {
	features, err := s.deps.Features.DuplicateDetection(ctx)
	if err != nil {
		return asset.StatusFailed, err
	}
	if !features.Enabled {
		return asset.StatusSkipped, nil
	}

	var (
		batch = make([]asset.Job, 0, s.batchSize)
		total int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.deps.Queue.Submit(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		s.observer.OnSubmit(len(batch))
		// the queue may keep the submitted slice
		batch = make([]asset.Job, 0, s.batchSize)
		return nil
	}
	err = s.deps.Source.StreamForDetection(ctx, force, func(id string) error {
		batch = append(batch, asset.Job{Name: asset.JobScanOne, AssetID: id})
		if len(batch) >= s.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return asset.StatusFailed, err
	}
	if err := flush(); err != nil {
		return asset.StatusFailed, err
	}
	s.logger.Info().Bool("force", force).Int("jobs", total).Msg("queued duplicate detection")
	return asset.StatusSuccess, nil
}

// ScanOne detects duplicates of one asset and records the resulting group
// membership.
func (s *Service) ScanOne(ctx context.Context, id string) (asset.Status, error) {
	features, err := s.deps.Features.DuplicateDetection(ctx)
	if err != nil {
		return asset.StatusFailed, err
	}
	if !features.Enabled {
		return asset.StatusSkipped, nil
	}
	log := s.logger.With().Str(logging.KeyAssetID, id).Logger()

	a, err := s.deps.Source.LoadForDetection(ctx, id)
	if errors.Is(err, asset.ErrNotFound) || (err == nil && a == nil) {
		log.Warn().Msg("asset not found")
		return asset.StatusFailed, nil
	}
	if err != nil {
		return asset.StatusFailed, err
	}
	if a.Stacked() || a.Visibility.Excluded() {
		log.Debug().Str("visibility", string(a.Visibility)).Bool("stacked", a.Stacked()).Msg("asset excluded from duplicate detection")
		return asset.StatusSkipped, nil
	}
	if len(a.Embedding) == 0 {
		log.Warn().Msg("asset has no embedding")
		return asset.StatusFailed, nil
	}

	start := time.Now()
	matches, err := s.deps.Searcher.SearchDuplicates(ctx, asset.SearchQuery{
		AssetID:     a.ID,
		Embedding:   a.Embedding,
		MaxDistance: features.MaxDistance,
		Type:        a.Type,
		OwnerIDs:    []string{a.OwnerID},
	})
	s.observer.OnSearch(time.Since(start), len(matches), err)
	if err != nil {
		return asset.StatusFailed, err
	}

	stamped := []string{a.ID}
	if len(matches) == 0 {
		if a.DuplicateID != nil {
			if err := s.deps.Store.ClearGroup(ctx, a.ID); err != nil {
				return asset.StatusFailed, err
			}
			log.Debug().Str(logging.KeyDuplicateID, a.GroupID()).Msg("detached from group")
		}
	} else {
		plan := Plan(*a, matches, s.newID)
		if !plan.Noop() {
			if err := s.deps.Store.Merge(ctx, plan.TargetID, plan.AssetIDs, plan.SourceIDs); err != nil {
				return asset.StatusFailed, err
			}
			s.observer.OnMerge(len(plan.SourceIDs), plan.Created)
		}
		stamped = plan.AssetIDs
		log.Debug().
			Str(logging.KeyDuplicateID, plan.TargetID).
			Int(logging.KeyCandidates, len(matches)).
			Strs("absorbed", plan.SourceIDs).
			Msg("merged duplicates")
	}

	if err := s.deps.Store.StampScanned(ctx, stamped, s.now()); err != nil {
		return asset.StatusFailed, err
	}
	return asset.StatusSuccess, nil
}

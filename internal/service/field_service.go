package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/noah-isme/f2freport-api/internal/dto"
	"github.com/noah-isme/f2freport-api/internal/models"
	"github.com/noah-isme/f2freport-api/internal/report"
	appErrors "github.com/noah-isme/f2freport-api/pkg/errors"
)

const fieldResolutionKey = "field_resolution"

type metadataFieldLister interface {
	List(ctx context.Context) ([]models.MetadataField, error)
}

type schemaProber interface {
	Probe(ctx context.Context) (report.SchemaShape, error)
}

type invalidationBroadcaster interface {
	Publish(ctx context.Context, origin string) error
	Subscribe(ctx context.Context, fn func(origin string)) error
}

// FieldResolution is the memoized storage description used to compile reports.
type FieldResolution struct {
	FieldIDs   report.FieldIDs
	Fields     []models.MetadataField
	Shape      report.SchemaShape
	ResolvedAt time.Time
}

// FieldServiceConfig tunes field resolution.
type FieldServiceConfig struct {
	TTL     time.Duration
	Aliases map[string][]string
}

// FieldService resolves and memoizes metadata field ids and the schema shape.
type FieldService struct {
	fields      metadataFieldLister
	schema      schemaProber
	broadcaster invalidationBroadcaster
	cache       *gocache.Cache
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         FieldServiceConfig
	instanceID  string
	now         func() time.Time

	loadMu sync.Mutex
}

// NewFieldService constructs a FieldService. broadcaster may be nil.
func NewFieldService(fields metadataFieldLister, schema schemaProber, broadcaster invalidationBroadcaster, metrics *MetricsService, logger *zap.Logger, cfg FieldServiceConfig) *FieldService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if len(cfg.Aliases) == 0 {
		cfg.Aliases = report.DefaultAliases
	}
	return &FieldService{
		fields:      fields,
		schema:      schema,
		broadcaster: broadcaster,
		cache:       gocache.New(cfg.TTL, 2*cfg.TTL),
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		instanceID:  uuid.NewString(),
		now:         time.Now,
	}
}

// Resolution returns the memoized resolution, loading it on a miss.
func (s *FieldService) Resolution(ctx context.Context) (*FieldResolution, error) {
	start := time.Now()
	if cached, ok := s.cached(); ok {
		s.metrics.RecordCacheOperation(true, time.Since(start))
		return cached, nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if cached, ok := s.cached(); ok {
		s.metrics.RecordCacheOperation(true, time.Since(start))
		return cached, nil
	}

	resolution, err := s.load(ctx)
	s.metrics.RecordCacheOperation(false, time.Since(start))
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(fieldResolutionKey, resolution)
	return resolution, nil
}

func (s *FieldService) cached() (*FieldResolution, bool) {
	value, ok := s.cache.Get(fieldResolutionKey)
	if !ok {
		return nil, false
	}
	resolution, ok := value.(*FieldResolution)
	return resolution, ok
}

func (s *FieldService) load(ctx context.Context) (*FieldResolution, error) {
	queryStart := time.Now()
	shape, err := s.schema.Probe(ctx)
	s.metrics.ObserveDBQuery("schema_probe", time.Since(queryStart))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to probe session schema")
	}

	fields := make([]models.MetadataField, 0)
	if shape.HasFieldTable {
		queryStart = time.Now()
		fields, err = s.fields.List(ctx)
		s.metrics.ObserveDBQuery("session_fields", time.Since(queryStart))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session fields")
		}
	}

	ids := report.Resolve(s.cfg.Aliases, fields)
	if missing := ids.Missing(report.LocationFields...); len(missing) > 0 {
		s.logger.Warn("session fields unresolved", zap.Strings("fields", missing), zap.Bool("field_table", shape.HasFieldTable))
	}
	s.logger.Info("session fields resolved",
		zap.Any("field_ids", ids),
		zap.String("dates", shape.Dates.String()),
		zap.Bool("capacity", shape.HasCapacity),
	)

	return &FieldResolution{FieldIDs: ids, Fields: fields, Shape: shape, ResolvedAt: s.now()}, nil
}

// Diagnostics describes the current resolution.
func (s *FieldService) Diagnostics(ctx context.Context) (*dto.FieldDiagnostics, error) {
	resolution, err := s.Resolution(ctx)
	if err != nil {
		return nil, err
	}
	missing := resolution.FieldIDs.Missing(report.LocationFields...)
	if missing == nil {
		missing = []string{}
	}
	return &dto.FieldDiagnostics{
		FieldIDs:   resolution.FieldIDs,
		Missing:    missing,
		Fields:     resolution.Fields,
		Shape:      resolution.Shape,
		ResolvedAt: resolution.ResolvedAt,
	}, nil
}

// Invalidate drops the memo locally and notifies other replicas.
func (s *FieldService) Invalidate(ctx context.Context) error {
	s.cache.Flush()
	s.metrics.RecordCacheInvalidation("local")
	if s.broadcaster == nil {
		return nil
	}
	if err := s.broadcaster.Publish(ctx, s.instanceID); err != nil {
		s.logger.Warn("failed to broadcast field cache invalidation", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to broadcast invalidation")
	}
	return nil
}

// ListenInvalidations flushes the memo on invalidations from other replicas until ctx is done.
func (s *FieldService) ListenInvalidations(ctx context.Context) error {
	if s.broadcaster == nil {
		return nil
	}
	return s.broadcaster.Subscribe(ctx, func(origin string) {
		if origin == s.instanceID {
			return
		}
		s.cache.Flush()
		s.metrics.RecordCacheInvalidation("remote")
		s.logger.Info("field cache invalidated by peer", zap.String("origin", origin))
	})
}

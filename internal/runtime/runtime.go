package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/vinodismyname/mfgstats/config"
	"golang.org/x/sync/semaphore"
)

// ErrDatasetLimit reports that every dataset slot is in use.
var ErrDatasetLimit = errors.New("runtime: open dataset limit reached")

// Limits captures the concurrency and dataset guardrails configured for the server.
type Limits struct {
	// Concurrency caps
	MaxConcurrentRequests int
	MaxOpenDatasets       int

	// Payload and row bounds
	MaxPayloadBytes int
	MaxCellsPerLoad int
	PreviewRowLimit int
	MaxPreviewRows  int

	// Timeouts
	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
}

// NewLimits initializes Limits with sensible fallbacks when values are unset.
func NewLimits(maxConcurrentRequests, maxOpenDatasets int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	if maxOpenDatasets <= 0 {
		maxOpenDatasets = config.DefaultMaxOpenDatasets
	}

	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxOpenDatasets:       maxOpenDatasets,
		MaxPayloadBytes:       config.DefaultMaxPayloadBytes,
		MaxCellsPerLoad:       config.DefaultMaxCellsPerLoad,
		PreviewRowLimit:       config.DefaultPreviewRowLimit,
		MaxPreviewRows:        config.DefaultMaxPreviewRows,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
	}
}

// LimitsFromConfig derives Limits from operator configuration.
func LimitsFromConfig(cfg *config.Config) Limits {
	limits := NewLimits(cfg.MaxConcurrentRequests, cfg.MaxOpenDatasets)
	if cfg.MaxCellsPerLoad > 0 {
		limits.MaxCellsPerLoad = cfg.MaxCellsPerLoad
	}
	if cfg.OperationTimeout > 0 {
		limits.OperationTimeout = cfg.OperationTimeout
	}
	return limits
}

// FitContextWindow caps MaxPayloadBytes at a quarter of a client context
// window of tokens, taken as four bytes per token, and never lowers it below
// config.MinPayloadBytes. tokens <= 0 leaves the limits unchanged.
func (l Limits) FitContextWindow(tokens int) Limits {
	if tokens <= 0 {
		return l
	}
	budget := max(tokens, config.MinPayloadBytes)
	if l.MaxPayloadBytes <= 0 || budget < l.MaxPayloadBytes {
		l.MaxPayloadBytes = budget
	}
	return l
}

// Controller coordinates runtime semaphores for request and dataset guardrails.
type Controller struct {
	limits           Limits
	requestSemaphore *semaphore.Weighted
	datasetSemaphore *semaphore.Weighted
}

// NewController constructs a Controller backed by weighted semaphores.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:           limits,
		requestSemaphore: semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
		datasetSemaphore: semaphore.NewWeighted(int64(limits.MaxOpenDatasets)),
	}
}

// AcquireRequest reserves capacity for an incoming request.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	return c.requestSemaphore.Acquire(ctx, 1)
}

// ReleaseRequest frees previously-acquired request capacity.
func (c *Controller) ReleaseRequest() {
	c.requestSemaphore.Release(1)
}

// AcquireWorkbook reserves a slot for one loaded dataset. Acquisition fails
// immediately when every slot is taken so callers can ask clients to close
// an existing dataset instead of blocking.
func (c *Controller) AcquireWorkbook(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.datasetSemaphore.TryAcquire(1) {
		return ErrDatasetLimit
	}
	return nil
}

// ReleaseWorkbook frees a dataset slot.
func (c *Controller) ReleaseWorkbook() {
	c.datasetSemaphore.Release(1)
}

// LimitsSnapshot exposes the configured guardrails for telemetry and discovery.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}

package config

import "time"

// Default runtime limits and guardrails for the manufacturing statistics server.
// They are referenced by internal/runtime and internal/workbooks and can be
// overridden through the environment (see Config).

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	DefaultMaxOpenDatasets       = 4

	// Payload and row limits
	DefaultMaxPayloadBytes = 128 * 1024 // 128KB
	MinPayloadBytes        = 16 * 1024
	DefaultMaxCellsPerLoad = 2_000_000
	DefaultPreviewRowLimit = 10 // First 10 rows by default
	DefaultMaxPreviewRows  = 500
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second

	// Dataset cache
	DefaultDatasetIdleTTL       = 30 * time.Minute
	DefaultDatasetCleanupPeriod = time.Minute
)

const (
	// Sector view
	DefaultTopSectors = 10
	MinTopSectors     = 1
	MaxTopSectors     = 15

	// Regional view
	DefaultTopStates = 5

	// Entries preselected for side-by-side comparison
	DefaultCompareCount = 3

	// Display labels
	DefaultMetricColumn = "Value"
)

package workbooks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vinodismyname/mfgstats/config"
	"github.com/vinodismyname/mfgstats/internal/dataset"
	"github.com/xuri/excelize/v2"
)

// Handle is a cached dataset snapshot paired with metadata for TTL eviction.
type Handle struct {
	ID        string
	Path      string
	Snapshot  *dataset.Snapshot
	LoadedAt  time.Time
	ExpiresAt time.Time
	// LoadErr keeps a metric resolution failure so views can report it
	// while the rows stay available for preview and export.
	LoadErr error
	load    dataset.LoadOptions
	mu      sync.RWMutex
}

// View is a consistent read of a handle at one point in time.
type View struct {
	ID       string
	Snapshot *dataset.Snapshot
	LoadErr  error
	LoadedAt time.Time
}

// WorkbookGate coordinates capacity for open dataset handles (backed by runtime.Controller).
type WorkbookGate interface {
	AcquireWorkbook(ctx context.Context) error
	ReleaseWorkbook()
}

// PathValidator abstracts filesystem path validation. Implementations should
// return a canonical absolute path if allowed, or an error when denied.
type PathValidator interface {
	ValidateOpenPath(path string) (string, error)
}

// Options configures a Manager. Zero values fall back to config defaults.
type Options struct {
	TTL          time.Duration
	CleanupEvery time.Duration
	Gate         WorkbookGate
	Clock        func() time.Time
	Validator    PathValidator
	Load         dataset.LoadOptions
}

// Manager loads workbooks into snapshots and caches them under handle IDs.
type Manager struct {
	mu           sync.RWMutex
	handles      map[string]*Handle
	byPath       map[string]string
	ttl          time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
	gate         WorkbookGate
	validator    PathValidator
	load         dataset.LoadOptions
	stopCh       chan struct{}
	stopOnce     sync.Once
	cleanupWG    sync.WaitGroup
}

// ErrHandleNotFound indicates an unknown or expired handle ID.
var ErrHandleNotFound = errors.New("workbooks: handle not found")

// ErrNoSource indicates a handle that was not loaded from a file.
var ErrNoSource = errors.New("workbooks: handle has no source file")

// ErrUnsupportedFormat indicates a path without an Excel extension.
var ErrUnsupportedFormat = errors.New("workbooks: unsupported format")

// NewManager constructs a manager with a TTL-bearing handle cache.
func NewManager(opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = config.DefaultDatasetIdleTTL
	}
	if opts.CleanupEvery <= 0 {
		opts.CleanupEvery = config.DefaultDatasetCleanupPeriod
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{
		handles:      make(map[string]*Handle),
		byPath:       make(map[string]string),
		ttl:          opts.TTL,
		cleanupEvery: opts.CleanupEvery,
		clock:        opts.Clock,
		gate:         opts.Gate,
		validator:    opts.Validator,
		load:         opts.Load,
		stopCh:       make(chan struct{}),
	}
}

// Start launches periodic eviction of expired handles.
func (m *Manager) Start() {
	m.cleanupWG.Add(1)
	ticker := time.NewTicker(m.cleanupEvery)
	go func() {
		defer m.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.EvictExpired()
			}
		}
	}()
}

// Close stops background cleanup and drops all handles.
func (m *Manager) Close(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	done := make(chan struct{})
	go func() { m.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.handles {
		delete(m.handles, id)
		m.release()
	}
	m.byPath = make(map[string]string)
	return nil
}

// Open loads the workbook at path into a snapshot and returns its handle ID.
// Capacity is reserved through the gate for as long as the handle lives.
func (m *Manager) Open(ctx context.Context, path string) (string, error) {
	return m.OpenWithOptions(ctx, path, dataset.LoadOptions{})
}

// OpenWithOptions is Open with per-call sheet selection and metric
// preference. Zero fields fall back to the manager's load options.
func (m *Manager) OpenWithOptions(ctx context.Context, path string, opts dataset.LoadOptions) (string, error) {
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	h, err := m.loadHandle(ctx, path, m.mergeLoad(opts))
	if err != nil {
		m.release()
		return "", err
	}
	m.register(h)
	return h.ID, nil
}

// GetOrOpenByPath returns a live handle for the canonical path when one is
// cached, loading the workbook otherwise.
func (m *Manager) GetOrOpenByPath(ctx context.Context, path string) (string, string, error) {
	canonical, err := m.canonical(path)
	if err != nil {
		return "", "", err
	}
	m.mu.RLock()
	id, ok := m.byPath[canonical]
	m.mu.RUnlock()
	if ok {
		if _, live := m.Get(id); live {
			return id, canonical, nil
		}
	}
	if err := m.acquire(ctx); err != nil {
		return "", "", err
	}
	h, err := m.loadHandle(ctx, canonical, m.mergeLoad(dataset.LoadOptions{}))
	if err != nil {
		m.release()
		return "", "", err
	}
	if winner, ok := m.registerForPath(h); !ok {
		// A concurrent call cached the path first.
		m.release()
		return winner, canonical, nil
	}
	return h.ID, canonical, nil
}

// Adopt registers an already-built snapshot. Intended for tests or in-memory sources.
func (m *Manager) Adopt(ctx context.Context, snap *dataset.Snapshot) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("workbooks: nil snapshot")
	}
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	h := m.newHandle(snap.Path(), snap, nil, m.load)
	m.register(h)
	return h.ID, nil
}

// Get returns the handle when present and refreshes its TTL.
func (m *Manager) Get(id string) (*Handle, bool) {
	m.mu.RLock()
	h, ok := m.handles[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := m.clock()
	h.mu.Lock()
	h.ExpiresAt = now.Add(m.ttl)
	h.mu.Unlock()
	return h, true
}

// WithRead runs fn against the handle's snapshot under a shared lock.
func (m *Manager) WithRead(id string, fn func(*dataset.Snapshot, error) error) error {
	h, ok := m.Get(id)
	if !ok {
		return ErrHandleNotFound
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(h.Snapshot, h.LoadErr)
}

// View returns the handle's current snapshot, load error and load time.
func (m *Manager) View(id string) (View, error) {
	h, ok := m.Get(id)
	if !ok {
		return View{}, ErrHandleNotFound
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return View{ID: h.ID, Snapshot: h.Snapshot, LoadErr: h.LoadErr, LoadedAt: h.LoadedAt}, nil
}

// Reload re-reads the handle's workbook from disk and swaps the snapshot in
// place. Readers holding the old snapshot are unaffected.
func (m *Manager) Reload(ctx context.Context, id string) error {
	h, ok := m.Get(id)
	if !ok {
		return ErrHandleNotFound
	}
	if h.Path == "" {
		return fmt.Errorf("%w: %s", ErrNoSource, id)
	}
	h.mu.RLock()
	opts := h.load
	h.mu.RUnlock()
	fresh, err := m.loadHandle(ctx, h.Path, opts)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.Snapshot = fresh.Snapshot
	h.LoadErr = fresh.LoadErr
	h.LoadedAt = fresh.LoadedAt
	h.mu.Unlock()
	return nil
}

// CloseHandle removes a handle by ID, releasing capacity via the gate.
func (m *Manager) CloseHandle(ctx context.Context, id string) error {
	m.mu.Lock()
	h, ok := m.handles[id]
	if ok {
		delete(m.handles, id)
		if m.byPath[h.Path] == id {
			delete(m.byPath, h.Path)
		}
	}
	m.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}
	m.release()
	return nil
}

// EvictExpired drops handles whose TTL has elapsed.
func (m *Manager) EvictExpired() {
	now := m.clock()
	var expiredIDs []string

	m.mu.RLock()
	for id, h := range m.handles {
		if h.Expired(now) {
			expiredIDs = append(expiredIDs, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expiredIDs {
		_ = m.CloseHandle(context.Background(), id)
	}
}

// Count returns the current number of cached handles.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

// Expired reports whether the handle has reached its TTL.
func (h *Handle) Expired(now time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return now.After(h.ExpiresAt)
}

func (m *Manager) canonical(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if m.validator == nil {
		return path, nil
	}
	return m.validator.ValidateOpenPath(path)
}

func (m *Manager) mergeLoad(opts dataset.LoadOptions) dataset.LoadOptions {
	if len(opts.Sheets) == 0 {
		opts.Sheets = m.load.Sheets
	}
	if opts.MetricColumn == "" {
		opts.MetricColumn = m.load.MetricColumn
	}
	if opts.MaxCells <= 0 {
		opts.MaxCells = m.load.MaxCells
	}
	return opts
}

func (m *Manager) loadHandle(ctx context.Context, path string, opts dataset.LoadOptions) (*Handle, error) {
	canonical, err := m.canonical(path)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(canonical)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	opts.Path = canonical
	snap, err := dataset.Load(ctx, f, opts)
	if snap == nil {
		return nil, err
	}
	return m.newHandle(canonical, snap, err, opts), nil
}

func (m *Manager) newHandle(path string, snap *dataset.Snapshot, loadErr error, opts dataset.LoadOptions) *Handle {
	loadedAt := m.clock()
	return &Handle{
		ID:        uuid.NewString(),
		Path:      path,
		Snapshot:  snap,
		LoadErr:   loadErr,
		load:      opts,
		LoadedAt:  loadedAt,
		ExpiresAt: loadedAt.Add(m.ttl),
	}
}

func (m *Manager) register(h *Handle) {
	m.mu.Lock()
	m.handles[h.ID] = h
	if h.Path != "" {
		m.byPath[h.Path] = h.ID
	}
	m.mu.Unlock()
}

// registerForPath registers h unless a live handle already owns its path,
// in which case that handle's ID is returned with false.
func (m *Manager) registerForPath(h *Handle) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byPath[h.Path]; ok {
		if _, live := m.handles[id]; live {
			return id, false
		}
	}
	m.handles[h.ID] = h
	m.byPath[h.Path] = h.ID
	return h.ID, true
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	return m.gate.AcquireWorkbook(ctx)
}

func (m *Manager) release() {
	if m.gate == nil {
		return
	}
	m.gate.ReleaseWorkbook()
}

package workbooks

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/mfgstats/internal/dataset"
	"github.com/vinodismyname/mfgstats/internal/engine"
	"github.com/xuri/excelize/v2"
)

// fakeGate implements WorkbookGate for tests with counters.
type fakeGate struct {
	acquireErr error
	acquires   atomic.Int64
	releases   atomic.Int64
}

func (g *fakeGate) AcquireWorkbook(ctx context.Context) error {
	g.acquires.Add(1)
	return g.acquireErr
}
func (g *fakeGate) ReleaseWorkbook() { g.releases.Add(1) }

func writeWorkbook(t *testing.T, rows ...[]string) string {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]string{"Year", "State", "NIC Description", "Value"}))
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	path := filepath.Join(t.TempDir(), "asi.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func testSnapshot(t *testing.T) *dataset.Snapshot {
	t.Helper()
	snap, err := dataset.NewSnapshot("", []string{"Value"}, []engine.Row{{Cells: map[string]string{"Value": "1"}}}, "", dataset.Meta{})
	require.NoError(t, err)
	return snap
}

func TestAdoptGetClose(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(Options{TTL: 2 * time.Second, CleanupEvery: time.Second, Gate: gate})

	id, err := m.Adopt(context.Background(), testSnapshot(t))
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, 1, m.Count())

	h, ok := m.Get(id)
	require.True(t, ok)
	require.Equal(t, id, h.ID)

	require.NoError(t, m.CloseHandle(context.Background(), id))
	require.Equal(t, 0, m.Count())
	require.Equal(t, int64(1), gate.releases.Load())
	require.ErrorIs(t, m.CloseHandle(context.Background(), id), ErrHandleNotFound)
}

func TestTTLExpiryAndEviction(t *testing.T) {
	var now atomic.Int64
	now.Store(time.Now().UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()) }

	gate := &fakeGate{}
	m := NewManager(Options{TTL: 50 * time.Millisecond, CleanupEvery: 5 * time.Millisecond, Gate: gate, Clock: clock})

	_, err := m.Adopt(context.Background(), testSnapshot(t))
	require.NoError(t, err)
	require.Equal(t, 1, m.Count())

	now.Store(time.Now().Add(200 * time.Millisecond).UnixNano())
	m.EvictExpired()

	require.Equal(t, 0, m.Count())
	require.Equal(t, int64(1), gate.releases.Load())
}

func TestOpen_LoadsSnapshotAndReusesByPath(t *testing.T) {
	path := writeWorkbook(t,
		[]string{"2019", "Kerala", "Manufacture of food products", "10"},
		[]string{"2020", "Kerala", "Manufacture of food products", "12"},
	)
	gate := &fakeGate{}
	m := NewManager(Options{Gate: gate})

	id, canonical, err := m.GetOrOpenByPath(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, path, canonical)

	err = m.WithRead(id, func(s *dataset.Snapshot, loadErr error) error {
		require.NoError(t, loadErr)
		require.Equal(t, 2, s.Len())
		require.Equal(t, path, s.Path())
		return nil
	})
	require.NoError(t, err)

	again, _, err := m.GetOrOpenByPath(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, id, again)
	require.Equal(t, int64(1), gate.acquires.Load())

	before, err := m.View(id)
	require.NoError(t, err)
	require.Equal(t, id, before.ID)

	require.NoError(t, m.Reload(context.Background(), id))
	after, err := m.View(id)
	require.NoError(t, err)
	require.False(t, after.LoadedAt.Before(before.LoadedAt))
	require.Equal(t, 2, after.Snapshot.Len())
	require.NoError(t, m.Close(context.Background()))
	require.Equal(t, 0, m.Count())
	require.Equal(t, int64(1), gate.releases.Load())
}

func TestGetOrOpenByPath_ConcurrentCallsShareHandle(t *testing.T) {
	path := writeWorkbook(t, []string{"2019", "Goa", "Manufacture of food products", "4"})
	gate := &fakeGate{}
	m := NewManager(Options{Gate: gate})

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ids[i], _, errs[i] = m.GetOrOpenByPath(context.Background(), path)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
	require.Equal(t, 1, m.Count())
	// Every slot taken by a losing load was given back.
	require.Equal(t, int64(1), gate.acquires.Load()-gate.releases.Load())
}

func TestOpen_KeepsMetricResolutionError(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]string{"Year", "State"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]string{"2019", "Goa"}))
	path := filepath.Join(t.TempDir(), "nometric.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	m := NewManager(Options{})
	id, err := m.Open(context.Background(), path)
	require.NoError(t, err)
	err = m.WithRead(id, func(s *dataset.Snapshot, loadErr error) error {
		require.ErrorIs(t, loadErr, engine.ErrMissingColumn)
		require.Equal(t, 1, s.Len())
		return nil
	})
	require.NoError(t, err)
}

func TestOpen_UnsupportedFormatReleasesGate(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(Options{Gate: gate})

	_, err := m.Open(context.Background(), "not_excel.txt")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, int64(1), gate.releases.Load())
}

func TestOpen_GateBusy(t *testing.T) {
	gate := &fakeGate{acquireErr: context.DeadlineExceeded}
	m := NewManager(Options{Gate: gate})

	_, err := m.Open(context.Background(), "sheet.xlsx")
	require.Error(t, err)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, int64(0), gate.releases.Load())
}

type denyValidator struct{}

func (denyValidator) ValidateOpenPath(string) (string, error) { return "", fmt.Errorf("denied") }

func TestOpen_PathValidatorDenied_ReleasesGate(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(Options{Gate: gate, Validator: denyValidator{}})

	_, err := m.Open(context.Background(), "ok.xlsx")
	require.Error(t, err)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, int64(1), gate.releases.Load())
}

func TestWithRead_UnknownHandle(t *testing.T) {
	m := NewManager(Options{})
	err := m.WithRead("missing", func(*dataset.Snapshot, error) error { return nil })
	require.ErrorIs(t, err, ErrHandleNotFound)
}

func TestStartStopsOnClose(t *testing.T) {
	m := NewManager(Options{CleanupEvery: time.Millisecond})
	m.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))
}

func TestOpenWithOptions_SheetSelection(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]string{"Year", "State", "Amount"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]string{"2019", "Goa", "5"}))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Other", "A1", &[]string{"Year", "State", "Amount"}))
	require.NoError(t, f.SetSheetRow("Other", "A2", &[]string{"2020", "Goa", "7"}))
	path := filepath.Join(t.TempDir(), "two.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	m := NewManager(Options{})
	id, err := m.OpenWithOptions(context.Background(), path, dataset.LoadOptions{Sheets: []string{"Other"}, MetricColumn: "Amount"})
	require.NoError(t, err)

	v, err := m.View(id)
	require.NoError(t, err)
	require.NoError(t, v.LoadErr)
	require.Equal(t, 1, v.Snapshot.Len())
	require.Equal(t, "Amount", v.Snapshot.MetricColumn())
	require.Equal(t, []string{"Other"}, v.Snapshot.Sources())
}

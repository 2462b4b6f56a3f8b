// Package calibration implements piecewise-linear adjustment tables keyed
// by (frequency, reference-power), selected by nearest match on mode
// change and applied to raw measurements.
package calibration

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
)

// Row is a single calibration data point.
type Row struct {
	Frequency      uint64  `yaml:"frequency"`
	ReferencePower float64 `yaml:"referencePower"`
	ReferenceValue float64 `yaml:"referenceValue"`
	Adjustment     float64 `yaml:"adjustment"`
}

// TableMeta holds a table's identity and its factory-default rows, which
// WriteCalibrationTable reverts to when given an empty row set.
type TableMeta struct {
	Name           string `yaml:"name"`
	FactoryDefault []Row  `yaml:"factoryDefault"`
}

// table is one calibration table plus its currently selected interpolating
// function, rebuilt whenever SetMode or WriteCalibrationTable changes it.
type table struct {
	meta TableMeta
	rows []Row

	mu       sync.RWMutex
	selected *piecewise
}

func newTable(meta TableMeta) *table {
	t := &table{meta: meta, rows: meta.FactoryDefault}
	t.rebuild(0, 0)
	return t
}

// rebuild picks the row set's frequency nearest freq, then within that
// frequency the reference power nearest refPower, and compiles the
// resulting rows into a piecewise-linear function.
func (t *table) rebuild(freq uint64, refPower float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.rows) == 0 {
		t.selected = nil
		return
	}

	byFreq := make(map[uint64][]Row)
	for _, r := range t.rows {
		byFreq[r.Frequency] = append(byFreq[r.Frequency], r)
	}

	nearestFreq := nearestUint64Key(byFreq, freq)
	candidates := byFreq[nearestFreq]

	byPower := make(map[float64][]Row)
	for _, r := range candidates {
		byPower[r.ReferencePower] = append(byPower[r.ReferencePower], r)
	}
	nearestPower := nearestFloat64Key(byPower, refPower)

	rows := byPower[nearestPower]
	sort.Slice(rows, func(i, j int) bool { return rows[i].ReferenceValue < rows[j].ReferenceValue })
	t.selected = newPiecewise(rows)
}

func (t *table) value(measured float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.selected == nil {
		return measured
	}
	return t.selected.eval(measured)
}

func nearestUint64Key(m map[uint64][]Row, target uint64) uint64 {
	var best uint64
	bestDiff := uint64(math.MaxUint64)
	first := true
	for k := range m {
		var diff uint64
		if k > target {
			diff = k - target
		} else {
			diff = target - k
		}
		if first || diff < bestDiff {
			best, bestDiff, first = k, diff, false
		}
	}
	return best
}

func nearestFloat64Key(m map[float64][]Row, target float64) float64 {
	var best float64
	bestDiff := math.Inf(1)
	first := true
	for k := range m {
		diff := math.Abs(k - target)
		if first || diff < bestDiff {
			best, bestDiff, first = k, diff, false
		}
	}
	return best
}

// piecewise is a piecewise-linear function built from a sorted set of
// (referenceValue -> adjustment) control points, with endpoint-slope
// extrapolation outside its domain.
type piecewise struct {
	xs []float64 // reference (measured) values, ascending
	ys []float64 // corrected values: x + adjustment
}

func newPiecewise(rows []Row) *piecewise {
	p := &piecewise{}
	for _, r := range rows {
		p.xs = append(p.xs, r.ReferenceValue)
		p.ys = append(p.ys, r.ReferenceValue+r.Adjustment)
	}
	return p
}

func (p *piecewise) eval(x float64) float64 {
	n := len(p.xs)
	if n == 0 {
		return x
	}
	if n == 1 {
		return p.ys[0] + (x - p.xs[0])
	}

	if x <= p.xs[0] {
		slope := (p.ys[1] - p.ys[0]) / (p.xs[1] - p.xs[0])
		return p.ys[0] + slope*(x-p.xs[0])
	}
	if x >= p.xs[n-1] {
		slope := (p.ys[n-1] - p.ys[n-2]) / (p.xs[n-1] - p.xs[n-2])
		return p.ys[n-1] + slope*(x-p.xs[n-1])
	}

	i := sort.SearchFloat64s(p.xs, x)
	if i > 0 && p.xs[i] != x {
		i--
	}
	if i >= n-1 {
		i = n - 2
	}
	slope := (p.ys[i+1] - p.ys[i]) / (p.xs[i+1] - p.xs[i])
	return p.ys[i] + slope*(x-p.xs[i])
}

// Engine owns every calibration table and selects, per table, the row set
// nearest the switcher's current (frequency, refPower).
type Engine struct {
	dir string

	mu     sync.RWMutex
	tables []*table

	// curFreq/curRefPower are the mode SetMode last selected, read back by
	// WriteCalibrationTable so a table edited mid-mode keeps its active
	// selection instead of reverting to the zero mode.
	curFreq     uint64
	curRefPower float64

	inProgress atomic.Bool
}

// New creates an Engine persisting to dir, loading any calibration files
// already present there, keyed by table index in metas.
func New(dir string, metas []TableMeta) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating calibration folder: %w", err)
	}

	e := &Engine{dir: dir}
	for _, meta := range metas {
		t := newTable(meta)
		if rows, ok, err := e.loadFile(meta.Name); err != nil {
			return nil, err
		} else if ok {
			t.rows = rows
			t.rebuild(0, 0)
		}
		e.tables = append(e.tables, t)
	}
	return e, nil
}

func (e *Engine) filePath(name string) string {
	return filepath.Join(e.dir, name+".yaml")
}

func (e *Engine) loadFile(name string) ([]Row, bool, error) {
	raw, err := os.ReadFile(e.filePath(name))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading calibration table %q: %w", name, err)
	}

	var rows []Row
	if err := yaml.Unmarshal(raw, &rows); err != nil {
		return nil, false, fmt.Errorf("decoding calibration table %q: %w", name, err)
	}
	return rows, true, nil
}

// SetMode rebuilds every table's selected interpolating function for the
// given mode frequency and reference power.
func (e *Engine) SetMode(freq uint64, refPower float64) {
	e.mu.Lock()
	e.curFreq, e.curRefPower = freq, refPower
	tables := e.tables
	e.mu.Unlock()

	for _, t := range tables {
		t.rebuild(freq, refPower)
	}
}

// currentMode returns the (frequency, refPower) SetMode last selected.
func (e *Engine) currentMode() (uint64, float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.curFreq, e.curRefPower
}

// Value returns the calibrated value for a raw measurement from table
// index, or the raw value unchanged while calibration is in progress or
// the table has no rows.
func (e *Engine) Value(index int, measured float64) (float64, error) {
	t, err := e.table(index)
	if err != nil {
		return measured, err
	}
	if e.inProgress.Load() {
		return measured, nil
	}
	return t.value(measured), nil
}

func (e *Engine) table(index int) (*table, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if index < 0 || index >= len(e.tables) {
		return nil, fmt.Errorf("%w: calibration table index %d", errkind.ErrNotFound, index)
	}
	return e.tables[index], nil
}

// TableCount returns the number of registered calibration tables.
func (e *Engine) TableCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tables)
}

// InProgress reports whether calibration is currently suspended.
func (e *Engine) InProgress() bool { return e.inProgress.Load() }

// StartCalibration suspends adjustment on every table until StopCalibration
// is called.
func (e *Engine) StartCalibration() { e.inProgress.Store(true) }

// StopCalibration resumes adjustment.
func (e *Engine) StopCalibration() { e.inProgress.Store(false) }

// TableInfo describes a table for the ReadCalibrationTableInfo request.
type TableInfo struct {
	Name     string
	RowCount int
}

// ReadTableInfo returns table index's metadata.
func (e *Engine) ReadTableInfo(index int) (TableInfo, error) {
	t, err := e.table(index)
	if err != nil {
		return TableInfo{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TableInfo{Name: t.meta.Name, RowCount: len(t.rows)}, nil
}

// ReadTableRow returns a single row from table index.
func (e *Engine) ReadTableRow(index, rowIndex int) (Row, error) {
	t, err := e.table(index)
	if err != nil {
		return Row{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if rowIndex < 0 || rowIndex >= len(t.rows) {
		return Row{}, fmt.Errorf("%w: row index %d", errkind.ErrNotFound, rowIndex)
	}
	return t.rows[rowIndex], nil
}

// WriteCalibrationTable replaces table index's rows and persists them.
// An empty row set reverts the table to its compiled-in factory default.
func (e *Engine) WriteCalibrationTable(index int, meta TableMeta, rows []Row) error {
	t, err := e.table(index)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if meta.Name != "" {
		t.meta.Name = meta.Name
	}
	if len(rows) == 0 {
		t.rows = t.meta.FactoryDefault
	} else {
		t.rows = rows
	}
	name := t.meta.Name
	persisted := t.rows
	t.mu.Unlock()

	freq, refPower := e.currentMode()
	t.rebuild(freq, refPower)

	raw, err := yaml.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("encoding calibration table: %w", err)
	}
	if err := os.WriteFile(e.filePath(name), raw, 0o644); err != nil {
		return fmt.Errorf("writing calibration table: %w", err)
	}
	return nil
}

// Package measure runs M² measurements, scanning a beam profiler along the
// beam on a translation stage and fitting the caustic.
//
// Stage positions are in pulses; the dataset speaks mm.  Beam widths are D4σ
// diameters in µm.
package measure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nasa-jpl/nanosquared/nanoscan"
	"github.com/nasa-jpl/nanosquared/optosigma"
)

// ErrConfiguration is generated when the stage can not travel far enough for
// the caustic of the beam
var ErrConfiguration = errors.New("the travel range of the stage does not support the current configuration")

// Profiler measures averaged beam widths, see nanoscan.Profiler
type Profiler interface {
	AverageD4SigmaRaw(ctx context.Context, axis nanoscan.Axis, opts nanoscan.AverageOptions) (nanoscan.Widths, nanoscan.Samples, error)
}

// Stage moves the profiler along the beam, see optosigma.GSC01
type Stage interface {
	MovePulses(pos int) error
	Wait(ctx context.Context) error
	Pulses() (int, error)
	HomeStage(ctx context.Context) error
	FindRange(ctx context.Context) (int, error)
	Ranged() bool
	Limits() (int, int)
	PulseToMM(p int) float64
	MMToPulse(mm float64) int
}

// Option configures a Measurement
type Option func(*Measurement)

// WithLogger sets the logger of the measurement
func WithLogger(l *zap.Logger) Option {
	return func(m *Measurement) {
		m.log = l
	}
}

// WithRawLog writes every revolution measured to w
func WithRawLog(w io.Writer) Option {
	return func(m *Measurement) {
		m.raw = w
	}
}

// Measurement scans a profiler along a beam.  Its methods are serialized
type Measurement struct {
	prof  Profiler
	stage Stage
	log   *zap.Logger
	raw   io.Writer

	mu   sync.Mutex
	avg  nanoscan.AverageOptions
	data Dataset
}

// New returns a Measurement using prof and stage.  No I/O happens until Init
// or a measurement
func New(prof Profiler, stage Stage, opts ...Option) *Measurement {
	m := &Measurement{
		prof:  prof,
		stage: stage,
		log:   zap.NewNop(),
		avg:   nanoscan.AverageOptions{Samples: 10, Threshold: nanoscan.DefaultAverage.Threshold},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init homes the stage and measures its range
func (m *Measurement) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.init(ctx)
}

func (m *Measurement) init(ctx context.Context) error {
	if err := m.stage.HomeStage(ctx); err != nil {
		return err
	}
	_, err := m.stage.FindRange(ctx)
	return err
}

// Data returns the dataset of the last TakeMeasurements
func (m *Measurement) Data() Dataset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// SetAveraging sets the outlier rejection used by MeasureAt.  The number of
// samples is ignored
func (m *Measurement) SetAveraging(opts nanoscan.AverageOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.avg.Outliers = opts.Outliers
	m.avg.Threshold = opts.Threshold
}

// Averaging returns the outlier rejection used by MeasureAt and the searches
func (m *Measurement) Averaging() nanoscan.AverageOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.avg
}

// MeasureAt moves the stage to pos pulses and returns the D4σ widths
// averaged over samples revolutions
func (m *Measurement) MeasureAt(ctx context.Context, axis nanoscan.Axis, pos, samples int) (nanoscan.Widths, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.measureAt(ctx, axis, pos, samples)
}

func (m *Measurement) measureAt(ctx context.Context, axis nanoscan.Axis, pos, samples int) (nanoscan.Widths, error) {
	if err := m.stage.MovePulses(pos); err != nil {
		return nanoscan.Widths{}, err
	}
	if err := m.stage.Wait(ctx); err != nil {
		return nanoscan.Widths{}, err
	}
	opts := m.avg
	opts.Samples = samples
	w, raw, err := m.prof.AverageD4SigmaRaw(ctx, axis, opts)
	if err != nil {
		return w, err
	}
	m.log.Debug("measured", zap.Int("pos", pos), zap.Stringer("axis", axis),
		zap.Float64("x", w.X.Mean), zap.Float64("y", w.Y.Mean))
	m.writeRaw(m.stage.PulseToMM(pos), axis, raw)
	return w, nil
}

// width returns the mean width of axis, which must be X or Y
func width(w nanoscan.Widths, axis nanoscan.Axis) float64 {
	if axis == nanoscan.Y {
		return w.Y.Mean
	}
	return w.X.Mean
}

func (m *Measurement) writeRaw(pos float64, axis nanoscan.Axis, raw nanoscan.Samples) {
	if m.raw == nil {
		return
	}
	var b strings.Builder
	switch axis {
	case nanoscan.Both:
		b.WriteString("# position[mm]\tx_diam[um]\ty_diam[um]\n")
		for i := range raw.X {
			fmt.Fprintf(&b, "%s\t%s\t%s\n", fmtFloat(pos), fmtFloat(raw.X[i]), fmtFloat(raw.Y[i]))
		}
	default:
		xs := raw.X
		if axis == nanoscan.Y {
			xs = raw.Y
		}
		fmt.Fprintf(&b, "# position[mm]\t%s_diam[um]\n", strings.ToLower(axis.String()))
		for _, x := range xs {
			fmt.Fprintf(&b, "%s\t%s\n", fmtFloat(pos), fmtFloat(x))
		}
	}
	m.rawWrite(b.String())
}

func (m *Measurement) rawSection(name string) {
	if m.raw != nil {
		m.rawWrite("# === " + name + " ===\n")
	}
}

func (m *Measurement) rawWrite(s string) {
	if _, err := io.WriteString(m.raw, s); err != nil {
		m.log.Warn("writing raw log, disabling it", zap.Error(err))
		m.raw = nil
	}
}

// WriteRawHeader starts a raw log with the time and metadata
func WriteRawHeader(w io.Writer, start time.Time, meta []Meta) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Log started on %s\n", start.Format("2006-01-02 at 15:04:05"))
	writeMeta(&b, meta)
	_, err := io.WriteString(w, b.String())
	return err
}

// ensureStage homes a stage whose position is lost and ranges an unranged one
func (m *Measurement) ensureStage(ctx context.Context) error {
	if _, err := m.stage.Pulses(); errors.Is(err, optosigma.ErrPositionDirty) {
		m.log.Info("stage position is dirty, homing")
		if err := m.stage.HomeStage(ctx); err != nil {
			return err
		}
	}
	if !m.stage.Ranged() {
		_, err := m.stage.FindRange(ctx)
		return err
	}
	return nil
}

// Command m2 measures the M² of a laser beam with a NanoScan profiler on a
// GSC-01 stage, and fits data files written by earlier measurements
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/theckman/yacspin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nasa-jpl/nanosquared/fitting"
	"github.com/nasa-jpl/nanosquared/measure"
	"github.com/nasa-jpl/nanosquared/nanoscan"
	"github.com/nasa-jpl/nanosquared/optosigma"
)

// Version is the version number.  Typically injected via ldflags with git build
var Version = "1"

type rigFlags struct {
	mock    bool
	port    string
	tcp     bool
	roi     int16
	verbose bool
}

type measureFlags struct {
	axis      string
	center    []int
	rayleigh  []float64
	precision int
	samples   int
	outliers  int
	threshold float64
	meta      []string
	out       string
	raw       string
	fits      string
	fit       fitFlags
}

type fitFlags struct {
	axis          string
	wavelength    float64
	wavelengthErr float64
	mode          string
}

func newRootCmd() *cobra.Command {
	rf := &rigFlags{}
	root := &cobra.Command{
		Use:           "m2",
		Short:         "measure and fit the M² of a laser beam",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.BoolVar(&rf.mock, "mock", false, "simulate the profiler and stage")
	pf.StringVar(&rf.port, "port", "COM3", "serial port or terminal server address of the GSC-01")
	pf.BoolVar(&rf.tcp, "tcp", false, "reach the GSC-01 over TCP at --port")
	pf.Int16Var(&rf.roi, "roi", 0, "region of interest of the profiler")
	pf.BoolVarP(&rf.verbose, "verbose", "v", false, "log every step instead of showing a spinner")

	root.AddCommand(newMeasureCmd(rf), newFitCmd())
	return root
}

func addFitFlags(cmd *cobra.Command, ff *fitFlags) {
	f := cmd.Flags()
	f.StringVar(&ff.axis, "fit-axis", "both", "axis to fit, x, y, or both")
	f.Float64Var(&ff.wavelength, "wavelength", 0, "wavelength of the beam, nm")
	f.Float64Var(&ff.wavelengthErr, "wavelength-err", 0, "uncertainty of the wavelength, nm")
	f.StringVar(&ff.mode, "mode", "iso", "fit model, m2lambda, m2, or iso")
}

func newMeasureCmd(rf *rigFlags) *cobra.Command {
	mf := &measureFlags{}
	cmd := &cobra.Command{
		Use:   "measure",
		Short: "scan the beam caustic and write the data file",
		Long: `measure homes the stage, finds the waist and Rayleigh length of the beam
unless given, and measures the D4σ widths at the ISO 11146 positions.  The
data file is tab separated text, with the metadata in # comments.  With
--wavelength the caustic is fit once measured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeasure(cmd, rf, mf)
		},
	}
	f := cmd.Flags()
	f.StringVar(&mf.axis, "axis", "both", "axes placing the points, x, y, or both")
	f.IntSliceVar(&mf.center, "center", nil, "waist position per axis in pulses, found if not given")
	f.Float64SliceVar(&mf.rayleigh, "rayleigh", nil, "Rayleigh length per axis in mm, found if not given")
	f.IntVar(&mf.precision, "precision", measure.DefaultScan.Precision, "precision of the searches in pulses")
	f.IntVar(&mf.samples, "samples", measure.DefaultScan.Samples, "revolutions averaged per point")
	f.IntVar(&mf.outliers, "outliers", int(nanoscan.OutlierNone), "outlier rejection, 0 none, 1 top 10%, 2 spikes")
	f.Float64Var(&mf.threshold, "threshold", measure.DefaultScan.Threshold, "prominence threshold of spike rejection")
	f.StringArrayVar(&mf.meta, "meta", nil, "metadata entry key=value, repeatable")
	f.StringVarP(&mf.out, "out", "o", "m2data.txt", "data file to write")
	f.StringVar(&mf.raw, "raw", "", "file to log every revolution measured to")
	f.StringVar(&mf.fits, "fits", "", "also write the data as a FITS file")
	addFitFlags(cmd, &mf.fit)
	return cmd
}

func newFitCmd() *cobra.Command {
	ff := &fitFlags{}
	var fitsOut string
	cmd := &cobra.Command{
		Use:   "fit FILE",
		Short: "fit a data file for M²",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			data, err := measure.ReadDataset(f)
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			if fitsOut != "" {
				if err = writeFITS(fitsOut, data); err != nil {
					return err
				}
			}
			return printFits(cmd.OutOrStdout(), data, *ff)
		},
	}
	addFitFlags(cmd, ff)
	cmd.Flags().StringVar(&fitsOut, "fits", "", "also write the data as a FITS file")
	return cmd
}

func parseMeta(entries []string) ([]measure.Meta, error) {
	meta := make([]measure.Meta, 0, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("metadata %q is not key=value", e)
		}
		meta = append(meta, measure.Meta{Key: k, Value: v})
	}
	return meta, nil
}

// newLogger returns a development logger when verbose.  Otherwise info
// messages become the message of spin and only warnings are printed
func newLogger(verbose bool, spin *yacspin.Spinner) (*zap.Logger, error) {
	if verbose || spin == nil {
		return zap.NewDevelopment()
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	toSpinner := zapcore.RegisterHooks(
		zapcore.NewCore(enc, zapcore.AddSync(io.Discard), zap.InfoLevel),
		func(e zapcore.Entry) error {
			spin.Message(e.Message)
			return nil
		})
	warnings := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zap.WarnLevel)
	return zap.New(zapcore.NewTee(toSpinner, warnings)), nil
}

func newSpinner(w io.Writer) (*yacspin.Spinner, error) {
	return yacspin.New(yacspin.Config{
		Writer:            w,
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " measuring",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
}

// openRig builds the measurement, real or simulated, and initializes the
// stage controller.  The returned func frees the hardware
func openRig(ctx context.Context, rf *rigFlags, log *zap.Logger, opts ...measure.Option) (*measure.Measurement, func(), error) {
	var (
		g  *optosigma.GSC01
		in nanoscan.Interop
	)
	stageOpts := []optosigma.Option{optosigma.WithLogger(log.Named("gsc01"))}
	if rf.mock {
		var em *optosigma.Emulator
		g, em = optosigma.NewMock(append(stageOpts, optosigma.WithPollInterval(time.Millisecond))...)
		em.BusyPolls = 0
		in = nanoscan.NewSimulator(nanoscan.WithNoise(0.002, time.Now().UnixNano()),
			nanoscan.WithPositionSource(func() float64 { return g.PulseToMM(em.Position()) }))
	} else {
		g = optosigma.NewGSC01(rf.port, !rf.tcp, stageOpts...)
		var err error
		if in, err = nanoscan.NewDLL(); err != nil {
			g.Close()
			return nil, nil, err
		}
	}
	if err := g.Init(ctx); err != nil {
		g.Close()
		return nil, nil, err
	}
	profOpts := []nanoscan.ProfilerOption{nanoscan.WithLogger(log.Named("nanoscan")), nanoscan.WithROI(rf.roi)}
	if rf.mock {
		profOpts = append(profOpts, nanoscan.WithPollInterval(time.Millisecond))
	}
	p, err := nanoscan.NewProfiler(nanoscan.New(in), profOpts...)
	if err != nil {
		g.Close()
		return nil, nil, err
	}
	closer := func() {
		if err := p.Close(); err != nil {
			log.Warn("closing profiler", zap.Error(err))
		}
		g.Close()
	}
	return measure.New(p, g, append([]measure.Option{measure.WithLogger(log)}, opts...)...), closer, nil
}

func runMeasure(cmd *cobra.Command, rf *rigFlags, mf *measureFlags) (err error) {
	axis, ok := nanoscan.ParseAxis(mf.axis)
	if !ok {
		return fmt.Errorf("%w: %q", nanoscan.ErrBadAxis, mf.axis)
	}
	meta, err := parseMeta(mf.meta)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var spin *yacspin.Spinner
	if !rf.verbose {
		if spin, err = newSpinner(cmd.ErrOrStderr()); err != nil {
			return err
		}
	}
	log, err := newLogger(rf.verbose, spin)
	if err != nil {
		return err
	}
	defer log.Sync()

	var opts []measure.Option
	if mf.raw != "" {
		f, err := os.Create(mf.raw)
		if err != nil {
			return err
		}
		defer f.Close()
		if err = measure.WriteRawHeader(f, time.Now(), meta); err != nil {
			return err
		}
		opts = append(opts, measure.WithRawLog(f))
	}

	if spin != nil {
		if err = spin.Start(); err != nil {
			return err
		}
		defer func() {
			if err != nil {
				spin.StopFailMessage(err.Error())
				spin.StopFail()
				return
			}
			spin.StopMessage("wrote " + mf.out)
			spin.Stop()
		}()
	}

	m, closer, err := openRig(ctx, rf, log, opts...)
	if err != nil {
		return err
	}
	defer closer()
	if err = m.Init(ctx); err != nil {
		return err
	}
	data, err := m.TakeMeasurements(ctx, measure.ScanOptions{
		Axis:           axis,
		Center:         mf.center,
		RayleighLength: mf.rayleigh,
		Precision:      mf.precision,
		Samples:        mf.samples,
		Outliers:       nanoscan.OutlierMode(mf.outliers),
		Threshold:      mf.threshold,
		Metadata:       meta,
	})
	if err != nil {
		return err
	}
	data.Written = time.Now()
	if err = writeData(mf.out, data); err != nil {
		return err
	}
	if mf.fits != "" {
		if err = writeFITS(mf.fits, data); err != nil {
			return err
		}
	}
	if mf.fit.wavelength > 0 {
		return printFits(cmd.OutOrStdout(), data, mf.fit)
	}
	return nil
}

func writeData(path string, data measure.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err = data.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeFITS(path string, data measure.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = data.WriteFITS(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printFits fits the axes of ff and prints M², the waist, and its position
func printFits(w io.Writer, data measure.Dataset, ff fitFlags) error {
	if !(ff.wavelength > 0) {
		return fmt.Errorf("--wavelength must be a positive number of nm, got %g", ff.wavelength)
	}
	mode, ok := fitting.ParseMode(ff.mode)
	if !ok {
		return fmt.Errorf("%w: %q", fitting.ErrInvalidMode, ff.mode)
	}
	axis, ok := nanoscan.ParseAxis(ff.axis)
	if !ok {
		return fmt.Errorf("%w: %q", nanoscan.ErrBadAxis, ff.axis)
	}
	axes := []nanoscan.Axis{axis}
	if axis == nanoscan.Both {
		axes = []nanoscan.Axis{nanoscan.X, nanoscan.Y}
	}
	for _, a := range axes {
		f, msq, err := data.Fit(a, ff.wavelength, ff.wavelengthErr, mode)
		if err != nil {
			return fmt.Errorf("fitting %v: %w", a, err)
		}
		w0, z0, err := f.Waist()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: M² = %v, w0 = %.4g µm, z0 = %.4g mm (%v fit)\n", a, msq, w0, z0, mode)
	}
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

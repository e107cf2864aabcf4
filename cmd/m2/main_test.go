package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/nanosquared/fitting"
	"github.com/nasa-jpl/nanosquared/measure"
	"github.com/nasa-jpl/nanosquared/nanoscan"
)

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// writeCaustic writes the caustic of a beam with M² = 1.2 at 2300 nm
func writeCaustic(t *testing.T) string {
	t.Helper()
	p := []float64{100, 3, 1.2 * 2300}
	data := measure.Dataset{Metadata: []measure.Meta{{Key: "Laser", Value: "synthetic"}}}
	for z := -40.; z <= 40; z += 4 {
		d := 2 * fitting.OmegaZ(p, z)
		data.Points = append(data.Points, measure.Point{Z: z, X: nanoscan.Width{Mean: d}, Y: nanoscan.Width{Mean: d}})
	}
	path := filepath.Join(t.TempDir(), "m2data.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = data.WriteTo(f)
	require.NoError(t, err)
	return path
}

func TestFitCommand(t *testing.T) {
	path := writeCaustic(t)
	fitsPath := filepath.Join(t.TempDir(), "m2data.fits")
	out, err := execute("fit", path, "--wavelength", "2300", "--mode", "m2", "--fits", fitsPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "X: M² = 1.2 ±")
	assert.Contains(t, out, "Y: M² = 1.2 ±")
	assert.Contains(t, out, "w0 = 100 µm, z0 = 3 mm (M2 fit)")
	assert.FileExists(t, fitsPath)

	out, err = execute("fit", path, "--wavelength", "2300", "--fit-axis", "y")
	require.NoError(t, err)
	assert.NotContains(t, out, "X:")
	assert.Contains(t, out, "(ISO fit)")
}

func TestFitCommandErrors(t *testing.T) {
	path := writeCaustic(t)
	_, err := execute("fit", path)
	assert.Error(t, err, "no wavelength")
	_, err = execute("fit", path, "--wavelength", "2300", "--mode", "tophat")
	assert.ErrorIs(t, err, fitting.ErrInvalidMode)
	_, err = execute("fit", path, "--wavelength", "2300", "--fit-axis", "z")
	assert.ErrorIs(t, err, nanoscan.ErrBadAxis)
	_, err = execute("fit", filepath.Join(t.TempDir(), "missing.txt"), "--wavelength", "2300")
	assert.Error(t, err)
	_, err = execute("fit")
	assert.Error(t, err)
}

func TestMeasureMock(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "m2data.txt")
	raw := filepath.Join(dir, "raw.txt")
	stdout, err := execute("measure", "--mock", "-v",
		"--axis", "x", "--center", "0", "--rayleigh", "13.65909849", "--samples", "2",
		"-o", out, "--raw", raw, "--meta", "Laser=simulated",
		"--wavelength", "2300", "--mode", "m2", "--fit-axis", "x")
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "X: M² = ")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	data, err := measure.ReadDataset(f)
	require.NoError(t, err)
	assert.Len(t, data.Points, 21)
	v, ok := data.Meta("Laser")
	assert.True(t, ok)
	assert.Equal(t, "simulated", v)

	b, err := os.ReadFile(raw)
	require.NoError(t, err)
	assert.Contains(t, string(b), "#\tLaser: simulated")
	assert.Contains(t, string(b), "# === Measuring ===")
}

func TestMeasureBadFlags(t *testing.T) {
	_, err := execute("measure", "--mock", "-v", "--axis", "z")
	assert.ErrorIs(t, err, nanoscan.ErrBadAxis)
	_, err = execute("measure", "--mock", "-v", "--meta", "novalue")
	assert.Error(t, err)
}

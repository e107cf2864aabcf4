package measure

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/astrogo/fitsio"

	"github.com/nasa-jpl/nanosquared/fitting"
	"github.com/nasa-jpl/nanosquared/nanoscan"
)

// ErrNoData is generated when a dataset holds no points
var ErrNoData = errors.New("no data, take measurements first")

const dataHeader = "# position[mm]\tx_diam[um]\tdx_diam[um]\ty_diam[um]\tdy_diam[um]"

// Meta is one metadata entry of a dataset
type Meta struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Point is the beam measured at one position of a caustic scan.  Widths
// are D4σ diameters in µm
type Point struct {
	// Z is the position of the stage in mm
	Z float64 `json:"z"`

	X nanoscan.Width `json:"x"`
	Y nanoscan.Width `json:"y"`
}

// Dataset is the result of a caustic scan
type Dataset struct {
	// Written is when the data was written, now if zero
	Written time.Time `json:"written"`

	Metadata []Meta  `json:"metadata"`
	Points   []Point `json:"points"`
}

// Meta returns the value of the metadata entry key
func (d Dataset) Meta(key string) (string, bool) {
	for _, m := range d.Metadata {
		if m.Key == key {
			return m.Value, true
		}
	}
	return "", false
}

// SetMeta sets a metadata entry, replacing an existing one in place
func (d *Dataset) SetMeta(key, value string) {
	for i := range d.Metadata {
		if d.Metadata[i].Key == key {
			d.Metadata[i].Value = value
			return
		}
	}
	d.Metadata = append(d.Metadata, Meta{Key: key, Value: value})
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// WriteTo writes the dataset as tab separated text, preceded by the
// metadata in # comments
func (d Dataset) WriteTo(w io.Writer) (int64, error) {
	written := d.Written
	if written.IsZero() {
		written = time.Now()
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Data written on %s\n", written.Format("2006-01-02 at 15:04:05"))
	writeMeta(&buf, d.Metadata)
	buf.WriteString(dataHeader + "\n")
	for _, p := range d.Points {
		fields := []string{
			fmtFloat(p.Z),
			fmtFloat(p.X.Mean), fmtFloat(p.X.Std),
			fmtFloat(p.Y.Mean), fmtFloat(p.Y.Std),
		}
		buf.WriteString(strings.Join(fields, "\t") + "\n")
	}
	return buf.WriteTo(w)
}

func writeMeta(w io.Writer, meta []Meta) {
	fmt.Fprintln(w, "# ==== Metadata ====")
	for _, m := range meta {
		fmt.Fprintf(w, "#\t%s: %s\n", m.Key, m.Value)
	}
	fmt.Fprintln(w, "# ====== Data ======")
}

// ReadDataset reads a dataset written by WriteTo
func ReadDataset(r io.Reader) (Dataset, error) {
	var d Dataset
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			body := strings.TrimSpace(strings.TrimPrefix(line, "#"))
			if strings.HasPrefix(body, "Data written on ") {
				if t, err := time.ParseInLocation("2006-01-02 at 15:04:05",
					strings.TrimPrefix(body, "Data written on "), time.Local); err == nil {
					d.Written = t
				}
				continue
			}
			if strings.HasPrefix(sc.Text(), "#\t") {
				if k, v, ok := strings.Cut(body, ": "); ok {
					d.Metadata = append(d.Metadata, Meta{Key: k, Value: v})
				}
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 5 {
			return d, fmt.Errorf("line %d: expected 5 columns, got %d", n, len(fields))
		}
		var vals [5]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return d, fmt.Errorf("line %d: %w", n, err)
			}
			vals[i] = v
		}
		d.Points = append(d.Points, Point{
			Z: vals[0],
			X: nanoscan.Width{Mean: vals[1], Std: vals[2]},
			Y: nanoscan.Width{Mean: vals[3], Std: vals[4]},
		})
	}
	return d, sc.Err()
}

// Axis returns the positions, diameters and diameter errors of one axis
func (d Dataset) Axis(axis nanoscan.Axis) (z, diam, ddiam []float64, err error) {
	if axis != nanoscan.X && axis != nanoscan.Y {
		return nil, nil, nil, fmt.Errorf("%w: %v", nanoscan.ErrBadAxis, axis)
	}
	if len(d.Points) == 0 {
		return nil, nil, nil, ErrNoData
	}
	for _, p := range d.Points {
		w := p.X
		if axis == nanoscan.Y {
			w = p.Y
		}
		z = append(z, p.Z)
		diam = append(diam, w.Mean)
		ddiam = append(ddiam, w.Std)
	}
	return z, diam, ddiam, nil
}

// Fit fits the caustic of one axis for M², with the wavelength and its error
// in nm.  The radii fit are half the measured diameters
func (d Dataset) Fit(axis nanoscan.Axis, wavelength, wavelengthErr float64, mode fitting.Mode) (*fitting.MsqFitter, fitting.Estimate, error) {
	z, diam, ddiam, err := d.Axis(axis)
	if err != nil {
		return nil, fitting.Estimate{}, err
	}
	w := make([]float64, len(diam))
	dw := make([]float64, len(ddiam))
	for i := range diam {
		w[i] = diam[i] / 2
		dw[i] = ddiam[i] / 2
	}
	f, err := fitting.NewMsqFitter(z, w, dw, wavelength, wavelengthErr, mode)
	if err != nil {
		return nil, fitting.Estimate{}, err
	}
	if _, err = f.EstimateAndFit(); err != nil {
		return f, fitting.Estimate{}, err
	}
	msq, err := f.MSquared()
	return f, msq, err
}

// WriteFITS writes the dataset as a 5xN float64 image whose rows are the
// columns of the text format.  Metadata entries become META<n> cards
func (d Dataset) WriteFITS(w io.Writer) error {
	n := len(d.Points)
	if n == 0 {
		return ErrNoData
	}
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(-64, []int{n, 5})
	defer im.Close()

	cards := []fitsio.Card{
		{Name: "ROW0", Value: "position", Comment: "mm"},
		{Name: "ROW1", Value: "x_diam", Comment: "um"},
		{Name: "ROW2", Value: "dx_diam", Comment: "um"},
		{Name: "ROW3", Value: "y_diam", Comment: "um"},
		{Name: "ROW4", Value: "dy_diam", Comment: "um"},
	}
	for i, m := range d.Metadata {
		v := m.Key + ": " + m.Value
		if len(v) > 68 {
			v = v[:68]
		}
		cards = append(cards, fitsio.Card{Name: fmt.Sprintf("META%d", i+1), Value: v})
	}
	if err = im.Header().Append(cards...); err != nil {
		return err
	}

	buf := make([]float64, 5*n)
	for i, p := range d.Points {
		buf[i] = p.Z
		buf[n+i] = p.X.Mean
		buf[2*n+i] = p.X.Std
		buf[3*n+i] = p.Y.Mean
		buf[4*n+i] = p.Y.Std
	}
	if err = im.Write(buf); err != nil {
		return err
	}
	return fits.Write(im)
}

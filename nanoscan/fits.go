package nanoscan

import (
	"errors"
	"io"

	"github.com/astrogo/fitsio"
)

// WriteProfileFITS streams a profile to w as a 2xN float64 image.  Row 0 is
// the position in µm and row 1 the amplitude
func WriteProfileFITS(w io.Writer, p Profile, metadata []fitsio.Card) error {
	n := len(p.Position)
	if n == 0 || len(p.Amplitude) != n {
		return errors.New("profile must have equal, nonzero numbers of positions and amplitudes")
	}
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(-64, []int{n, 2})
	defer im.Close()
	metadata = append(metadata,
		fitsio.Card{Name: "ROW0", Value: "position", Comment: "um"},
		fitsio.Card{Name: "ROW1", Value: "amplitude", Comment: "arbitrary units"})
	err = im.Header().Append(metadata...)
	if err != nil {
		return err
	}
	buf := make([]float64, 0, 2*n)
	buf = append(buf, p.Position...)
	buf = append(buf, p.Amplitude...)
	err = im.Write(buf)
	if err != nil {
		return err
	}
	return fits.Write(im)
}

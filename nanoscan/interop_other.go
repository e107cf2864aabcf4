//go:build !windows || !cgo

package nanoscan

// NewDLL returns ErrUnsupported; the vendor library only exists for windows.
// Use NewSimulator in its place
func NewDLL() (Interop, error) {
	return nil, ErrUnsupported
}

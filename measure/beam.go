package measure

import "math"

// RayleighLength returns the Rayleigh length in mm of a beam with a waist
// radius in µm and a wavelength in nm
func RayleighLength(waistRadius, wavelength, msq float64) float64 {
	return math.Pi * waistRadius * waistRadius / (msq * wavelength)
}

// BeamWaistRadius returns the waist radius in µm of a beam focused by a lens
// of focal length f mm, given the beam diameter at the lens in mm and the
// wavelength in nm
func BeamWaistRadius(diamAtLens, f, wavelength, msq float64) float64 {
	return 2 * msq * wavelength * f / (math.Pi * diamAtLens) / 1000
}

// WaistAndRayleigh returns the waist radius in µm and the Rayleigh length in
// mm of a beam focused by a lens, see BeamWaistRadius
func WaistAndRayleigh(diamAtLens, f, wavelength, msq float64) (w0, zR float64) {
	w0 = BeamWaistRadius(diamAtLens, f, wavelength, msq)
	return w0, RayleighLength(w0, wavelength, msq)
}

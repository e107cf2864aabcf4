package nanoscan

import "math"

// localMaxima returns the indices of the local maxima of xs.  A flat top is
// one maximum located at its middle, rounded down.  The ends of xs are never
// maxima
func localMaxima(xs []float64) []int {
	var peaks []int
	n := len(xs)
	i := 1
	for i < n-1 {
		if xs[i-1] < xs[i] {
			ahead := i + 1
			for ahead < n-1 && xs[ahead] == xs[i] {
				ahead++
			}
			if xs[ahead] < xs[i] {
				peaks = append(peaks, (i+ahead-1)/2)
				i = ahead
			}
		}
		i++
	}
	return peaks
}

// prominence is the height of the peak at p above the higher of the lowest
// points it must descend to before reaching higher ground on either side
func prominence(xs []float64, p int) float64 {
	left := xs[p]
	for i := p; i >= 0 && xs[i] <= xs[p]; i-- {
		left = math.Min(left, xs[i])
	}
	right := xs[p]
	for i := p; i < len(xs) && xs[i] <= xs[p]; i++ {
		right = math.Min(right, xs[i])
	}
	return xs[p] - math.Max(left, right)
}

// RemoveSpikes removes positive spikes from xs.  Every peak with a
// prominence of at least threshold is deleted, repeatedly, until none are
// left.  Then each end is dropped if it differs from its neighbor by more
// than threshold.  xs is not modified
func RemoveSpikes(xs []float64, threshold float64) []float64 {
	out := append([]float64(nil), xs...)
	for {
		var del []int
		for _, p := range localMaxima(out) {
			if prominence(out, p) >= threshold {
				del = append(del, p)
			}
		}
		if len(del) == 0 {
			break
		}
		kept := out[:0]
		j := 0
		for i, v := range out {
			if j < len(del) && del[j] == i {
				j++
				continue
			}
			kept = append(kept, v)
		}
		out = kept
	}
	n := len(out)
	if n < 2 {
		return out
	}
	first := math.Abs(out[0]-out[1]) > threshold
	last := math.Abs(out[n-1]-out[n-2]) > threshold
	if last {
		out = out[:n-1]
	}
	if first {
		out = out[1:]
	}
	return out
}

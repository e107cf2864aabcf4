// Package mathx provides small numeric helpers not found in package math
package mathx

// RoundDown rounds x toward zero to a multiple of unit, e.g. 1234 => 1200 for unit=100
func RoundDown(x, unit int) int {
	return (x / unit) * unit
}

package ports

// RandSource supplies the randomness for fortune rolls and dice.
// Implementations must return Float64 in [0, 1) and IntN in [0, n).
type RandSource interface {
	Float64() float64
	IntN(n int) int
}

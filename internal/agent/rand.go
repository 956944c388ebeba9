package agent

import "math/rand/v2"

type stdRand struct{}

// NewRand returns a Rand backed by the math/rand/v2 global source.
func NewRand() Rand { return stdRand{} }

func (stdRand) Float64() float64 { return rand.Float64() }
func (stdRand) IntN(n int) int   { return rand.IntN(n) }

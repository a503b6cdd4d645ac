// Package fortuneservice implements the Fortune Roll oracle inside the
// narrative context.
//
// The module owns the tension-biased yes/no probability model, the single-draw
// outcome roll, and the dice-notation roller used by beat events. It is pure
// computation: no persistence, no timers, randomness injected through ports.
package fortuneservice

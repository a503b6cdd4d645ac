package entities

import (
	"regexp"
	"strconv"
	"strings"

	domainerrors "loom/contexts/narrative/fortune-service/domain/errors"
)

const (
	maxDiceCount = 100
	maxDiceSides = 1000
)

var diceNotation = regexp.MustCompile(`^([1-9]\d*)?[dD]([1-9]\d*)([+-]\d+)?$`)

// DiceSpec is a parsed dice expression in XdY+Z notation.
type DiceSpec struct {
	Count    int
	Sides    int
	Modifier int
}

// ParseDice parses standard notation: XdY, XdY+Z, XdY-Z.
// The count defaults to 1 when omitted.
func ParseDice(notation string) (DiceSpec, error) {
	m := diceNotation.FindStringSubmatch(strings.TrimSpace(notation))
	if m == nil {
		return DiceSpec{}, domainerrors.ErrInvalidDiceNotation
	}

	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}
	sides, _ := strconv.Atoi(m[2])
	modifier := 0
	if m[3] != "" {
		modifier, _ = strconv.Atoi(m[3])
	}

	if count > maxDiceCount {
		return DiceSpec{}, domainerrors.ErrTooManyDice
	}
	if sides > maxDiceSides {
		return DiceSpec{}, domainerrors.ErrTooManySides
	}

	return DiceSpec{Count: count, Sides: sides, Modifier: modifier}, nil
}

// Roll totals the dice using draw, which must return a value in [0, n).
func (s DiceSpec) Roll(draw func(n int) int) int {
	total := s.Modifier
	for i := 0; i < s.Count; i++ {
		total += draw(s.Sides) + 1
	}
	return total
}

// Package mission generates the dismissal challenges that gate alarm
// dismissal: the alarm keeps ringing until the mission is solved (or the
// ring times out).
package mission

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Challenge is a single arithmetic problem. The zero value is an
// always-solved challenge, used when missions are disabled.
type Challenge struct {
	question string
	answer   int
}

// None returns the always-solved challenge.
func None() Challenge { return Challenge{} }

// Generate produces an arithmetic mission: a two-digit product plus a
// two-digit addend, hard enough to require an awake head, easy enough to
// not need paper. A nil rng falls back to the global source.
func Generate(rng *rand.Rand) Challenge {
	intn := rand.Intn
	if rng != nil {
		intn = rng.Intn
	}
	a := 12 + intn(78) // 12..89
	b := 3 + intn(7)   // 3..9
	c := 10 + intn(80) // 10..89
	return Challenge{
		question: fmt.Sprintf("%d × %d + %d = ?", a, b, c),
		answer:   a*b + c,
	}
}

// Question returns the problem text, or "" for the always-solved challenge.
func (c Challenge) Question() string { return c.question }

// IsZero reports whether this is the always-solved challenge.
func (c Challenge) IsZero() bool { return c.question == "" }

// Check reports whether the given answer solves the challenge. The
// always-solved challenge accepts anything, including the empty string.
func (c Challenge) Check(answer string) bool {
	if c.IsZero() {
		return true
	}
	n, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil {
		return false
	}
	return n == c.answer
}

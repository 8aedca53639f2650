// Package idgen produces short alphanumeric identifiers that are guaranteed not
// to collide with identifiers already in use.
package idgen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// Alphabet is the case-sensitive character set identifiers are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultLength is the identifier length used when none is configured.
const DefaultLength = 6

// bytes at or above this bound are redrawn so every character is equally likely.
const rejectAbove = 256 - 256%len(Alphabet)

// ErrNegativeCount is returned when a batch of fewer than zero identifiers is requested.
var ErrNegativeCount = errors.New("idgen: negative batch size")

// Generator draws identifiers from a random source.
type Generator struct {
	length int
	source io.Reader
}

// Option configures a Generator.
type Option func(*Generator)

// WithLength sets the identifier length. Non-positive values are ignored.
func WithLength(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.length = n
		}
	}
}

// WithSource replaces crypto/rand as the randomness source.
func WithSource(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.source = r
		}
	}
}

// New constructs a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{length: DefaultLength, source: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Length returns the configured identifier length.
func (g *Generator) Length() int { return g.length }

// Generate returns an identifier for which taken reports false. Candidates are
// redrawn until one is free; the identifier space is assumed to be far larger
// than any collection.
func (g *Generator) Generate(taken func(string) bool) (string, error) {
	for {
		candidate, err := g.draw()
		if err != nil {
			return "", err
		}
		if taken == nil || !taken(candidate) {
			return candidate, nil
		}
	}
}

// GenerateBatch returns n pairwise-distinct identifiers, none of which is taken.
func (g *Generator) GenerateBatch(n int, taken func(string) bool) ([]string, error) {
	if n < 0 {
		return nil, ErrNegativeCount
	}
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for len(out) < n {
		candidate, err := g.Generate(taken)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out, nil
}

func (g *Generator) draw() (string, error) {
	out := make([]byte, g.length)
	var b [1]byte
	for i := 0; i < g.length; {
		if _, err := io.ReadFull(g.source, b[:]); err != nil {
			return "", fmt.Errorf("idgen: read random source: %w", err)
		}
		if int(b[0]) >= rejectAbove {
			continue
		}
		out[i] = Alphabet[int(b[0])%len(Alphabet)]
		i++
	}
	return string(out), nil
}

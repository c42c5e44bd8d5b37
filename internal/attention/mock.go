package attention

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// MockAnalyzer synthesizes attention data from a seeded random source.
// It stands in for a real inference backend.
type MockAnalyzer struct {
	latency time.Duration
	match   MatchOptions

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockAnalyzer returns a mock analyzer. A zero seed draws one from the clock.
func NewMockAnalyzer(seed int64, latency time.Duration, match MatchOptions) *MockAnalyzer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockAnalyzer{
		latency: latency,
		match:   match,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Analyze validates the request and returns random attention layers
func (m *MockAnalyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	model, err := Validate(req)
	if err != nil {
		return nil, err
	}

	if m.latency > 0 {
		select {
		case <-time.After(m.latency):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, ctx.Err())
		}
	}

	tokens := Tokenize(req.Text, MaxTokens)

	m.mu.Lock()
	defer m.mu.Unlock()

	layers := make([]Layer, LayerCount)
	for l := range layers {
		matrix := make([][]float64, len(tokens))
		for i := range matrix {
			matrix[i] = make([]float64, len(tokens))
			for j := range matrix[i] {
				matrix[i][j] = m.rng.Float64()
			}
		}
		layers[l] = Layer{Index: l, Matrix: matrix, Tokens: tokens}
	}

	var phrase *PhraseEvolution
	if strings.TrimSpace(req.TargetPhrase) != "" {
		occurrences := FindOccurrences(req.Text, req.TargetPhrase, tokens, m.match)
		m.fillStrengths(occurrences)
		phrase = &PhraseEvolution{TargetPhrase: req.TargetPhrase, Occurrences: occurrences}
	}

	return NewResult(model, tokens, layers, req.Text, phrase)
}

// fillStrengths assigns a rising signal with noise, kept non-decreasing and within [0,1]
func (m *MockAnalyzer) fillStrengths(occurrences []Occurrence) {
	n := len(occurrences)
	prev := 0.0
	for i := range occurrences {
		progress := 0.0
		if n > 1 {
			progress = float64(i) / float64(n-1)
		}
		s := 0.3 + 0.6*progress + m.rng.Float64()*0.1
		if s < prev {
			s = prev
		}
		if s > 1 {
			s = 1
		}
		occurrences[i].Strength = s
		prev = s
	}
}

package attention

import (
	"context"
	"fmt"
	"math"
)

const (
	// MaxTokens is the token budget an analysis is truncated to
	MaxTokens = 20
	// LayerCount is the number of attention layers every analysis produces
	LayerCount = 12
)

// Token is a unit of text; its position is its index in the sequence
type Token = string

// Layer holds one attention matrix and the tokens labelling its rows and columns.
// Row i, column j is "token i attends to token j".
type Layer struct {
	Index  int
	Matrix [][]float64
	Tokens []Token
}

// Size returns the side length of the matrix
func (l *Layer) Size() int {
	return len(l.Tokens)
}

// Validate checks the layer is square and every weight lies in [0,1]
func (l *Layer) Validate() error {
	if l.Index < 0 {
		return fmt.Errorf("layer index %d is negative", l.Index)
	}
	n := len(l.Tokens)
	if len(l.Matrix) != n {
		return fmt.Errorf("layer %d: %d rows for %d tokens", l.Index, len(l.Matrix), n)
	}
	for i, row := range l.Matrix {
		if len(row) != n {
			return fmt.Errorf("layer %d: row %d has %d columns, want %d", l.Index, i, len(row), n)
		}
		for j, v := range row {
			if v < 0 || v > 1 || math.IsNaN(v) {
				return fmt.Errorf("layer %d: weight (%d,%d)=%v outside [0,1]", l.Index, i, j, v)
			}
		}
	}
	return nil
}

// Max returns the largest weight in the matrix
func (l *Layer) Max() float64 {
	max := 0.0
	for _, row := range l.Matrix {
		for _, v := range row {
			if v > max {
				max = v
			}
		}
	}
	return max
}

// Occurrence is one detected appearance of the target phrase.
// TokenPositions index into the parent Result's token sequence.
type Occurrence struct {
	Index          int
	LineIndex      int
	ContextLine    string
	Strength       float64
	TokenPositions []int
}

// PhraseEvolution tracks attention to a phrase across its occurrences
type PhraseEvolution struct {
	TargetPhrase string
	Occurrences  []Occurrence
}

// Total returns the number of occurrences
func (p *PhraseEvolution) Total() int {
	return len(p.Occurrences)
}

// Validate checks occurrence indices run 1..n without gaps and strengths lie in [0,1]
func (p *PhraseEvolution) Validate(tokenCount int) error {
	for i, occ := range p.Occurrences {
		if occ.Index != i+1 {
			return fmt.Errorf("occurrence %d has index %d", i, occ.Index)
		}
		if occ.LineIndex < 0 {
			return fmt.Errorf("occurrence %d has negative line index", occ.Index)
		}
		if occ.Strength < 0 || occ.Strength > 1 || math.IsNaN(occ.Strength) {
			return fmt.Errorf("occurrence %d strength %v outside [0,1]", occ.Index, occ.Strength)
		}
		for _, pos := range occ.TokenPositions {
			if pos < 0 || pos >= tokenCount {
				return fmt.Errorf("occurrence %d position %d outside token sequence", occ.Index, pos)
			}
		}
	}
	return nil
}

// Result is a complete analysis. It is never modified after creation.
type Result struct {
	ModelName  string
	Tokens     []Token
	Layers     []Layer
	SourceText string
	Phrase     *PhraseEvolution
}

// Layer returns the layer at index i, or nil when out of range
func (r *Result) Layer(i int) *Layer {
	if r == nil || i < 0 || i >= len(r.Layers) {
		return nil
	}
	return &r.Layers[i]
}

// Validate checks every layer matches the token sequence
func (r *Result) Validate() error {
	for i := range r.Layers {
		l := &r.Layers[i]
		if l.Index != i {
			return fmt.Errorf("layer at position %d reports index %d", i, l.Index)
		}
		if len(l.Tokens) != len(r.Tokens) {
			return fmt.Errorf("layer %d has %d tokens, result has %d", i, len(l.Tokens), len(r.Tokens))
		}
		if err := l.Validate(); err != nil {
			return err
		}
	}
	if r.Phrase != nil {
		if err := r.Phrase.Validate(len(r.Tokens)); err != nil {
			return fmt.Errorf("phrase analysis: %w", err)
		}
	}
	return nil
}

// Request is the input to an analysis
type Request struct {
	Text         string
	ModelID      string
	TargetPhrase string
}

// Analyzer produces attention results for text under a chosen model
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
}

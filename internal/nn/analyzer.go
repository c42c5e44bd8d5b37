package nn

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/kartoza/attention-is-key/internal/attention"
)

// contextRadius is how many lines either side of an occurrence feed its strength
const contextRadius = 2

// Analyzer runs the local attention model in-process
type Analyzer struct {
	cfg   AttentionModelConfig
	match attention.MatchOptions

	mu     sync.Mutex
	models map[string]*AttentionModel
}

// NewAnalyzer creates a local analyzer; models are built lazily per catalog entry
func NewAnalyzer(cfg AttentionModelConfig, match attention.MatchOptions) *Analyzer {
	cfg.NumLayers = attention.LayerCount
	return &Analyzer{
		cfg:    cfg,
		match:  match,
		models: make(map[string]*AttentionModel),
	}
}

func (a *Analyzer) model(desc attention.ModelDescriptor) *AttentionModel {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.models[desc.ID]
	if !ok {
		m = NewAttentionModel(desc, a.cfg)
		a.models[desc.ID] = m
	}
	return m
}

// Analyze computes attention for the request text and, when a target phrase
// is given, the attention directed at the phrase around each occurrence
func (a *Analyzer) Analyze(ctx context.Context, req attention.Request) (*attention.Result, error) {
	desc, err := attention.Validate(req)
	if err != nil {
		return nil, err
	}
	m := a.model(desc)

	tokens := attention.Tokenize(req.Text, attention.MaxTokens)
	matrices := m.Attend(tokens)
	layers := make([]attention.Layer, len(matrices))
	for i, matrix := range matrices {
		layers[i] = attention.Layer{Index: i, Matrix: matrix, Tokens: tokens}
	}

	var phrase *attention.PhraseEvolution
	if strings.TrimSpace(req.TargetPhrase) != "" {
		occurrences := attention.FindOccurrences(req.Text, req.TargetPhrase, tokens, a.match)
		lines := strings.Split(req.Text, "\n")
		for i := range occurrences {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", attention.ErrBackendUnavailable, err)
			}
			occurrences[i].Strength = a.phraseStrength(m, lines, occurrences[i].LineIndex, req.TargetPhrase)
		}
		phrase = &attention.PhraseEvolution{TargetPhrase: req.TargetPhrase, Occurrences: occurrences}
	}

	return attention.NewResult(desc, tokens, layers, req.Text, phrase)
}

// phraseStrength is the mean over layers of the attention mass that tokens
// outside the phrase span direct at the span. The span is the match on line
// i, attended together with the lines around it.
func (a *Analyzer) phraseStrength(m *AttentionModel, lines []string, i int, phrase string) float64 {
	text, offset := contextWindow(lines, i)
	own := attention.PhraseSpan(attention.Tokenize(lines[i], 0), phrase, a.match)
	if len(own) == 0 {
		return 0
	}
	for k := range own {
		own[k] += offset
	}
	tokens, span := centreOn(attention.Tokenize(text, 0), own, attention.MaxTokens)
	if len(span) == 0 {
		return 0
	}

	inSpan := make(map[int]bool, len(span))
	for _, p := range span {
		inSpan[p] = true
	}

	var queries []int
	for j := range tokens {
		if !inSpan[j] {
			queries = append(queries, j)
		}
	}
	if len(queries) == 0 {
		queries = span
	}

	perLayer := make([]float64, 0, attention.LayerCount)
	for _, matrix := range m.Attend(tokens) {
		mass := make([]float64, len(queries))
		for qi, q := range queries {
			for _, k := range span {
				mass[qi] += matrix[q][k]
			}
		}
		perLayer = append(perLayer, stat.Mean(mass, nil))
	}
	s := stat.Mean(perLayer, nil)
	if s > 1 {
		s = 1
	}
	return s
}

// contextWindow joins the lines around index i and reports how many tokens
// come before line i in the joined text
func contextWindow(lines []string, i int) (string, int) {
	start := i - contextRadius
	if start < 0 {
		start = 0
	}
	end := i + contextRadius + 1
	if end > len(lines) {
		end = len(lines)
	}
	offset := len(strings.Fields(strings.Join(lines[start:i], " ")))
	return strings.Join(lines[start:end], " "), offset
}

// centreOn cuts tokens to at most max, centred on span, and shifts span
// into the cut. A span wider than max keeps its leading max tokens.
func centreOn(tokens []attention.Token, span []int, max int) ([]attention.Token, []int) {
	if len(tokens) <= max {
		return tokens, span
	}
	lo, hi := span[0], span[len(span)-1]
	start := lo - (max-(hi-lo+1))/2
	if hi-lo+1 > max {
		start = lo
	}
	if start > len(tokens)-max {
		start = len(tokens) - max
	}
	if start < 0 {
		start = 0
	}

	shifted := make([]int, 0, len(span))
	for _, p := range span {
		if p >= start && p < start+max {
			shifted = append(shifted, p-start)
		}
	}
	return tokens[start : start+max], shifted
}

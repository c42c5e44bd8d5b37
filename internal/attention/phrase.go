package attention

import (
	"fmt"
	"strings"
)

// Validate checks a request and resolves its model
func Validate(req Request) (ModelDescriptor, error) {
	if strings.TrimSpace(req.Text) == "" {
		return ModelDescriptor{}, ErrEmptyInput
	}
	return LookupModel(req.ModelID)
}

// Tokenize splits text on whitespace and truncates to max tokens
func Tokenize(text string, max int) []Token {
	words := strings.Fields(text)
	if max > 0 && len(words) > max {
		words = words[:max]
	}
	out := make([]Token, len(words))
	copy(out, words)
	return out
}

// MatchOptions controls how phrase occurrences are detected
type MatchOptions struct {
	CaseInsensitive bool
}

// FindOccurrences scans text line by line and returns one occurrence per line
// containing phrase, in order. Strength is left at zero for the engine to fill.
// Matching never spans a line break.
func FindOccurrences(text, phrase string, tokens []Token, opts MatchOptions) []Occurrence {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil
	}

	fold := func(s string) string { return s }
	if opts.CaseInsensitive {
		fold = strings.ToLower
	}
	needle := fold(phrase)
	phraseWords := strings.Fields(needle)

	var occurrences []Occurrence
	offset := 0
	for i, line := range strings.Split(text, "\n") {
		words := strings.Fields(line)
		if strings.Contains(fold(line), needle) {
			occurrences = append(occurrences, Occurrence{
				Index:          len(occurrences) + 1,
				LineIndex:      i,
				ContextLine:    line,
				TokenPositions: phrasePositions(tokens, offset, len(words), phraseWords, fold),
			})
		}
		offset += len(words)
	}
	return occurrences
}

// phrasePositions returns token indices within [start, start+count) covered by
// a run of tokens equal to the phrase words. Trailing punctuation on a token is
// ignored so "alone," still matches "alone".
func phrasePositions(tokens []Token, start, count int, phraseWords []string, fold func(string) string) []int {
	end := start + count
	if end > len(tokens) {
		end = len(tokens)
	}
	if len(phraseWords) == 0 || start >= end {
		return []int{}
	}

	covered := make(map[int]bool)
	for i := start; i+len(phraseWords) <= end; i++ {
		match := true
		for k, w := range phraseWords {
			if trimPunct(fold(tokens[i+k])) != trimPunct(w) {
				match = false
				break
			}
		}
		if match {
			for k := range phraseWords {
				covered[i+k] = true
			}
		}
	}

	positions := []int{}
	for i := start; i < end; i++ {
		if covered[i] {
			positions = append(positions, i)
		}
	}
	return positions
}

// PhraseSpan returns every token index covered by a match of phrase in tokens
func PhraseSpan(tokens []Token, phrase string, opts MatchOptions) []int {
	fold := func(s string) string { return s }
	if opts.CaseInsensitive {
		fold = strings.ToLower
	}
	return phrasePositions(tokens, 0, len(tokens), strings.Fields(fold(phrase)), fold)
}

func trimPunct(s string) string {
	return strings.TrimRight(s, ".,;:!?\"')")
}

// NewResult assembles a result and checks it against the data model invariants
func NewResult(model ModelDescriptor, tokens []Token, layers []Layer, text string, phrase *PhraseEvolution) (*Result, error) {
	r := &Result{
		ModelName:  model.ID,
		Tokens:     tokens,
		Layers:     layers,
		SourceText: text,
		Phrase:     phrase,
	}
	if len(layers) != LayerCount {
		return nil, fmt.Errorf("expected %d layers, got %d", LayerCount, len(layers))
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

package models

import (
	"fmt"

	"github.com/kartoza/attention-is-key/internal/attention"
)

// AnalyzeRequest is the body of POST /api/analyze
type AnalyzeRequest struct {
	Lyrics       string `json:"lyrics"`
	TargetPhrase string `json:"targetPhrase,omitempty"`
	Model        string `json:"model"`
}

// AttentionLayer is one layer on the wire
type AttentionLayer struct {
	Layer           int         `json:"layer"`
	AttentionMatrix [][]float64 `json:"attention_matrix"`
	Tokens          []string    `json:"tokens"`
}

// PhraseOccurrence is one phrase occurrence on the wire
type PhraseOccurrence struct {
	Occurrence        int     `json:"occurrence"`
	SentenceIndex     int     `json:"sentence_index"`
	Context           string  `json:"context"`
	PhrasePositions   []int   `json:"phrase_positions"`
	Sentence          string  `json:"sentence"`
	AttentionStrength float64 `json:"attention_strength"`
}

// PhraseAnalysis is the phrase evolution on the wire
type PhraseAnalysis struct {
	TargetPhrase     string             `json:"target_phrase"`
	TotalOccurrences int                `json:"total_occurrences"`
	Occurrences      []PhraseOccurrence `json:"occurrences"`
}

// AnalyzeResponse is the body returned by POST /api/analyze
type AnalyzeResponse struct {
	ModelName       string           `json:"model_name"`
	Tokens          []string         `json:"tokens"`
	AttentionLayers []AttentionLayer `json:"attention_layers"`
	Text            string           `json:"text"`
	PhraseAnalysis  *PhraseAnalysis  `json:"phrase_analysis"`
}

// ErrorResponse is the body of a failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SessionState is the body returned by the session endpoints
type SessionState struct {
	ID       string           `json:"id"`
	Pending  bool             `json:"pending"`
	Layer    int              `json:"layer"`
	Error    string           `json:"error,omitempty"`
	Code     string           `json:"code,omitempty"`
	Analysis *AnalyzeResponse `json:"analysis,omitempty"`
}

// LayerRequest selects a layer in a session
type LayerRequest struct {
	Layer int `json:"layer"`
}

// ToRequest converts the wire request to an analysis request
func (r AnalyzeRequest) ToRequest() attention.Request {
	return attention.Request{
		Text:         r.Lyrics,
		ModelID:      r.Model,
		TargetPhrase: r.TargetPhrase,
	}
}

// FromResult converts an analysis result to its wire form
func FromResult(res *attention.Result) *AnalyzeResponse {
	if res == nil {
		return nil
	}
	out := &AnalyzeResponse{
		ModelName:       res.ModelName,
		Tokens:          nonNilTokens(res.Tokens),
		AttentionLayers: make([]AttentionLayer, len(res.Layers)),
		Text:            res.SourceText,
	}
	for i, l := range res.Layers {
		out.AttentionLayers[i] = AttentionLayer{
			Layer:           l.Index,
			AttentionMatrix: l.Matrix,
			Tokens:          nonNilTokens(l.Tokens),
		}
	}
	if res.Phrase != nil {
		pa := &PhraseAnalysis{
			TargetPhrase:     res.Phrase.TargetPhrase,
			TotalOccurrences: res.Phrase.Total(),
			Occurrences:      make([]PhraseOccurrence, len(res.Phrase.Occurrences)),
		}
		for i, o := range res.Phrase.Occurrences {
			positions := o.TokenPositions
			if positions == nil {
				positions = []int{}
			}
			pa.Occurrences[i] = PhraseOccurrence{
				Occurrence:        o.Index,
				SentenceIndex:     o.LineIndex,
				Context:           o.ContextLine,
				PhrasePositions:   positions,
				Sentence:          o.ContextLine,
				AttentionStrength: o.Strength,
			}
		}
		out.PhraseAnalysis = pa
	}
	return out
}

// ToResult converts a wire response back into a validated result
func (r *AnalyzeResponse) ToResult() (*attention.Result, error) {
	if r == nil {
		return nil, attention.ErrRenderTargetMissing
	}
	res := &attention.Result{
		ModelName:  r.ModelName,
		Tokens:     r.Tokens,
		Layers:     make([]attention.Layer, len(r.AttentionLayers)),
		SourceText: r.Text,
	}
	for i, l := range r.AttentionLayers {
		tokens := l.Tokens
		if tokens == nil {
			tokens = r.Tokens
		}
		res.Layers[i] = attention.Layer{Index: l.Layer, Matrix: l.AttentionMatrix, Tokens: tokens}
	}
	if pa := r.PhraseAnalysis; pa != nil {
		if pa.TotalOccurrences != len(pa.Occurrences) {
			return nil, fmt.Errorf("phrase analysis reports %d occurrences, carries %d",
				pa.TotalOccurrences, len(pa.Occurrences))
		}
		ev := &attention.PhraseEvolution{
			TargetPhrase: pa.TargetPhrase,
			Occurrences:  make([]attention.Occurrence, len(pa.Occurrences)),
		}
		for i, o := range pa.Occurrences {
			context := o.Context
			if context == "" {
				context = o.Sentence
			}
			ev.Occurrences[i] = attention.Occurrence{
				Index:          o.Occurrence,
				LineIndex:      o.SentenceIndex,
				ContextLine:    context,
				Strength:       o.AttentionStrength,
				TokenPositions: o.PhrasePositions,
			}
		}
		res.Phrase = ev
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

func nonNilTokens(tokens []string) []string {
	if tokens == nil {
		return []string{}
	}
	return tokens
}

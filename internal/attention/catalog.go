package attention

import "fmt"

// Architecture classifies how a model attends
type Architecture string

const (
	Encoder Architecture = "Encoder"
	Decoder Architecture = "Decoder"
)

// ModelDescriptor describes a model available for analysis
type ModelDescriptor struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"name"`
	Description  string       `json:"description"`
	Architecture Architecture `json:"type"`
}

// Causal reports whether tokens may only attend to earlier positions
func (m ModelDescriptor) Causal() bool {
	return m.Architecture == Decoder
}

var catalog = []ModelDescriptor{
	{
		ID:           "bert-base-uncased",
		DisplayName:  "BERT Base",
		Description:  "Bidirectional encoder, great for understanding context",
		Architecture: Encoder,
	},
	{
		ID:           "roberta-base",
		DisplayName:  "RoBERTa Base",
		Description:  "Robustly optimized BERT, improved training",
		Architecture: Encoder,
	},
	{
		ID:           "gpt2",
		DisplayName:  "GPT-2",
		Description:  "Generative model, left-to-right attention",
		Architecture: Decoder,
	},
	{
		ID:           "distilbert-base-uncased",
		DisplayName:  "DistilBERT",
		Description:  "Smaller, faster version of BERT",
		Architecture: Encoder,
	},
}

// DefaultModelID is the model selected when none is configured
const DefaultModelID = "bert-base-uncased"

// Models returns a copy of the model catalog in display order
func Models() []ModelDescriptor {
	out := make([]ModelDescriptor, len(catalog))
	copy(out, catalog)
	return out
}

// LookupModel finds a model by id
func LookupModel(id string) (ModelDescriptor, error) {
	for _, m := range catalog {
		if m.ID == id {
			return m, nil
		}
	}
	return ModelDescriptor{}, fmt.Errorf("%w: %q", ErrInvalidModel, id)
}

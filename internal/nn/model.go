package nn

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/kartoza/attention-is-key/internal/attention"
)

// AttentionModel is a small deterministic self-attention stack.
// Weights are seeded from the model id, so the same text always yields the
// same matrices. It approximates the shape of real attention (softmax rows,
// causal masking for decoders) without any training.
type AttentionModel struct {
	desc attention.ModelDescriptor

	// Architecture
	dModel    int
	numHeads  int
	numLayers int

	// Per layer, per head projections (dModel x dHead)
	wq [][]*mat.Dense
	wk [][]*mat.Dense

	mu sync.RWMutex
}

// AttentionModelConfig holds model configuration
type AttentionModelConfig struct {
	DModel    int
	NumHeads  int
	NumLayers int
	Seed      int64
}

// DefaultAttentionModelConfig returns sensible defaults
func DefaultAttentionModelConfig() AttentionModelConfig {
	return AttentionModelConfig{
		DModel:    32,
		NumHeads:  4,
		NumLayers: attention.LayerCount,
	}
}

// NewAttentionModel creates a model for the given catalog entry
func NewAttentionModel(desc attention.ModelDescriptor, cfg AttentionModelConfig) *AttentionModel {
	if cfg.NumHeads <= 0 || cfg.DModel%cfg.NumHeads != 0 {
		cfg.NumHeads = 1
	}
	m := &AttentionModel{
		desc:      desc,
		dModel:    cfg.DModel,
		numHeads:  cfg.NumHeads,
		numLayers: cfg.NumLayers,
	}
	m.initWeights(cfg.Seed ^ int64(hashString(desc.ID)))
	return m
}

// initWeights initializes projections with Xavier scaling
func (m *AttentionModel) initWeights(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	dHead := m.dModel / m.numHeads
	scale := math.Sqrt(2.0 / float64(m.dModel+dHead))

	m.wq = make([][]*mat.Dense, m.numLayers)
	m.wk = make([][]*mat.Dense, m.numLayers)
	for l := 0; l < m.numLayers; l++ {
		m.wq[l] = make([]*mat.Dense, m.numHeads)
		m.wk[l] = make([]*mat.Dense, m.numHeads)
		for h := 0; h < m.numHeads; h++ {
			m.wq[l][h] = newWeight(rng, m.dModel, dHead, scale)
			m.wk[l][h] = newWeight(rng, m.dModel, dHead, scale)
		}
	}
}

func newWeight(rng *rand.Rand, rows, cols int, scale float64) *mat.Dense {
	backing := make([]float64, rows*cols)
	for i := range backing {
		backing[i] = rng.NormFloat64() * scale
	}
	return mat.NewDense(rows, cols, backing)
}

// Attend returns one head-averaged attention matrix per layer for tokens
func (m *AttentionModel) Attend(tokens []attention.Token) [][][]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	T := len(tokens)
	layers := make([][][]float64, m.numLayers)
	if T == 0 {
		for l := range layers {
			layers[l] = [][]float64{}
		}
		return layers
	}

	x := m.embed(tokens)
	dHead := m.dModel / m.numHeads
	rescale := 1.0 / math.Sqrt(float64(dHead))

	q := mat.NewDense(T, dHead, nil)
	k := mat.NewDense(T, dHead, nil)
	scores := mat.NewDense(T, T, nil)

	for l := 0; l < m.numLayers; l++ {
		avg := mat.NewDense(T, T, nil)
		for h := 0; h < m.numHeads; h++ {
			q.Mul(x, m.wq[l][h])
			k.Mul(x, m.wk[l][h])
			scores.Mul(q, k.T())
			scores.Scale(rescale, scores)
			rowSoftmax(scores, m.desc.Causal())
			avg.Add(avg, scores)
		}
		avg.Scale(1/float64(m.numHeads), avg)
		layers[l] = toRows(avg)

		// Residual mix so deeper layers see contextualised inputs
		mixed := mat.NewDense(T, m.dModel, nil)
		mixed.Mul(avg, x)
		x.Add(x, mixed)
		layerNorm(x)
	}
	return layers
}

// GetConfig returns the model configuration
func (m *AttentionModel) GetConfig() map[string]interface{} {
	return map[string]interface{}{
		"model":      m.desc.ID,
		"causal":     m.desc.Causal(),
		"d_model":    m.dModel,
		"num_heads":  m.numHeads,
		"num_layers": m.numLayers,
	}
}

// embed maps tokens to hashed embeddings plus sinusoidal positions
func (m *AttentionModel) embed(tokens []attention.Token) *mat.Dense {
	x := mat.NewDense(len(tokens), m.dModel, nil)
	for i, tok := range tokens {
		rng := rand.New(rand.NewSource(int64(hashString(strings.ToLower(tok)))))
		for j := 0; j < m.dModel; j++ {
			angle := float64(i) / math.Pow(10000, float64(2*(j/2))/float64(m.dModel))
			pos := math.Sin(angle)
			if j%2 == 1 {
				pos = math.Cos(angle)
			}
			x.Set(i, j, rng.NormFloat64()+pos)
		}
	}
	return x
}

// rowSoftmax replaces each row with its softmax. With causal set, entries
// above the diagonal receive zero weight.
func rowSoftmax(s *mat.Dense, causal bool) {
	rows, cols := s.Dims()
	for i := 0; i < rows; i++ {
		limit := cols
		if causal {
			limit = i + 1
		}
		max := math.Inf(-1)
		for j := 0; j < limit; j++ {
			if v := s.At(i, j); v > max {
				max = v
			}
		}
		sum := 0.0
		for j := 0; j < cols; j++ {
			if j >= limit {
				s.Set(i, j, 0)
				continue
			}
			e := math.Exp(s.At(i, j) - max)
			s.Set(i, j, e)
			sum += e
		}
		for j := 0; j < limit; j++ {
			s.Set(i, j, s.At(i, j)/sum)
		}
	}
}

// layerNorm normalizes each row to zero mean and unit variance
func layerNorm(x *mat.Dense) {
	rows, cols := x.Dims()
	for i := 0; i < rows; i++ {
		row := x.RawRowView(i)
		mean := 0.0
		for _, v := range row {
			mean += v
		}
		mean /= float64(cols)
		variance := 0.0
		for _, v := range row {
			variance += (v - mean) * (v - mean)
		}
		std := math.Sqrt(variance/float64(cols) + 1e-5)
		for j := range row {
			row[j] = (row[j] - mean) / std
		}
	}
}

func toRows(d *mat.Dense) [][]float64 {
	rows, cols := d.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
		for j := range out[i] {
			v := d.At(i, j)
			// clamp float rounding so weights stay in [0,1]
			if v > 1 {
				v = 1
			} else if v < 0 {
				v = 0
			}
			out[i][j] = v
		}
	}
	return out
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

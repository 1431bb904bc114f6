package model

import (
	"fmt"
	"os"

	"github.com/screenager/llamago/internal/binio"
)

// Weights owns every parameter tensor for the lifetime of the engine:
// contiguous, row-major float32, with per-layer tensors concatenated along
// the layer axis. WCLS aliases TokenEmbedding's backing array when the
// classifier is shared, rather than copying it.
type Weights struct {
	cfg Config

	TokenEmbedding []float32 // [vocab_size, dim]
	RMSAttWeight   []float32 // [n_layers, dim]
	WQ             []float32 // [n_layers, dim, dim]
	WK             []float32 // [n_layers, dim, kv_dim]
	WV             []float32 // [n_layers, dim, kv_dim]
	WO             []float32 // [n_layers, dim, dim]
	RMSFFNWeight   []float32 // [n_layers, dim]
	W1             []float32 // [n_layers, hidden_dim, dim]
	W2             []float32 // [n_layers, dim, hidden_dim]
	W3             []float32 // [n_layers, hidden_dim, dim]
	RMSFinalWeight []float32 // [dim]
	WCLS           []float32 // [vocab_size, dim]
}

// LoadCheckpoint reads a checkpoint file: the 28-byte
// Config header, every weight tensor in order, the legacy RoPE table
// (discarded), and finally the classifier weights if they are not shared
// with the token embedding.
func LoadCheckpoint(path string) (Config, *Weights, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, nil, fmt.Errorf("%w: open %s: %v", ErrCheckpointIO, path, err)
	}
	defer f.Close()

	r := binio.NewReader(f)
	var raw rawConfig
	r.Header(&raw)
	if err := r.Err(); err != nil {
		return Config{}, nil, fmt.Errorf("%w: read header: %v", ErrCheckpointCorrupt, err)
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return Config{}, nil, err
	}

	dim, hidden, layers, kvDim, headSize := cfg.Dim, cfg.HiddenDim, cfg.NLayers, cfg.KVDim(), cfg.HeadSize()

	w := &Weights{cfg: cfg}
	w.TokenEmbedding = r.Float32s(cfg.VocabSize * dim)
	w.RMSAttWeight = r.Float32s(layers * dim)
	w.WQ = r.Float32s(layers * dim * dim)
	w.WK = r.Float32s(layers * dim * kvDim)
	w.WV = r.Float32s(layers * dim * kvDim)
	w.WO = r.Float32s(layers * dim * dim)
	w.RMSFFNWeight = r.Float32s(layers * dim)
	w.W1 = r.Float32s(layers * hidden * dim)
	w.W2 = r.Float32s(layers * dim * hidden)
	w.W3 = r.Float32s(layers * hidden * dim)
	w.RMSFinalWeight = r.Float32s(dim)
	r.Skip(headSize)
	if err := r.Err(); err != nil {
		return Config{}, nil, fmt.Errorf("%w: %s: %v", ErrCheckpointCorrupt, path, err)
	}

	if cfg.SharedWeights {
		w.WCLS = w.TokenEmbedding
	} else {
		wcls, err := r.Remaining()
		if err != nil {
			return Config{}, nil, fmt.Errorf("%w: reading classifier weights: %v", ErrCheckpointCorrupt, err)
		}
		want := cfg.VocabSize * dim
		if len(wcls) != want {
			return Config{}, nil, fmt.Errorf("%w: classifier weights are %d floats, want %d", ErrCheckpointCorrupt, len(wcls), want)
		}
		w.WCLS = wcls
	}

	return cfg, w, nil
}

// TokenRow returns the dim-long embedding row for token id t.
func (w *Weights) TokenRow(t int) []float32 {
	dim := w.cfg.Dim
	return w.TokenEmbedding[t*dim : (t+1)*dim]
}

func (w *Weights) rmsAtt(l int) []float32 {
	dim := w.cfg.Dim
	return w.RMSAttWeight[l*dim : (l+1)*dim]
}

func (w *Weights) rmsFFN(l int) []float32 {
	dim := w.cfg.Dim
	return w.RMSFFNWeight[l*dim : (l+1)*dim]
}

func (w *Weights) wq(l int) []float32 {
	dim := w.cfg.Dim
	n := dim * dim
	return w.WQ[l*n : (l+1)*n]
}

func (w *Weights) wk(l int) []float32 {
	n := w.cfg.Dim * w.cfg.KVDim()
	return w.WK[l*n : (l+1)*n]
}

func (w *Weights) wv(l int) []float32 {
	n := w.cfg.Dim * w.cfg.KVDim()
	return w.WV[l*n : (l+1)*n]
}

func (w *Weights) wo(l int) []float32 {
	n := w.cfg.Dim * w.cfg.Dim
	return w.WO[l*n : (l+1)*n]
}

func (w *Weights) w1(l int) []float32 {
	n := w.cfg.HiddenDim * w.cfg.Dim
	return w.W1[l*n : (l+1)*n]
}

func (w *Weights) w2(l int) []float32 {
	n := w.cfg.Dim * w.cfg.HiddenDim
	return w.W2[l*n : (l+1)*n]
}

func (w *Weights) w3(l int) []float32 {
	n := w.cfg.HiddenDim * w.cfg.Dim
	return w.W3[l*n : (l+1)*n]
}

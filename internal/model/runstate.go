package model

// RunState holds every activation buffer the forward pass reads and
// writes, allocated once and reused across steps. Every field is
// overwritten in full on each call to Transformer.Forward except Att, of
// which each head's row is written only for positions 0..pos, and the KV
// cache, which is written once per (layer, position) slot within a
// session.
type RunState struct {
	X, Xb, Xb2 []float32 // dim
	Hb, Hb2    []float32 // hidden_dim
	Q          []float32 // dim
	Att        []float32 // n_heads * seq_len
	Logits     []float32 // vocab_size

	KeyCache   []float32 // n_layers * seq_len * kv_dim
	ValueCache []float32 // n_layers * seq_len * kv_dim
}

// NewRunState allocates a RunState sized for cfg.
func NewRunState(cfg Config) *RunState {
	kvDim := cfg.KVDim()
	cacheLen := cfg.NLayers * cfg.SeqLen * kvDim
	return &RunState{
		X:          make([]float32, cfg.Dim),
		Xb:         make([]float32, cfg.Dim),
		Xb2:        make([]float32, cfg.Dim),
		Hb:         make([]float32, cfg.HiddenDim),
		Hb2:        make([]float32, cfg.HiddenDim),
		Q:          make([]float32, cfg.Dim),
		Att:        make([]float32, cfg.NHeads*cfg.SeqLen),
		Logits:     make([]float32, cfg.VocabSize),
		KeyCache:   make([]float32, cacheLen),
		ValueCache: make([]float32, cacheLen),
	}
}

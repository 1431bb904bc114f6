package model

import "fmt"

// Config is the fixed 28-byte header at the start of a checkpoint file:
// seven signed 32-bit little-endian integers, in this order.
type Config struct {
	Dim           int
	HiddenDim     int
	NLayers       int
	NHeads        int
	NKVHeads      int
	VocabSize     int
	SeqLen        int
	SharedWeights bool
}

// rawConfig is the on-disk layout, decoded directly by binio.Reader.Header.
type rawConfig struct {
	Dim, HiddenDim, NLayers, NHeads, NKVHeads, VocabSize, SeqLen int32
}

// fromRaw converts the raw header into a validated Config. A negative
// VocabSize means the classifier weights are stored separately at the end
// of the file; its absolute value is used everywhere else.
func fromRaw(raw rawConfig) (Config, error) {
	c := Config{
		Dim:       int(raw.Dim),
		HiddenDim: int(raw.HiddenDim),
		NLayers:   int(raw.NLayers),
		NHeads:    int(raw.NHeads),
		NKVHeads:  int(raw.NKVHeads),
		SeqLen:    int(raw.SeqLen),
	}
	if raw.VocabSize < 0 {
		c.VocabSize = -int(raw.VocabSize)
		c.SharedWeights = false
	} else {
		c.VocabSize = int(raw.VocabSize)
		c.SharedWeights = true
	}

	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	switch {
	case c.Dim <= 0, c.HiddenDim <= 0, c.NLayers <= 0, c.NHeads <= 0, c.NKVHeads <= 0:
		return fmt.Errorf("%w: non-positive dimension in header %+v", ErrCheckpointCorrupt, c)
	case c.VocabSize < 1:
		return fmt.Errorf("%w: vocab_size must be >= 1, got %d", ErrCheckpointCorrupt, c.VocabSize)
	case c.SeqLen < 1:
		return fmt.Errorf("%w: seq_len must be >= 1, got %d", ErrCheckpointCorrupt, c.SeqLen)
	case c.Dim%c.NHeads != 0:
		return fmt.Errorf("%w: dim %d not divisible by n_heads %d", ErrCheckpointCorrupt, c.Dim, c.NHeads)
	case c.NHeads%c.NKVHeads != 0:
		return fmt.Errorf("%w: n_heads %d not divisible by n_kv_heads %d", ErrCheckpointCorrupt, c.NHeads, c.NKVHeads)
	}
	return nil
}

// HeadSize is the per-head dimension: dim / n_heads.
func (c Config) HeadSize() int {
	return c.Dim / c.NHeads
}

// KVDim is the combined dimension of all key/value heads: dim * n_kv_heads / n_heads.
func (c Config) KVDim() int {
	return c.Dim * c.NKVHeads / c.NHeads
}

// KVMul is the number of query heads sharing one key/value head.
func (c Config) KVMul() int {
	return c.NHeads / c.NKVHeads
}

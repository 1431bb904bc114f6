package model

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/screenager/llamago/internal/binio"
)

// tinyDims is a small but structurally valid configuration used across
// model tests: dim=8, hidden_dim=16, 2 layers, 4 heads, 2 kv heads (so
// kv_mul=2 exercises grouped-query attention), vocab 16, seq_len 8.
type tinyDims struct {
	dim, hidden, layers, heads, kvHeads, vocab, seqLen int
}

func defaultTinyDims() tinyDims {
	return tinyDims{dim: 8, hidden: 16, layers: 2, heads: 4, kvHeads: 2, vocab: 16, seqLen: 8}
}

// writeCheckpoint writes a syntactically valid checkpoint file for d to
// path, using rng for every tensor value. The raw vocab_size field is
// written negative, followed by a separate classifier, when shared is false.
func writeCheckpoint(t *testing.T, path string, d tinyDims, rng *rand.Rand, shared bool) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	kvDim := d.dim * d.kvHeads / d.heads
	headSize := d.dim / d.heads

	w := binio.NewWriter(f)
	vocabField := int32(d.vocab)
	if !shared {
		vocabField = -vocabField
	}
	w.Header(rawConfig{
		Dim: int32(d.dim), HiddenDim: int32(d.hidden), NLayers: int32(d.layers),
		NHeads: int32(d.heads), NKVHeads: int32(d.kvHeads), VocabSize: vocabField, SeqLen: int32(d.seqLen),
	})

	write := func(n int) {
		w.Float32s(randomF32(rng, n))
	}
	write(d.vocab * d.dim)              // token_embedding
	write(d.layers * d.dim)             // rms_att_weight
	write(d.layers * d.dim * d.dim)     // wq
	write(d.layers * d.dim * kvDim)     // wk
	write(d.layers * d.dim * kvDim)     // wv
	write(d.layers * d.dim * d.dim)     // wo
	write(d.layers * d.dim)             // rms_ffn_weight
	write(d.layers * d.hidden * d.dim)  // w1
	write(d.layers * d.dim * d.hidden)  // w2
	write(d.layers * d.hidden * d.dim)  // w3
	write(d.dim)                        // rms_final_weight
	write(headSize)                     // legacy RoPE table, skipped on read
	if !shared {
		write(d.vocab * d.dim) // wcls
	}
	if err := w.Err(); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func randomF32(rng *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(rng.NormFloat64()) * 0.1
	}
	return v
}

func TestLoadCheckpointSharedWeights(t *testing.T) {
	d := defaultTinyDims()
	rng := rand.New(rand.NewSource(1))
	path := filepath.Join(t.TempDir(), "ckpt.bin")
	writeCheckpoint(t, path, d, rng, true)

	cfg, w, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if !cfg.SharedWeights {
		t.Error("expected SharedWeights=true")
	}
	if &w.WCLS[0] != &w.TokenEmbedding[0] {
		t.Error("expected WCLS to alias TokenEmbedding's backing array")
	}
	if cfg.HeadSize() != d.dim/d.heads {
		t.Errorf("HeadSize() = %d, want %d", cfg.HeadSize(), d.dim/d.heads)
	}
	if cfg.KVDim() != d.dim*d.kvHeads/d.heads {
		t.Errorf("KVDim() = %d, want %d", cfg.KVDim(), d.dim*d.kvHeads/d.heads)
	}
	if cfg.KVMul() != d.heads/d.kvHeads {
		t.Errorf("KVMul() = %d, want %d", cfg.KVMul(), d.heads/d.kvHeads)
	}
}

func TestLoadCheckpointUnsharedWeights(t *testing.T) {
	d := defaultTinyDims()
	rng := rand.New(rand.NewSource(2))
	path := filepath.Join(t.TempDir(), "ckpt.bin")
	writeCheckpoint(t, path, d, rng, false)

	cfg, w, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if cfg.SharedWeights {
		t.Error("expected SharedWeights=false")
	}
	if len(w.WCLS) != d.vocab*d.dim {
		t.Errorf("len(WCLS) = %d, want %d", len(w.WCLS), d.vocab*d.dim)
	}
}

func TestLoadCheckpointTruncatedFileIsCorrupt(t *testing.T) {
	d := defaultTinyDims()
	rng := rand.New(rand.NewSource(3))
	path := filepath.Join(t.TempDir(), "ckpt.bin")
	writeCheckpoint(t, path, d, rng, true)

	full, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	truncated := filepath.Join(t.TempDir(), "truncated.bin")
	if err := os.WriteFile(truncated, full[:len(full)-10], 0o644); err != nil {
		t.Fatalf("write truncated: %v", err)
	}

	_, _, err = LoadCheckpoint(truncated)
	if err == nil {
		t.Fatal("expected error for truncated checkpoint")
	}
}

func TestLoadCheckpointBadConfigIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ckpt.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w := binio.NewWriter(f)
	// dim=7 is not divisible by n_heads=4.
	w.Header(rawConfig{Dim: 7, HiddenDim: 16, NLayers: 1, NHeads: 4, NKVHeads: 2, VocabSize: 16, SeqLen: 8})
	f.Close()

	_, _, err = LoadCheckpoint(path)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestLoadCheckpointMissingFile(t *testing.T) {
	_, _, err := LoadCheckpoint(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	if err == nil {
		t.Fatal("expected io error for missing file")
	}
}

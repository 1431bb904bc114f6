package model

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/screenager/llamago/internal/kernel"
)

// ErrPositionOverflow is returned when Forward is called with a position
// that is not exactly one past the previous call, or that has reached
// SeqLen — both are programmer errors.
var ErrPositionOverflow = fmt.Errorf("model: position overflow")

// headParallelThreshold is the minimum head count at which attention heads
// are fanned out across goroutines instead of computed inline; each head
// writes a disjoint range of RunState.Xb and reads only KV cache slots
// already written earlier in the same step, so no head needs another
// head's output.
const headParallelThreshold = 8

// Transformer is a loaded model ready to run single-step inference. It owns
// its Weights and RunState for the lifetime of the process; Forward is the
// only mutator of RunState and must be called with strictly increasing
// positions starting at 0 within a session.
type Transformer struct {
	Config Config
	W      *Weights
	S      *RunState

	nextPos int
}

// New constructs a Transformer over already-loaded weights, allocating a
// fresh RunState.
func New(cfg Config, w *Weights) *Transformer {
	return &Transformer{Config: cfg, W: w, S: NewRunState(cfg)}
}

// Forward runs one decoding step: embeds token t at position pos, updates
// the KV cache, and fills Logits with the next-token distribution logits
// distribution logits.
func (t *Transformer) Forward(token, pos int) error {
	if pos != t.nextPos || pos >= t.Config.SeqLen {
		return fmt.Errorf("%w: pos=%d expected=%d seq_len=%d", ErrPositionOverflow, pos, t.nextPos, t.Config.SeqLen)
	}
	t.nextPos = pos + 1

	cfg := t.Config
	w := t.W
	s := t.S
	dim, kvDim, headSize, kvMul := cfg.Dim, cfg.KVDim(), cfg.HeadSize(), cfg.KVMul()

	copy(s.X, w.TokenRow(token))

	for l := 0; l < cfg.NLayers; l++ {
		kernel.RMSNorm(s.Xb, s.X, w.rmsAtt(l))

		loff := l * cfg.SeqLen * kvDim
		kvSlot := loff + pos*kvDim

		kernel.MatMul(s.Q, s.Xb, w.wq(l), dim)
		kernel.MatMul(s.KeyCache[kvSlot:kvSlot+kvDim], s.Xb, w.wk(l), dim)
		kernel.MatMul(s.ValueCache[kvSlot:kvSlot+kvDim], s.Xb, w.wv(l), dim)

		applyRoPE(s.Q, s.KeyCache[kvSlot:kvSlot+kvDim], pos, dim, kvDim, headSize)

		if err := t.attention(l, pos, loff, kvDim, headSize, kvMul); err != nil {
			return err
		}

		kernel.MatMul(s.Xb2, s.Xb, w.wo(l), dim)
		addInPlace(s.X, s.Xb2)

		kernel.RMSNorm(s.Xb, s.X, w.rmsFFN(l))
		kernel.MatMul(s.Hb, s.Xb, w.w1(l), dim)
		kernel.MatMul(s.Hb2, s.Xb, w.w3(l), dim)
		swiGLU(s.Hb, s.Hb2)
		kernel.MatMul(s.Xb, s.Hb, w.w2(l), cfg.HiddenDim)
		addInPlace(s.X, s.Xb)
	}

	kernel.RMSNormInPlace(s.X, w.RMSFinalWeight)
	kernel.MatMul(s.Logits, s.X, w.WCLS, dim)
	return nil
}

// applyRoPE rotates q in place across all heads, and rotates the freshly
// written key-cache slot only for indices below kvDim (grouped-query keys
// are shorter than queries).
func applyRoPE(q, keySlot []float32, pos, dim, kvDim, headSize int) {
	for i := 0; i < dim; i += 2 {
		headDim := i % headSize
		freq := 1.0 / math.Pow(10000.0, float64(headDim)/float64(headSize))
		theta := float64(pos) * freq
		cosT, sinT := math.Cos(theta), math.Sin(theta)

		rotatePair(q, i, cosT, sinT)
		if i < kvDim {
			rotatePair(keySlot, i, cosT, sinT)
		}
	}
}

func rotatePair(v []float32, i int, cosT, sinT float64) {
	v0, v1 := float64(v[i]), float64(v[i+1])
	v[i] = float32(v0*cosT - v1*sinT)
	v[i+1] = float32(v0*sinT + v1*cosT)
}

// attention computes multi-head causal attention for layer l at position
// pos, writing the concatenated per-head output into s.Xb. Heads are
// independent and may run concurrently above
// headParallelThreshold.
func (t *Transformer) attention(l, pos, loff, kvDim, headSize, kvMul int) error {
	cfg := t.Config
	s := t.S

	head := func(h int) {
		qh := s.Q[h*headSize : (h+1)*headSize]
		attRow := s.Att[h*cfg.SeqLen : h*cfg.SeqLen+pos+1]
		kvHead := h / kvMul

		for p := 0; p <= pos; p++ {
			kOff := loff + p*kvDim + kvHead*headSize
			kSlice := s.KeyCache[kOff : kOff+headSize]
			score := kernel.Dot(qh, kSlice) / float32(math.Sqrt(float64(headSize)))
			attRow[p] = score
		}
		kernel.Softmax(attRow)

		out := s.Xb[h*headSize : (h+1)*headSize]
		for i := range out {
			out[i] = 0
		}
		for p := 0; p <= pos; p++ {
			vOff := loff + p*kvDim + kvHead*headSize
			vSlice := s.ValueCache[vOff : vOff+headSize]
			weight := attRow[p]
			for i, v := range vSlice {
				out[i] += weight * v
			}
		}
	}

	if cfg.NHeads < headParallelThreshold {
		for h := 0; h < cfg.NHeads; h++ {
			head(h)
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for h := 0; h < cfg.NHeads; h++ {
		h := h
		g.Go(func() error {
			head(h)
			return nil
		})
	}
	return g.Wait()
}

// swiGLU applies hb[i] = (hb[i] * sigmoid(hb[i])) * hb2[i] in place.
func swiGLU(hb, hb2 []float32) {
	for i, x := range hb {
		sigmoid := 1.0 / (1.0 + math.Exp(float64(-x)))
		hb[i] = x * float32(sigmoid) * hb2[i]
	}
}

func addInPlace(dst, src []float32) {
	for i, v := range src {
		dst[i] += v
	}
}

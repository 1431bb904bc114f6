// Package generate implements the autoregressive decoding driver: prompt
// ingestion, teacher-forced replay of the prompt, sampled continuation,
// the BOS stop condition, and streamed detokenization.
package generate

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/screenager/llamago/internal/model"
	"github.com/screenager/llamago/internal/sampler"
	"github.com/screenager/llamago/internal/tokenizer"
)

// ErrEmptyPrompt is returned when the prompt encodes to no tokens at all.
var ErrEmptyPrompt = errors.New("generate: empty prompt")

// flusher is implemented by writers (e.g. bufio.Writer) that buffer output
// and need an explicit flush after each streamed piece.
type flusher interface {
	Flush() error
}

// Driver orchestrates one generation session over a loaded transformer,
// vocabulary, and sampler. It holds no state across calls to Run other than
// what Transformer itself tracks (the forward-pass position counter).
type Driver struct {
	Transformer *model.Transformer
	Vocab       *tokenizer.Vocab
	Sampler     *sampler.Sampler

	// Log receives per-step debug records; nil is treated as "discard" so
	// the engine stays silent by default.
	Log *logrus.Logger
}

// Run generates up to steps tokens from prompt, streaming decoded text to
// w, and returns after emitting a trailing newline. steps must be capped
// by the caller to at most Transformer.Config.SeqLen.
func (d *Driver) Run(w io.Writer, prompt string, steps int) error {
	tokens := d.Vocab.Encode(prompt, true, false)
	if len(tokens) == 0 {
		return ErrEmptyPrompt
	}

	log := d.Log
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	pos := 0
	token := int(tokens[0])
	prev := token

	for pos < steps {
		start := time.Now()
		if err := d.Transformer.Forward(token, pos); err != nil {
			return fmt.Errorf("generate: forward at pos %d: %w", pos, err)
		}

		var next int
		if pos < len(tokens)-1 {
			next = int(tokens[pos+1])
		} else {
			next = int(d.Sampler.Sample(d.Transformer.S.Logits))
		}

		log.WithFields(logrus.Fields{
			"pos":     pos,
			"token":   token,
			"next":    next,
			"elapsed": time.Since(start),
		}).Debug("forward step")

		if next == tokenizer.BOSID {
			break
		}

		if pos > 0 {
			piece := d.Vocab.Decode(int32(token), int32(prev))
			if _, err := io.WriteString(w, piece); err != nil {
				return fmt.Errorf("generate: write output: %w", err)
			}
			if f, ok := w.(flusher); ok {
				if err := f.Flush(); err != nil {
					return fmt.Errorf("generate: flush output: %w", err)
				}
			}
		}

		prev = token
		token = next
		pos++
	}

	_, err := io.WriteString(w, "\n")
	return err
}

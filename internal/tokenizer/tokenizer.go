// Package tokenizer implements the SentencePiece-style byte-pair encoder
// and decoder: vocabulary and merge-score loading, grapheme-seeded greedy
// BPE encoding, and piece decoding with the BOS leading-space rule.
package tokenizer

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/clipperhouse/uax29/v2/graphemes"

	"github.com/screenager/llamago/internal/binio"
)

// Reserved token ids.
const (
	UnknownID = 0
	BOSID     = 1
	EOSID     = 2
	// byteIDOffset is added to a raw byte value to get its fallback
	// vocabulary id: byte b -> id b+3.
	byteIDOffset = 3
)

// ErrIO wraps a filesystem-level failure reading the tokenizer file.
var ErrIO = errors.New("tokenizer: io error")

// Vocab holds the loaded vocabulary: each token's displayable piece, its
// merge score, and a permutation of ids sorted lexicographically by piece
// for binary search.
type Vocab struct {
	pieces         []string
	scores         []float32
	maxTokenLength int
	sortedIDs      []int32 // token ids ordered by piece, ascending
}

// Load reads a tokenizer file: u32 max_token_length, then vocabSize records
// of [f32 score, u32 length, length bytes of UTF-8 piece].
func Load(path string, vocabSize int) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}
	defer f.Close()

	r := binio.NewReader(f)
	var maxTokenLength uint32
	r.Header(&maxTokenLength)

	pieces := make([]string, vocabSize)
	scores := make([]float32, vocabSize)
	for i := 0; i < vocabSize; i++ {
		s := r.Float32s(1)
		l := r.Uint32s(1)
		if r.Err() != nil {
			break
		}
		scores[i] = s[0]
		pieces[i] = r.Bytes(int(l[0]))
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIO, path, err)
	}

	sortedIDs := make([]int32, vocabSize)
	for i := range sortedIDs {
		sortedIDs[i] = int32(i)
	}
	sort.Slice(sortedIDs, func(i, j int) bool {
		return pieces[sortedIDs[i]] < pieces[sortedIDs[j]]
	})

	return &Vocab{
		pieces:         pieces,
		scores:         scores,
		maxTokenLength: int(maxTokenLength),
		sortedIDs:      sortedIDs,
	}, nil
}

// Piece returns the raw UTF-8 byte sequence stored for token id.
func (v *Vocab) Piece(id int32) string {
	return v.pieces[id]
}

// Size returns the number of tokens in the vocabulary.
func (v *Vocab) Size() int {
	return len(v.pieces)
}

// find binary-searches the vocabulary for an exact piece match.
func (v *Vocab) find(piece string) (int32, bool) {
	n := len(v.sortedIDs)
	i := sort.Search(n, func(i int) bool {
		return v.pieces[v.sortedIDs[i]] >= piece
	})
	if i < n && v.pieces[v.sortedIDs[i]] == piece {
		return v.sortedIDs[i], true
	}
	return 0, false
}

// Encode tokenizes text: optional BOS, a dummy-prefix space,
// grapheme-seeded byte fallback, then greedy highest-score pair merging,
// and an optional trailing EOS.
func (v *Vocab) Encode(text string, addBOS, addEOS bool) []int32 {
	var tokens []int32
	if addBOS {
		tokens = append(tokens, BOSID)
	}

	if text != "" {
		if spaceID, ok := v.find(" "); ok {
			tokens = append(tokens, spaceID)
		}
	}

	for seg := graphemes.FromString(text); seg.Next(); {
		cluster := seg.Value()
		if id, ok := v.find(cluster); ok {
			tokens = append(tokens, id)
			continue
		}
		for i := 0; i < len(cluster); i++ {
			tokens = append(tokens, int32(cluster[i])+byteIDOffset)
		}
	}

	tokens = v.mergeBPE(tokens)

	if addEOS {
		tokens = append(tokens, EOSID)
	}
	return tokens
}

// mergeBPE repeatedly merges the highest-scoring adjacent pair until no
// pair has a vocabulary match. Ties are broken by lowest starting index,
// which falls out of scanning left-to-right with a strict ">" comparison.
func (v *Vocab) mergeBPE(tokens []int32) []int32 {
	for {
		bestScore := float32(0)
		bestIdx := -1
		var bestID int32
		haveBest := false

		for i := 0; i < len(tokens)-1; i++ {
			merged := v.pieces[tokens[i]] + v.pieces[tokens[i+1]]
			id, ok := v.find(merged)
			if !ok {
				continue
			}
			score := v.scores[id]
			if !haveBest || score > bestScore {
				haveBest = true
				bestScore = score
				bestIdx = i
				bestID = id
			}
		}

		if !haveBest {
			return tokens
		}

		next := make([]int32, 0, len(tokens)-1)
		next = append(next, tokens[:bestIdx]...)
		next = append(next, bestID)
		next = append(next, tokens[bestIdx+2:]...)
		tokens = next
	}
}

// Decode returns the displayable piece for token, stripping a single
// leading ASCII space when it immediately follows BOS.
func (v *Vocab) Decode(token, prevToken int32) string {
	piece := v.pieces[token]
	if prevToken == BOSID && len(piece) > 0 && piece[0] == ' ' {
		piece = piece[1:]
	}
	return piece
}

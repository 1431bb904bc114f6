package tokenizer

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/screenager/llamago/internal/binio"
)

// newTestVocab builds a Vocab in memory: ids 0,1,2 reserved, ids 3..258 are
// the single-byte fallback table, and any extra pieces/scores are appended
// after that, exactly like a real checkpoint's merge entries.
func newTestVocab(extraPieces []string, extraScores []float32) *Vocab {
	pieces := make([]string, 259, 259+len(extraPieces))
	scores := make([]float32, 259, 259+len(extraPieces))
	pieces[UnknownID] = "<unk>"
	pieces[BOSID] = "<s>"
	pieces[EOSID] = "</s>"
	for b := 0; b < 256; b++ {
		pieces[byteIDOffset+b] = string([]byte{byte(b)})
	}
	pieces = append(pieces, extraPieces...)
	scores = append(scores, extraScores...)

	sortedIDs := make([]int32, len(pieces))
	for i := range sortedIDs {
		sortedIDs[i] = int32(i)
	}
	sort.Slice(sortedIDs, func(i, j int) bool {
		return pieces[sortedIDs[i]] < pieces[sortedIDs[j]]
	})

	return &Vocab{pieces: pieces, scores: scores, sortedIDs: sortedIDs}
}

const spaceID = int32(byteIDOffset + ' ') // 35

// TestEncodeEmptyTextYieldsBOSOnly checks an empty string encodes to
// just the BOS token.
func TestEncodeEmptyTextYieldsBOSOnly(t *testing.T) {
	v := newTestVocab(nil, nil)
	got := v.Encode("", true, false)
	want := []int32{BOSID}
	assertTokens(t, got, want)
}

// TestEncodeSingleASCIICharFallsBackToByteID checks a single unknown
// character falls back to its byte-offset id after the dummy space.
func TestEncodeSingleASCIICharFallsBackToByteID(t *testing.T) {
	v := newTestVocab(nil, nil)
	got := v.Encode("a", true, false)
	want := []int32{BOSID, spaceID, byteIDOffset + 'a'}
	assertTokens(t, got, want)
}

// TestEncodeControlByteFallsBackToByteID checks raw byte 0x01 falls back
// to id 4.
func TestEncodeControlByteFallsBackToByteID(t *testing.T) {
	v := newTestVocab(nil, nil)
	got := v.Encode("\x01", true, false)
	want := []int32{BOSID, spaceID, byteIDOffset + 1}
	assertTokens(t, got, want)
}

// TestEncodeMergesHighestScoringPair checks the BPE loop picks the pair
// whose merged piece has the highest vocab score.
func TestEncodeMergesHighestScoringPair(t *testing.T) {
	v := newTestVocab([]string{"ab"}, []float32{10})
	got := v.Encode("ab", false, false)
	mergedID, ok := v.find("ab")
	if !ok {
		t.Fatal("test vocab missing merged piece")
	}
	assertTokens(t, got, []int32{spaceID, mergedID})
}

// TestEncodeMergeTieBreakIsLowestIndex checks that among candidates
// with identical scores, the algorithm deterministically prefers the one at
// the lowest starting index, and the final token list does not depend on
// which equally-scored pair happens to be discovered first during the scan.
func TestEncodeMergeTieBreakIsLowestIndex(t *testing.T) {
	v := newTestVocab([]string{"ab", "cd"}, []float32{5, 5})
	got := v.Encode("abcd", false, false)

	abID, _ := v.find("ab")
	cdID, _ := v.find("cd")
	want := []int32{spaceID, abID, cdID}
	assertTokens(t, got, want)
}

// TestEncodeDecodeRoundTrip checks that encode followed by piecewise
// decode (applying the BOS leading-space strip rule) reconstructs the
// original string for text made of known grapheme clusters.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := newTestVocab([]string{"ab"}, []float32{10})

	for _, s := range []string{"", "a", "ab", "abc", "xyz"} {
		tokens := v.Encode(s, true, false)

		var rebuilt string
		for i := 1; i < len(tokens); i++ { // skip BOS itself
			rebuilt += v.Decode(tokens[i], tokens[i-1])
		}
		if rebuilt != s {
			t.Errorf("round trip for %q: got %q", s, rebuilt)
		}
	}
}

// TestDecodeStripsLeadingSpaceAfterBOS checks the BOS-space rule directly.
func TestDecodeStripsLeadingSpaceAfterBOS(t *testing.T) {
	v := newTestVocab(nil, nil)
	got := v.Decode(spaceID, BOSID)
	if got != "" {
		t.Errorf("got %q, want empty string after stripping leading space", got)
	}

	got2 := v.Decode(spaceID, byteIDOffset+'x')
	if got2 != " " {
		t.Errorf("got %q, want unstripped space when prev is not BOS", got2)
	}
}

// TestLoadReadsTokenizerFile writes a tiny tokenizer file in the format of
// format and checks Load round-trips it.
func TestLoadReadsTokenizerFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tok.bin")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w := binio.NewWriter(f)
	w.Header(uint32(8)) // max_token_length
	pieces := []string{"<unk>", "<s>", "</s>", "a", "b"}
	scores := []float32{0, 0, 0, -1, -1}
	for i, p := range pieces {
		w.Float32s([]float32{scores[i]})
		w.Uint32(uint32(len(p)))
		w.Bytes([]byte(p))
	}
	if err := w.Err(); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	v, err := Load(path, len(pieces))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.Size() != len(pieces) {
		t.Fatalf("Size() = %d, want %d", v.Size(), len(pieces))
	}
	for i, p := range pieces {
		if v.Piece(int32(i)) != p {
			t.Errorf("piece %d: got %q want %q", i, v.Piece(int32(i)), p)
		}
	}
	id, ok := v.find("a")
	if !ok || id != 3 {
		t.Errorf("find(\"a\") = (%d, %v), want (3, true)", id, ok)
	}
}

func assertTokens(t *testing.T, got, want []int32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v, want %v (full got=%v want=%v)", i, got[i], want[i], got, want)
		}
	}
}

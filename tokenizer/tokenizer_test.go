package tokenizer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fullByteFallbackVocab builds a minimal vocabulary whose ids 0..258
// follow the reserved layout (unk, bos, eos, then one "<0xHH>" escape
// per byte 0..255), plus a couple of literal multi-byte pieces, matching
// spec §6's "pieces in the reserved byte-fallback range must be present
// at ids 3..259".
func fullByteFallbackVocab(t *testing.T, extra ...string) *Vocabulary {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("\"<unk>\"\n")
	sb.WriteString("\"<s>\"\n")
	sb.WriteString("\"</s>\"\n")
	for b := 0; b < 256; b++ {
		fmt.Fprintf(&sb, "\"<0x%02X>\"\n", b)
	}
	for _, p := range extra {
		fmt.Fprintf(&sb, "%q\n", p)
	}
	v, err := ReadVocabulary(strings.NewReader(sb.String()))
	require.NoError(t, err)
	return v
}

func TestEncodeByteFallback(t *testing.T) {
	vocab := fullByteFallbackVocab(t)
	tok := New(vocab, 1, 2)

	// "α" (U+03B1) encodes to bytes 0xCE 0xB1 (spec §8 scenario 4).
	ids := tok.Encode("α", false, false)
	require.Equal(t, []int32{0xCE + 3, 0xB1 + 3}, ids)
	require.Equal(t, []int32{209, 180}, ids)
}

func TestEncodeLongestPrefix(t *testing.T) {
	vocab := fullByteFallbackVocab(t, "hello", "hell")
	tok := New(vocab, 1, 2)

	ids := tok.Encode("hello", false, false)
	require.Len(t, ids, 1, "greedy longest-prefix should match the full piece, not the shorter one")
}

func TestRoundTrip(t *testing.T) {
	vocab := fullByteFallbackVocab(t, "hello", " world")
	tok := New(vocab, 1, 2)

	for _, text := range []string{
		"hello world",
		"hello, 世界! α β γ",
		"",
		"\x00\x01 weird \xff bytes",
	} {
		ids := tok.Encode(text, false, false)
		require.Equal(t, text, tok.Decode(ids), "round trip failed for %q", text)
	}
}

func TestEncodeBOSEOS(t *testing.T) {
	vocab := fullByteFallbackVocab(t, "hi")
	tok := New(vocab, 1, 2)

	ids := tok.Encode("hi", true, true)
	require.Equal(t, int32(1), ids[0])
	require.Equal(t, int32(2), ids[len(ids)-1])
}

func TestUnquoteRejectsMalformedLine(t *testing.T) {
	_, err := ReadVocabulary(strings.NewReader("not quoted\n"))
	require.Error(t, err)
}

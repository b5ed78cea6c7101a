package tokenizer

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

var byteEscapePattern = regexp2.MustCompile(`^<0x([0-9A-Fa-f]{2})>$`, regexp2.None)

// Tokenizer implements spec §4.4's encode/decode over a Vocabulary, with
// byte-fallback for any UTF-8 code point the vocabulary doesn't cover.
type Tokenizer struct {
	vocab    *Vocabulary
	bosToken int32
	eosToken int32
}

// New builds a Tokenizer over vocab using the model's configured
// bos/eos token ids (spec §3).
func New(vocab *Vocabulary, bosToken, eosToken int32) *Tokenizer {
	return &Tokenizer{vocab: vocab, bosToken: bosToken, eosToken: eosToken}
}

// Vocabulary returns the underlying loaded vocabulary.
func (t *Tokenizer) Vocabulary() *Vocabulary { return t.vocab }

// Encode tokenizes text by greedy longest-prefix match against the
// vocabulary trie, bounded above by max_piece_len as a lookup
// optimisation (spec §4.4). On a miss, it decodes exactly one UTF-8 code
// point and emits its raw bytes as fallback tokens with id b+3 — spec §9's
// open question, resolved by original_source/tokenizer/src/vocab_txt.rs:
// a whole code point's bytes are emitted together on a miss, not split
// byte-by-byte across iterations.
func (t *Tokenizer) Encode(text string, addBOS, addEOS bool) []int32 {
	var out []int32
	if addBOS {
		out = append(out, t.bosToken)
	}

	data := []byte(text)
	maxLen := t.vocab.maxPieceLen
	for len(data) > 0 {
		bound := len(data)
		if maxLen < bound {
			bound = maxLen
		}
		if id, n, ok := t.vocab.trie.longestPrefix(data[:bound]); ok {
			out = append(out, id)
			data = data[n:]
			continue
		}

		_, size := utf8.DecodeRune(data)
		if size <= 0 {
			size = 1
		}
		for _, b := range data[:size] {
			out = append(out, int32(b)+byteFallbackBase)
		}
		data = data[size:]
	}

	if addEOS {
		out = append(out, t.eosToken)
	}
	return out
}

// Decode concatenates the decoded text of each token id, unescaping
// "<0xHH>" byte-fallback placeholder pieces back to their raw byte
// (spec §4.4).
func (t *Tokenizer) Decode(ids []int32) string {
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(t.decodeOne(id))
	}
	return sb.String()
}

func (t *Tokenizer) decodeOne(id int32) string {
	piece := t.vocab.Piece(id)
	if piece == "" {
		return ""
	}

	if m, err := byteEscapePattern.FindStringMatch(piece); err == nil && m != nil {
		if grp := m.GroupByNumber(1); grp != nil {
			if b, err := strconv.ParseUint(grp.String(), 16, 8); err == nil {
				return string([]byte{byte(b)})
			}
		}
	}
	return piece
}

// Package tokenizer implements spec §4.4's greedy longest-prefix
// byte-piece tokenizer: a prefix tree over a quoted-piece vocabulary file,
// matched greedily up to max_piece_len, with byte-fallback (ids 3..258)
// for any UTF-8 code point the vocabulary doesn't cover.
//
// Grounded on original_source/tokenizer/src/vocab_txt.rs's VocabTxt: the
// same trie-longest-common-prefix search, max_piece_len bound, and the
// "one code point, not one byte, per miss" byte-fallback granularity
// (spec §9 open question, resolved there). The teacher's own tokenizer
// package could not be retrieved in full for this pack, so the trie is
// built directly rather than adapted from teacher code;
// github.com/dlclark/regexp2 (a real teacher dependency, reached for
// wherever the teacher needs pattern matching beyond stdlib regexp, e.g.
// convert/vocabulary.go's merge-pattern handling) is used here only to
// recognize "<0xHH>" byte-fallback escape pieces when decoding, never to
// change what Encode matches.
package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Reserved token ids (spec §4.4): unk=0, bos=1, eos=2 by vocabulary
// convention, confirmed by vocab_txt.rs's bos()==1/eos()==2. The
// Tokenizer takes the model's actual bos/eos ids in New rather than
// hardcoding these, since spec §3 allows a model to configure different ids; the
// byte-fallback base is fixed at 3 regardless.
const (
	UnkToken         int32 = 0
	byteFallbackBase int32 = 3
)

// Vocabulary is a loaded piece table plus its prefix-tree index.
type Vocabulary struct {
	pieces      []string
	trie        *trieNode
	maxPieceLen int
}

// LoadVocabulary reads a vocabulary file from path (spec §6 "Vocabulary
// file": UTF-8 text, one double-quoted piece per line, line index ==
// token id).
func LoadVocabulary(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: open vocabulary: %w", err)
	}
	defer f.Close()
	return ReadVocabulary(f)
}

// ReadVocabulary parses a vocabulary from r; see LoadVocabulary.
func ReadVocabulary(r io.Reader) (*Vocabulary, error) {
	var pieces []string
	trie := newTrieNode()
	maxLen := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		piece, err := unquote(line)
		if err != nil {
			return nil, fmt.Errorf("tokenizer: %w", err)
		}
		id := int32(len(pieces))
		pieces = append(pieces, piece)
		if len(piece) > maxLen {
			maxLen = len(piece)
		}
		trie.insert(piece, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("tokenizer: reading vocabulary: %w", err)
	}

	return &Vocabulary{pieces: pieces, trie: trie, maxPieceLen: maxLen}, nil
}

func unquote(line string) (string, error) {
	if len(line) < 2 || line[0] != '"' || line[len(line)-1] != '"' {
		return "", fmt.Errorf("malformed vocabulary line %q: expected a quoted piece", line)
	}
	return line[1 : len(line)-1], nil
}

// Len returns the vocabulary size (V in spec §3).
func (v *Vocabulary) Len() int { return len(v.pieces) }

// Piece returns the raw stored text for id, or "" if out of range.
func (v *Vocabulary) Piece(id int32) string {
	if id < 0 || int(id) >= len(v.pieces) {
		return ""
	}
	return v.pieces[id]
}

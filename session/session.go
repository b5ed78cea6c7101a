// Package session implements spec §3's Session type and §4.3's session
// manager: a bounded LRU registry of exclusively-held sessions, each
// pairing a kvcache.Cache with dialog-aligned token history and sampling
// configuration.
//
// Grounded on original_source/web-api/src/manager.rs's ServiceManager
// (the LRU map of Option<Session>, the infer decision table, fork/drop)
// and runner/ollamarunner/runner_types.go + runner_compute.go (the
// Sequence/Server split and the per-token sample-decode-send loop),
// confirmed against each other where the teacher and the original
// implementation describe the same control flow.
package session

import (
	"fmt"

	"github.com/larchlabs/forge/kvcache"
	"github.com/larchlabs/forge/model"
	"github.com/larchlabs/forge/sampler"
)

// Message is one dialog turn (spec §6 Infer.inputs: {role, content}).
// Role is carried for API fidelity but the engine itself only tokenizes
// Content — spec.md never specifies chat templating, and no prompt
// templating is applied here.
type Message struct {
	Role    string
	Content string
}

// Session is one conversational context: token history, KV cache, and
// sampling configuration (spec §3).
type Session struct {
	ID string

	cache     *kvcache.Cache
	dialogPos int
	tokens    []int32
	bounds    []int // bounds[p] == len(tokens) at dialog_pos p; bounds[0] == 0
	params    sampler.Params
	seed      uint64
}

// New creates a fresh idle session with an empty cache and dialog_pos 0
// (spec §4.3 "launch").
func New(id string, cfg model.Config, params sampler.Params, seed uint64) *Session {
	return &Session{
		ID:     id,
		cache:  kvcache.New(cfg),
		bounds: []int{0},
		params: params,
		seed:   seed,
	}
}

// Cache returns the session's owned KV cache.
func (s *Session) Cache() *kvcache.Cache { return s.cache }

// DialogPos returns the current turn counter (spec §3).
func (s *Session) DialogPos() int { return s.dialogPos }

// Tokens returns a copy of the session's token history.
func (s *Session) Tokens() []int32 { return append([]int32(nil), s.tokens...) }

// Params returns the session's current sampling configuration.
func (s *Session) Params() sampler.Params { return s.params }

// SetParams updates the session's sampling configuration, e.g. from
// per-call overrides in an Infer request.
func (s *Session) SetParams(p sampler.Params) { s.params = p }

// AppendTurn appends ids as one new dialog turn, advancing dialog_pos by
// one and recording the new turn boundary (spec §3's tokens/dialog_pos
// alignment invariant).
func (s *Session) AppendTurn(ids []int32) {
	s.tokens = append(s.tokens, ids...)
	s.dialogPos++
	s.bounds = append(s.bounds, len(s.tokens))
}

// Revert truncates the session back to dialog_pos p, restoring both the
// token history and the cache's valid prefix to that turn boundary (spec
// §3, §7 InvalidDialogPos). Fails without mutating state if p is outside
// [0, dialog_pos]. Note that bounds[p] may be one token ahead of the
// cache's actual valid length when p == dialogPos (the generation loop's
// terminal token is recorded in tokens but never fed back through
// Forward) — kvcache.Cache.Revert tolerates that by treating a no-op
// revert as success rather than an error.
func (s *Session) Revert(p int) error {
	if p < 0 || p >= len(s.bounds) {
		return fmt.Errorf("session: invalid dialog position %d (current %d)", p, s.dialogPos)
	}
	n := s.bounds[p]
	if err := s.cache.Revert(n); err != nil {
		return err
	}
	s.tokens = s.tokens[:n]
	s.bounds = s.bounds[:p+1]
	s.dialogPos = p
	return nil
}

// Fork deep-copies this session's cache and token history into a new,
// independent idle session under newID (spec §3, §4.3 fork): "Deep-copies
// the cache's valid prefix only (not the unused tail)".
func (s *Session) Fork(newID string) *Session {
	return &Session{
		ID:        newID,
		cache:     s.cache.Fork(),
		dialogPos: s.dialogPos,
		tokens:    append([]int32(nil), s.tokens...),
		bounds:    append([]int(nil), s.bounds...),
		params:    s.params,
		seed:      s.seed,
	}
}

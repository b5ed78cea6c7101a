package session

// registry.go implements spec §4.3's session manager: a bounded LRU map
// from id to Idle(session) | Busy, where Busy is represented by a nil
// map value — mirroring original_source/web-api/src/manager.rs's
// `LruCache<String, Option<Session>>` (`.take()` on borrow, `.replace()`
// on restore, asserting the slot was empty). The ordered map itself is
// github.com/wk8/go-ordered-map/v2, a direct dependency already present
// in the teacher's go.mod; golang.org/x/sync/semaphore bounds concurrent
// generation tasks exactly as runner/ollamarunner's Server.seqsSem
// bounds concurrent sequences, and github.com/google/uuid mints ids for
// anonymous sessions (Fork always uses the caller-supplied new id).
import (
	"context"
	"hash/maphash"
	"sync"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/semaphore"

	"github.com/larchlabs/forge/model"
	"github.com/larchlabs/forge/sampler"
	"github.com/larchlabs/forge/tokenizer"
)

// Registry is the LRU-bounded map of exclusively-held sessions (spec
// §4.3, §9). Capacity <= 0 means unbounded. MaxConcurrent bounds how many
// generation tasks may run at once, independent of the map's capacity.
type Registry struct {
	mu       sync.Mutex
	slots    *orderedmap.OrderedMap[string, *Session]
	capacity int

	weights *model.Weights
	tok     *tokenizer.Tokenizer
	sem     *semaphore.Weighted

	defaultParams sampler.Params
	seedSeq       maphash.Seed
}

// NewRegistry builds a Registry bounded to capacity idle+busy sessions
// (<=0 for unbounded) and maxConcurrent simultaneously running
// generation tasks.
func NewRegistry(weights *model.Weights, tok *tokenizer.Tokenizer, capacity, maxConcurrent int, defaultParams sampler.Params) *Registry {
	return &Registry{
		slots:         orderedmap.New[string, *Session](),
		capacity:      capacity,
		weights:       weights,
		tok:           tok,
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		defaultParams: defaultParams,
		seedSeq:       maphash.MakeSeed(),
	}
}

// Infer is spec §4.3's normative decision table:
//
//	id       dialog_pos   behavior
//	present  0            get-or-create; revert to 0; run
//	present  p > 0        require existing; revert to p; run (or restore+InvalidDialogPos)
//	absent   0            anonymous session; run only if dialog ends on a user turn
//	absent   p > 0        reject InvalidDialogPos(0)
//
// skipped reports spec §9's second open question: the dialog ended on an
// even position (an assistant turn) after appending, so generation did
// not run, but this is not itself an error.
func (r *Registry) Infer(ctx context.Context, id *string, dialogPos *int, messages []Message, overrides SampleOverrides) (ch <-chan string, skipped bool, err error) {
	pos := 0
	if dialogPos != nil {
		pos = *dialogPos
	}

	switch {
	case id != nil && pos == 0:
		return r.inferNamed(ctx, *id, 0, messages, overrides, true)
	case id != nil:
		return r.inferNamed(ctx, *id, pos, messages, overrides, false)
	case pos == 0:
		return r.inferAnonymous(ctx, messages, overrides)
	default:
		return nil, false, &Error{Kind: InvalidDialogPos, Current: 0}
	}
}

func (r *Registry) inferNamed(ctx context.Context, id string, targetPos int, messages []Message, overrides SampleOverrides, createIfMissing bool) (<-chan string, bool, error) {
	sess, err := r.borrow(id, targetPos, createIfMissing)
	if err != nil {
		return nil, false, err
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.restore(id, sess)
		return nil, false, err
	}

	inner, skipped := generate(ctx, sess, r.weights, r.tok, messages, overrides)
	if skipped {
		r.sem.Release(1)
		r.restore(id, sess)
		return closedChannel(), true, nil
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer r.sem.Release(1)
		defer r.restore(id, sess)
		for frag := range inner {
			out <- frag
		}
	}()
	return out, false, nil
}

func (r *Registry) inferAnonymous(ctx context.Context, messages []Message, overrides SampleOverrides) (<-chan string, bool, error) {
	id := uuid.NewString()
	sess := New(id, r.weights.Config, r.defaultParams, r.seedFor(id))

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, false, err
	}

	inner, skipped := generate(ctx, sess, r.weights, r.tok, messages, overrides)
	if skipped {
		r.sem.Release(1)
		return closedChannel(), true, nil
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer r.sem.Release(1)
		for frag := range inner {
			out <- frag
		}
	}()
	return out, false, nil
}

// closedChannel returns an already-closed, empty string channel — spec
// §4.3's "return an empty channel" for an infer call that appended
// messages but ended up skipping generation.
func closedChannel() <-chan string {
	ch := make(chan string)
	close(ch)
	return ch
}

// borrow takes the idle session for id (creating it when createIfMissing
// and absent), reverts it to targetPos, and marks its slot Busy. On a
// revert failure the session is restored to idle before the error is
// returned, so subsequent calls observe a consistent state (spec §7).
func (r *Registry) borrow(id string, targetPos int, createIfMissing bool) (*Session, error) {
	r.mu.Lock()
	sess, present := r.slots.Get(id)
	switch {
	case present && sess == nil:
		r.mu.Unlock()
		return nil, &Error{Kind: SessionBusy}
	case !present && createIfMissing:
		sess = New(id, r.weights.Config, r.defaultParams, r.seedFor(id))
		r.slots.Set(id, sess)
		r.evictLocked()
	case !present:
		r.mu.Unlock()
		return nil, &Error{Kind: SessionNotFound}
	}
	r.slots.Delete(id)
	r.slots.Set(id, nil) // mark Busy
	r.mu.Unlock()

	if targetPos == 0 {
		_ = sess.Revert(0) // bounds[0] == 0 always, cannot fail
		return sess, nil
	}

	if err := sess.Revert(targetPos); err != nil {
		current := sess.DialogPos()
		r.restore(id, sess)
		return nil, &Error{Kind: InvalidDialogPos, Current: current}
	}
	return sess, nil
}

// restore returns sess to its idle slot, only if the slot is still
// present and still marked Busy (nil) — mirroring
// original_source/web-api/src/manager.rs's `assert!(option.replace(...).
// is_none())`. A session dropped while borrowed, and possibly recreated
// under the same id by the time this runs, must not have its fresh idle
// session clobbered by the stale one this call is trying to restore.
func (r *Registry) restore(id string, sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, present := r.slots.Get(id); present && cur == nil {
		r.slots.Delete(id)
		r.slots.Set(id, sess)
	}
}

// Fork deep-copies src's cache prefix and session state into newID
// (spec §4.3 fork). src must be idle; newID must not already exist.
func (r *Registry) Fork(srcID, newID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, present := r.slots.Get(newID); present {
		return &Error{Kind: SessionDuplicate}
	}

	src, present := r.slots.Get(srcID)
	if !present {
		return &Error{Kind: SessionNotFound}
	}
	if src == nil {
		return &Error{Kind: SessionBusy}
	}

	r.slots.Set(newID, src.Fork(newID))
	r.evictLocked()
	return nil
}

// Drop removes id from the registry; it is an error if id is absent
// (spec §4.3 drop). Dropping a busy session is permitted — restore then
// discards it silently once the task finishes.
func (r *Registry) Drop(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, present := r.slots.Delete(id); !present {
		return &Error{Kind: SessionNotFound}
	}
	return nil
}

// Len reports the number of tracked (idle or busy) sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots.Len()
}

// evictLocked drops the oldest idle session once the registry exceeds
// capacity (spec §4.3 fork: "evicted id is silently dropped"). Busy
// slots are never evicted; if every slot is busy, capacity is
// temporarily exceeded rather than evicting a session mid-use.
func (r *Registry) evictLocked() {
	if r.capacity <= 0 {
		return
	}
	for r.slots.Len() > r.capacity {
		victim, ok := "", false
		for p := r.slots.Oldest(); p != nil; p = p.Next() {
			if p.Value != nil {
				victim, ok = p.Key, true
				break
			}
		}
		if !ok {
			return
		}
		r.slots.Delete(victim)
	}
}

func (r *Registry) seedFor(id string) uint64 {
	var h maphash.Hash
	h.SetSeed(r.seedSeq)
	h.WriteString(id)
	return h.Sum64()
}

package session

// generate.go implements spec §4.3's generation loop: append new turns,
// verify dialog_pos ends on a user turn, prefill, then one forward pass
// per produced token until eos_token, max_seq_len, or cancellation.
//
// Grounded on runner/ollamarunner/runner_compute.go's computeBatch
// (sample -> decode -> append to pending -> send, looped once per batch)
// and original_source/web-api/src/manager.rs's `infer` async fn (extend
// with new messages, then gate the whole run on `dialog_pos() % 2 == 1`
// — spec §9's second open question, preserved here as Generate's
// `skipped` return value rather than a silent no-op).
import (
	"context"

	"github.com/larchlabs/forge/model"
	"github.com/larchlabs/forge/sampler"
	"github.com/larchlabs/forge/tokenizer"
	"github.com/larchlabs/forge/transformer"
)

// SampleOverrides carries per-call sampling overrides from an Infer
// request (spec §4.3 "sample overrides"); a nil field leaves the
// session's existing parameter unchanged.
type SampleOverrides struct {
	Temperature *float32
	TopK        *int
	TopP        *float32
}

func (o SampleOverrides) apply(sess *Session) {
	p := sess.Params()
	if o.Temperature != nil {
		p.Temperature = *o.Temperature
	}
	if o.TopK != nil {
		p.TopK = *o.TopK
	}
	if o.TopP != nil {
		p.TopP = *o.TopP
	}
	sess.SetParams(p)
}

// generate appends messages as new dialog turns, and — only if the
// dialog now ends on a user turn (spec §9 second open question) — runs
// the streaming generation loop in a background goroutine, returning a
// channel of decoded fragments. skipped is true when generation did not
// run at all (an even dialog_pos after appending), distinguishing "ran
// but produced nothing" from "skipped by design" per spec §9.
func generate(ctx context.Context, sess *Session, w *model.Weights, tok *tokenizer.Tokenizer, messages []Message, overrides SampleOverrides) (ch <-chan string, skipped bool) {
	overrides.apply(sess)

	for _, msg := range messages {
		addBOS := len(sess.Tokens()) == 0
		ids := tok.Encode(msg.Content, addBOS, false)
		sess.AppendTurn(ids)
	}

	if sess.DialogPos()%2 == 0 {
		return nil, true
	}

	out := make(chan string)
	go func() {
		defer close(out)
		runLoop(ctx, sess, w, tok, out)
	}()
	return out, false
}

// runLoop is the per-task streaming decode loop of spec §4.3 step 4:
// prefill over every new token, sample, emit, then feed the sampled
// token back as a length-1 forward pass until eos_token, cancellation,
// or max_seq_len.
func runLoop(ctx context.Context, sess *Session, w *model.Weights, tok *tokenizer.Tokenizer, out chan<- string) {
	cfg := w.Config
	samp := sampler.New(sess.Params(), sess.seed)

	// cache.Len() may trail len(sess.tokens) by the prior turn's terminal
	// token (see the loop below: it breaks before feeding it forward), so
	// this re-prefills it here rather than assuming the cache already has
	// every token this session's ever seen.
	pos := sess.cache.Len()
	input := sess.tokens[pos:]
	if len(input) == 0 {
		// spec §8: a seq_len == 0 forward pass is a no-op.
		return
	}

	reply := make([]int32, 0, 16)
	for {
		logits := transformer.Forward(w, input, []transformer.Query{{
			Cache:     sess.cache,
			Pos:       pos,
			SeqLen:    len(input),
			NumDecode: 1,
		}})
		token := samp.Sample(logits.Row(0).Floats())
		reply = append(reply, token)

		if !sendFragment(ctx, out, tok.Decode([]int32{token})) {
			break // consumer cancelled (spec §5 suspension point (a), §7)
		}
		if token == cfg.EOSToken {
			break
		}

		pos = sess.cache.Len()
		if pos >= cfg.MaxSeqLen {
			break
		}
		input = []int32{token}
	}

	sess.AppendTurn(reply)
}

// sendFragment sends frag on out, reporting false if ctx is done first —
// the Go realization of spec §5/§7's "if the consumer drops the channel
// receiver, the send fails ... treated as cancellation, not error".
func sendFragment(ctx context.Context, out chan<- string, frag string) bool {
	select {
	case out <- frag:
		return true
	case <-ctx.Done():
		return false
	}
}

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/larchlabs/forge/api"
	"github.com/larchlabs/forge/model"
	"github.com/larchlabs/forge/sampler"
	"github.com/larchlabs/forge/session"
	"github.com/larchlabs/forge/tensor"
	"github.com/larchlabs/forge/tokenizer"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("\"<unk>\"\n\"<s>\"\n\"</s>\"\n")
	for b := 0; b < 256; b++ {
		const hex = "0123456789ABCDEF"
		sb.WriteString("\"<0x" + string([]byte{hex[b>>4], hex[b&0xF]}) + ">\"\n")
	}
	vocab, err := tokenizer.ReadVocabulary(strings.NewReader(sb.String()))
	require.NoError(t, err)

	cfg := model.Config{
		NLayers: 1, D: 4, NHeads: 1, NKVHeads: 1, DInter: 4,
		MaxSeqLen: 32, Theta: 10000, Epsilon: 1e-5,
		BOSToken: 1, EOSToken: 2, VocabSize: vocab.Len(),
	}
	zeros := func(shape ...int) *tensor.View { return tensor.New(tensor.F32, shape...) }
	dkv := cfg.KVDim()
	w := &model.Weights{
		Config: cfg,
		Embed:  zeros(cfg.VocabSize, cfg.D),
		Layers: []model.Layer{{
			AttnNorm: zeros(cfg.D),
			AttnQKV:  zeros(cfg.D, cfg.D+2*dkv),
			AttnOut:  zeros(cfg.D, cfg.D),
			MLPNorm:  zeros(cfg.D),
			GateUp:   zeros(cfg.D, 2*cfg.DInter),
			MLPDown:  zeros(cfg.DInter, cfg.D),
		}},
		LMNorm: zeros(cfg.D),
		LMHead: zeros(cfg.D, cfg.VocabSize),
	}

	tok := tokenizer.New(vocab, cfg.BOSToken, cfg.EOSToken)
	reg := session.NewRegistry(w, tok, 0, 4, sampler.Params{Temperature: 0, TopK: 1})
	return New(reg, []string{"*"})
}

func TestInferStreamsNdjson(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body, _ := json.Marshal(api.InferRequest{Inputs: []api.Message{{Role: "user", Content: "hi"}}})
	resp, err := http.Post(ts.URL+"/infer", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	dec := json.NewDecoder(resp.Body)
	sawDone := false
	for {
		var frag api.Fragment
		if err := dec.Decode(&frag); err != nil {
			break
		}
		if frag.Done {
			sawDone = true
			break
		}
	}
	require.True(t, sawDone)
}

func TestDropUnknownReturns404(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body, _ := json.Marshal(api.DropRequest{SessionID: "ghost"})
	resp, err := http.Post(ts.URL+"/drop", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestForkDuplicateReturns409(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	id := "s1"
	inferBody, _ := json.Marshal(api.InferRequest{SessionID: &id, Inputs: []api.Message{{Role: "user", Content: "hi"}}})
	resp, err := http.Post(ts.URL+"/infer", "application/json", bytes.NewReader(inferBody))
	require.NoError(t, err)
	drainBody(resp)

	forkBody, _ := json.Marshal(api.ForkRequest{SessionID: "s1", NewSessionID: "s2"})
	resp, err = http.Post(ts.URL+"/fork", "application/json", bytes.NewReader(forkBody))
	require.NoError(t, err)
	drainBody(resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/fork", "application/json", bytes.NewReader(forkBody))
	require.NoError(t, err)
	drainBody(resp)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func drainBody(resp *http.Response) {
	if resp != nil {
		defer resp.Body.Close()
		dec := json.NewDecoder(resp.Body)
		for {
			var v any
			if dec.Decode(&v) != nil {
				return
			}
		}
	}
}

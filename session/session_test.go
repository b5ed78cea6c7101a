package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/larchlabs/forge/tensor"
)

func TestRevertInvariant(t *testing.T) {
	w, _ := newTestEngine(t)
	s := New("s1", w.Config, testParams(), 1)

	s.AppendTurn([]int32{1, 2, 3})
	s.AppendTurn([]int32{4, 5})
	require.Equal(t, 2, s.DialogPos())
	require.Equal(t, 5, len(s.Tokens()))
	require.Equal(t, 0, s.Cache().Len(), "AppendTurn alone never touches the cache")

	// Put cache content matching the token counts so Revert's cache
	// truncation has something real to check.
	dh := w.Config.HeadDim()
	k := tensor.New(tensor.F16, w.Config.NKVHeads, 5, dh)
	v := tensor.New(tensor.F16, w.Config.NKVHeads, 5, dh)
	s.cache.Put(0, 0, 5, k, v)
	require.Equal(t, 5, s.Cache().Len())

	require.NoError(t, s.Revert(1))
	require.Equal(t, 1, s.DialogPos())
	require.Equal(t, 3, len(s.Tokens()))
	require.Equal(t, 3, s.Cache().Len())

	err := s.Revert(5)
	require.Error(t, err)
}

func TestForkIndependence(t *testing.T) {
	w, _ := newTestEngine(t)
	s := New("s1", w.Config, testParams(), 1)
	s.AppendTurn([]int32{1, 2, 3})

	fork := s.Fork("s2")
	require.Equal(t, s.DialogPos(), fork.DialogPos())
	require.Equal(t, s.Tokens(), fork.Tokens())

	fork.AppendTurn([]int32{9, 9})
	require.NotEqual(t, s.DialogPos(), fork.DialogPos())
	require.Equal(t, 3, len(s.Tokens()), "forking must not mutate the source session")
}

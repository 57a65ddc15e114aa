package condition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompile_NodeArgsOnly(t *testing.T) {
	pred, err := Compile(`node_args.status == "ready"`, nil)
	require.NoError(t, err)

	fired, err := pred(context.Background(), nil, map[string]any{"status": "ready"})
	require.NoError(t, err)
	require.True(t, fired)

	fired, err = pred(context.Background(), nil, map[string]any{"status": "pending"})
	require.NoError(t, err)
	require.False(t, fired)
}

func TestCompile_ReadsResults(t *testing.T) {
	pred, err := Compile(`results.score > 50`, map[string]string{"score": "mem"})
	require.NoError(t, err)

	pool := storagePoolWithResult(t, "score", 75)
	fired, err := pred(context.Background(), pool, nil)
	require.NoError(t, err)
	require.True(t, fired)
}

func TestCompile_InvalidExpression(t *testing.T) {
	_, err := Compile(`node_args. .`, nil)
	require.Error(t, err)
}

func TestCompile_NonBoolResultErrors(t *testing.T) {
	pred, err := Compile(`node_args`, nil)
	require.NoError(t, err)

	_, err = pred(context.Background(), nil, 42)
	require.Error(t, err)
}

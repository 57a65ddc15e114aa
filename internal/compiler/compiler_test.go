package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/internal/storage"
)

const fullFlowYAML = `
flow: onboarding
nodes:
  - name: fetch
    kind: task
    storage: postgres
  - name: enrich
    kind: task
  - name: notify
    kind: subflow
edges:
  - from: []
    to: [fetch]
  - from: [fetch]
    to: [enrich]
    condition: 'results.fetch != null'
  - from: [enrich]
    to: [notify]
propagation:
  node_args: true
  parent: [notify]
  nowait: [notify]
failures:
  - nodes: [fetch]
    fallback: [enrich]
  - nodes: [enrich]
    drop: true
`

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "onboarding.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullFlowYAML), 0o644))

	reg, err := CompileFile(path)
	require.NoError(t, err)

	require.True(t, reg.HasFlow("onboarding"))
	require.True(t, reg.IsSubflow("notify"))

	edges := reg.EdgeTable("onboarding")
	require.Len(t, edges, 3)
	require.True(t, edges[0].IsStart())

	cfg := reg.FlowConfig("onboarding")
	require.True(t, cfg.PropagateNodeArgs.All)
	require.True(t, cfg.NowaitNodes["notify"])
	require.False(t, cfg.PropagateParent.All)

	root := reg.FailureNodeRoot("onboarding")
	require.NotNil(t, root["fetch"])
	require.Equal(t, []string{"enrich"}, root["fetch"].Fallback)
	require.True(t, root["enrich"].Drop)

	// The second edge's condition reads results.fetch, which requires
	// a real pool lookup; an empty id mapping (nothing finished yet)
	// must surface as an error rather than a false fire.
	emptyPool := storage.NewScopedPool(storage.NewPool(nil), "onboarding", nil)
	fired, err := edges[1].Condition(context.Background(), emptyPool, nil)
	require.Error(t, err, "no id mapping for fetch means the lookup itself must fail, not the eval")
	require.False(t, fired)
}

func TestCompileFile_MissingFlowName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes: []\nedges: []\n"), 0o644))

	_, err := CompileFile(path)
	require.Error(t, err)
}

func TestCompileFile_UnknownNodeKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	doc := "flow: x\nnodes:\n  - name: a\n    kind: spaceship\nedges: []\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := CompileFile(path)
	require.Error(t, err)
}

func TestCompileFile_FailureMissingFallbackOrDrop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	doc := "flow: x\nnodes: []\nedges: []\nfailures:\n  - nodes: [a]\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := CompileFile(path)
	require.Error(t, err)
}

// TestCompileDir checks that a whole directory of flow documents ends
// up in one shared Registry, with non-YAML files skipped.
func TestCompileDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_second.yaml"), []byte(`
flow: second
nodes: [{name: only}]
edges:
  - from: []
    to: [only]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_first.yaml"), []byte(`
flow: first
nodes: [{name: only}]
edges:
  - from: []
    to: [only]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not yaml"), 0o644))

	reg, err := CompileDir(dir)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"first", "second"}, reg.FlowNames())
}

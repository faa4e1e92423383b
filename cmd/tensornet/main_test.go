package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensornet/internal/serialization"
)

const testJob = `
tensors:
  A: {dims: [2, 2], values: [1, 2, 3, 4]}
  B: {dims: [2, 2], values: [0, 1, 1, 0]}
operations:
  - {op: product, target: "C(i,k)", sources: ["A(i,j)", "B(j,k)"]}
outputs: [C]
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunAndInspect(t *testing.T) {
	dir := t.TempDir()
	jobPath := filepath.Join(dir, "swap.yaml")
	require.NoError(t, os.WriteFile(jobPath, []byte(testJob), 0o600))
	results := filepath.Join(dir, "results")

	out, err := execute(t, "run", "--output", results, "--strategy", "chain", jobPath)
	require.NoError(t, err)
	assert.Equal(t, "swap\tC\t[2 2]\tdense\tnnz=4\tnorm=5.477225575051661\n", out)

	stored := filepath.Join(results, "swap", "C.btns")
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	c, err := serialization.ReadTensor(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 4, 3}, c.Values())

	out, err = execute(t, "inspect", stored)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "tensor\tdims=[2 2]\tdense\tnnz=4\tfactor=1"), out)

	out, err = execute(t, "inspect", "--store", results, "swap/C.btns")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "tensor\t"), out)
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	jobPath := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(jobPath, []byte(testJob), 0o600))

	_, err := execute(t, "run", "--strategy", "greedy", jobPath)
	assert.Error(t, err)

	_, err = execute(t, "run", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = execute(t, "run")
	assert.Error(t, err)
}

func TestInspectCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.btns")
	require.NoError(t, os.WriteFile(path, []byte("BTNS"), 0o600))
	_, err := execute(t, "inspect", path)
	assert.ErrorIs(t, err, serialization.ErrCorrupt)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "tensornet "+version+"\n", out)
}

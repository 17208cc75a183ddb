// Test Type: Integration Test
// Description: Runs a small operation list through the synthfs pipeline on a temp dir

package executor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthfsExecutor_Integration(t *testing.T) {
	root := t.TempDir()
	exec := executor.NewSynthfsExecutor(root)

	ops := executor.WithParents(root, []executor.Operation{
		{Type: executor.OperationWriteFile, Target: filepath.Join(root, "index.html"), Content: []byte("<!doctype html>")},
		{Type: executor.OperationWriteFile, Target: filepath.Join(root, "js", "main.js"), Content: []byte("export {}"), Mode: 0644},
	})
	require.NoError(t, exec.Execute(context.Background(), ops))

	content, err := os.ReadFile(filepath.Join(root, "js", "main.js"))
	require.NoError(t, err)
	assert.Equal(t, "export {}", string(content))

	content, err = os.ReadFile(filepath.Join(root, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<!doctype html>", string(content))
}

func TestSynthfsExecutor_RefusesOutsideRoot(t *testing.T) {
	root := t.TempDir()
	exec := executor.NewSynthfsExecutor(filepath.Join(root, "out"))

	err := exec.Execute(context.Background(), []executor.Operation{
		{Type: executor.OperationWriteFile, Target: filepath.Join(root, "elsewhere.txt")},
	})
	assert.True(t, errors.IsErrorCode(err, errors.ErrInternal))
	_, statErr := os.Stat(filepath.Join(root, "elsewhere.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

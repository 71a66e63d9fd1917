package publish

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"larkpub/internal/utils"
)

func writeTestFile(path, content string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// seedTree writes slash-relative files under root and returns their
// absolute paths keyed by relative path.
func seedTree(t *testing.T, root string, files map[string]string) map[string]string {
	t.Helper()
	out := make(map[string]string, len(files))
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, writeTestFile(full, content))
		out[rel] = full
	}
	return out
}

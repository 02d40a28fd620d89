package devenv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	plain, err := ResolvePath("out/menu.json")
	require.NoError(t, err)
	require.Equal(t, "out/menu.json", plain)

	resolved, err := ResolvePath("<dev_state>/pagecache")
	require.NoError(t, err)

	root, err := GetWorkspaceRoot()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "dev", ".state", "pagecache"), resolved)
}

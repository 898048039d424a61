package scratch

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCreatesAndLocks(t *testing.T) {
	base := filepath.Join(t.TempDir(), "work")

	root, err := NewRoot(base)
	require.NoError(t, err)
	require.Equal(t, base, root.Dir())

	dir, err := root.MkDir("ingest_clip_")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(filepath.Base(dir), "ingest_clip_"))
	require.Equal(t, base, filepath.Dir(dir))

	// A second owner must be refused while the lock is held.
	_, err = NewRoot(base)
	require.Error(t, err)

	require.NoError(t, root.Close())

	// After release the area can be reacquired.
	again, err := NewRoot(base)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

package artifact

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	return store
}

func TestCreateAndResolve(t *testing.T) {
	store := newTestStore(t)

	h, err := store.Create([]byte("wav-bytes"), "wav")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(h.Name, ".wav"))

	data, err := os.ReadFile(h.Path())
	require.NoError(t, err)
	assert.Equal(t, []byte("wav-bytes"), data)

	resolved, err := store.Resolve(h.Name)
	require.NoError(t, err)
	assert.Equal(t, h.Path(), resolved.Path())
}

func TestResolveRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Resolve("../../etc/passwd")
	assert.Error(t, err, "names outside the output directory must not resolve")

	_, err = store.Resolve("no-such-file.wav")
	assert.Error(t, err)
}

func TestScheduleDelete(t *testing.T) {
	store := newTestStore(t)

	h, err := store.Create([]byte("data"), "wav")
	require.NoError(t, err)

	store.ScheduleDelete(h, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(h.Path())
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond, "artifact should be removed after the delay")
}

func TestScheduleDeleteMissingFileIsQuiet(t *testing.T) {
	store := newTestStore(t)

	h, err := store.Create([]byte("data"), "wav")
	require.NoError(t, err)
	require.NoError(t, os.Remove(h.Path()))

	// Must not panic when the file is already gone.
	store.ScheduleDelete(h, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
}

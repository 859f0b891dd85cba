package storage

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	written, err := store.SaveStream("A1B2C3D4/pan_card.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), written)

	file, err := store.Open("A1B2C3D4/pan_card.pdf")
	require.NoError(t, err)
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	assert.Equal(t, "%PDF-1.4", string(content))

	require.NoError(t, store.Delete("A1B2C3D4/pan_card.pdf"))
	require.NoError(t, store.Delete("A1B2C3D4/pan_card.pdf"))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../secret.txt", "A1B2C3D4/../../etc/passwd", "/etc/passwd", "..", ""} {
		_, err := store.Resolve(name)
		assert.ErrorIs(t, err, ErrOutsideRoot, name)
	}

	path, err := store.Resolve("A1B2C3D4/../A1B2C3D4/photo.png")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "A1B2C3D4/photo.png"))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("exports/old.csv", []byte("a"))
	require.NoError(t, err)
	_, err = store.Save("exports/new.csv", []byte("b"))
	require.NoError(t, err)

	oldPath, err := store.Resolve("exports/old.csv")
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	deleted, err := store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"exports/old.csv"}, deleted)
}

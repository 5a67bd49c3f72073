package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ref, err := store.SaveStream("submissions/s1/answer.txt", strings.NewReader("42"))
	require.NoError(t, err)
	assert.Equal(t, "submissions/s1/answer.txt", ref)

	f, err := store.Open(ref)
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "42", string(body))

	require.NoError(t, store.Delete(ref))
	_, err = store.Open(ref)
	assert.Error(t, err)
	assert.NoError(t, store.Delete(ref))
}

func TestLocalStorageRejectsEscapes(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("../outside.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidRef)
	_, err = store.Open("/etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidRef)
}

package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useMemoryKeyring(t *testing.T) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	prev := open
	open = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { open = prev })
}

func TestSetGetDelete(t *testing.T) {
	useMemoryKeyring(t)

	require.NoError(t, Set("imap:me@example.com", "app-password"))

	got, err := Get("imap:me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "app-password", got)

	require.NoError(t, Delete("imap:me@example.com"))

	_, err = Get("imap:me@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetMissing(t *testing.T) {
	useMemoryKeyring(t)

	_, err := Get("smtp:nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

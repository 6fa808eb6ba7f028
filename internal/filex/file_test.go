package filex

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func collect(t *testing.T, path string, size int64) [][]byte {
	t.Helper()
	var parts [][]byte
	require.NoError(t, EachPart(path, size, func(p []byte) error {
		parts = append(parts, append([]byte(nil), p...))
		return nil
	}))
	return parts
}

func TestEachPart_Splits(t *testing.T) {
	p := writeTemp(t, []byte("abcdefghij"))

	require.Equal(t, [][]byte{[]byte("abcd"), []byte("efgh"), []byte("ij")}, collect(t, p, 4))
	require.Equal(t, [][]byte{[]byte("abcde"), []byte("fghij")}, collect(t, p, 5))
	require.Equal(t, [][]byte{[]byte("abcdefghij")}, collect(t, p, 100))
}

func TestEachPart_EmptyFile(t *testing.T) {
	require.Empty(t, collect(t, writeTemp(t, nil), 4))
}

func TestEachPart_Errors(t *testing.T) {
	p := writeTemp(t, []byte("abc"))

	require.Error(t, EachPart(p, 0, func([]byte) error { return nil }))
	require.Error(t, EachPart(filepath.Join(t.TempDir(), "missing"), 4, func([]byte) error { return nil }))

	stop := errors.New("stop")
	require.ErrorIs(t, EachPart(p, 1, func([]byte) error { return stop }), stop)
}

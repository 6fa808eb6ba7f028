package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dmitrijs2005/driveingest/internal/netx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu        sync.Mutex
	split     int64
	allow     bool
	parts     [][]byte
	finished  bool
	aborted   bool
	failPart  int
	preflight preflightRequest
}

func (g *fakeGateway) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/drive/files/multipart/preflight", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&g.preflight))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(preflightResponse{
			AllowUpload: g.allow, MinSplitSize: g.split, MaxSplitSize: g.split, SessionID: "sess",
		})
	})
	mux.HandleFunc("/api/drive/files/multipart/partial-upload", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		assert.Equal(t, "Bearer sess", r.Header.Get("Authorization"))
		if g.failPart > 0 && len(g.parts)+1 == g.failPart {
			w.Header().Set("X-ErrorStatus", "StorageFailure")
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		b, _ := io.ReadAll(r.Body)
		g.parts = append(g.parts, b)
		var total int64
		for _, p := range g.parts {
			total += int64(len(p))
		}
		_ = json.NewEncoder(w).Encode(partResponse{PartNumber: int32(len(g.parts)), BytesReceived: total})
	})
	mux.HandleFunc("/api/drive/files/multipart/finish-upload", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.finished = true
		_ = json.NewEncoder(w).Encode(File{ID: "file1", Name: *g.preflight.Name, Size: 10})
	})
	mux.HandleFunc("/api/drive/files/multipart/abort", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.aborted = true
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestUpload_SendsPartsAndFinishes(t *testing.T) {
	g := &fakeGateway{split: 4, allow: true}
	srv := httptest.NewServer(g.handler(t))
	defer srv.Close()

	var progress bytes.Buffer
	c := New(srv.URL+"/", "tok", srv.Client(), &progress)

	path := writeFile(t, []byte("0123456789"))
	file, err := c.Upload(context.Background(), path, Options{Comment: "hi", FolderID: "f1"})
	require.NoError(t, err)

	assert.Equal(t, "file1", file.ID)
	assert.Equal(t, "photo.bin", file.Name)
	assert.Equal(t, [][]byte{[]byte("0123"), []byte("4567"), []byte("89")}, g.parts)
	assert.True(t, g.finished)
	assert.False(t, g.aborted)

	assert.Equal(t, "tok", g.preflight.I)
	assert.Equal(t, int64(10), g.preflight.ContentLength)
	require.NotNil(t, g.preflight.FolderID)
	assert.Equal(t, "f1", *g.preflight.FolderID)
	assert.Contains(t, progress.String(), "part 3: 10/10 bytes")
}

func TestUpload_RejectedByPreflight(t *testing.T) {
	g := &fakeGateway{split: 4, allow: false}
	srv := httptest.NewServer(g.handler(t))
	defer srv.Close()

	c := New(srv.URL, "tok", srv.Client(), nil)
	_, err := c.Upload(context.Background(), writeFile(t, []byte("abc")), Options{Name: "x"})

	require.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, g.parts)
	assert.False(t, g.aborted)
}

func TestUpload_FailedPartAborts(t *testing.T) {
	g := &fakeGateway{split: 4, allow: true, failPart: 2}
	srv := httptest.NewServer(g.handler(t))
	defer srv.Close()

	c := New(srv.URL, "tok", srv.Client(), nil)
	_, err := c.Upload(context.Background(), writeFile(t, []byte("0123456789")), Options{})

	var se *netx.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, "StorageFailure", se.Reason)
	assert.True(t, g.aborted)
	assert.False(t, g.finished)
}

func TestUpload_MissingFile(t *testing.T) {
	c := New("http://127.0.0.1:1", "tok", nil, nil)
	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	require.Error(t, err)
}

func TestPromptCredential(t *testing.T) {
	origRead, origTerm := readPassword, isTerminal
	t.Cleanup(func() { readPassword, isTerminal = origRead, origTerm })

	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte(" secret \n"), nil }

	var out bytes.Buffer
	cred, err := PromptCredential(&out)
	require.NoError(t, err)
	assert.Equal(t, "secret", cred)
	assert.Contains(t, out.String(), "Enter credential")

	isTerminal = func(int) bool { return false }
	_, err = PromptCredential(&out)
	require.Error(t, err)
}

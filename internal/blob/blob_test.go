package blob

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutGetDelete(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	name, err := s.Put("photo.PNG", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".png"), "extension is kept, lowercased")
	assert.NotContains(t, name, "photo", "the client name never becomes the stored name")

	data, err := s.Get(name)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	require.NoError(t, s.Delete(name))
	assert.ErrorIs(t, s.Delete(name), ErrNotFound)
	_, err = s.Get(name)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorePut_UniqueNames(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	a, err := s.Put("same.txt", []byte("one"))
	require.NoError(t, err)
	b, err := s.Put("same.txt", []byte("two"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestStorePut_RejectsEmpty(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Put("empty.bin", nil)
	assert.Error(t, err)
}

func TestStoreGet_RejectsTraversal(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../secret", "a/b", ".hidden", ""} {
		_, err := s.Get(name)
		assert.ErrorIs(t, err, ErrNotFound, "name %q", name)
	}
}

func TestHTTPUploadAndServe(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	h := NewHandler(s)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/blobs", h.Upload)
	mux.HandleFunc("/blobs/", h.Serve)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/blobs", bytes.NewReader([]byte("payload")))
	require.NoError(t, err)
	req.Header.Set("X-Blob-Name", "notes.txt")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)

	var out UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	assert.True(t, strings.HasPrefix(out.URL, "/blobs/"))

	resp, err = http.Get(srv.URL + out.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))

	resp, err = http.Get(srv.URL + "/blobs/missing.bin")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

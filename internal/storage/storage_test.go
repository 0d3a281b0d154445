package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func newStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "images"), "images")
	require.NoError(t, err)
	return store
}

func TestLocalStore_UploadAndDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	upload := &Upload{Filename: "avatar.PNG", Body: bytes.NewReader(pngHeader)}
	name, err := store.Upload(ctx, upload)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".png"))

	stored, err := os.ReadFile(filepath.Join(store.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, stored)

	ref := store.URL("http://localhost:8080/", name)
	assert.Equal(t, "http://localhost:8080/images/"+name, ref)

	require.NoError(t, store.Delete(ctx, ref))
	_, err = os.Stat(filepath.Join(store.Dir(), name))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStore_DeleteMissingFileIsNoop(t *testing.T) {
	store := newStore(t)

	assert.NoError(t, store.Delete(context.Background(), "http://host/images/nope.png"))
	assert.NoError(t, store.Delete(context.Background(), ""))
}

func TestDetectImage(t *testing.T) {
	upload := &Upload{Filename: "a.png", Body: bytes.NewReader(pngHeader)}

	require.NoError(t, DetectImage(upload))
	assert.Equal(t, "image/png", upload.ContentType)

	rest, err := io.ReadAll(upload.Body)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, rest, "sniffed bytes are put back")
}

func TestDetectImage_RejectsText(t *testing.T) {
	upload := &Upload{Filename: "a.png", Body: strings.NewReader("definitely not an image")}

	assert.ErrorIs(t, DetectImage(upload), ErrNotImage)
	assert.ErrorIs(t, DetectImage(nil), ErrNotImage)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "abc.png", FileName("https://host:8080/images/abc.png"))
	assert.Equal(t, "abc.png", FileName("/images/abc.png"))
	assert.Equal(t, "abc.png", FileName("abc.png"))
	assert.Equal(t, "", FileName(""))
	assert.Equal(t, "", FileName("https://host/"))
}

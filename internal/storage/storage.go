// Package storage keeps the files uploaded with accounts.
//
// The service only needs two things from it: an upload that returns a
// stable file name, and a delete that accepts the public reference built
// from that name. LocalStore keeps files on disk and the router serves the
// directory statically.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen is how much of an upload is read to detect its type.
const sniffLen = 3072

// ErrNotImage is returned by DetectImage for non-image payloads.
var ErrNotImage = errors.New("storage: upload is not an image")

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Store persists uploads and removes them by reference.
type Store interface {
	// Upload stores the payload and returns the generated file name.
	Upload(ctx context.Context, u *Upload) (string, error)

	// Delete removes the file a reference points to. A missing file is
	// not an error.
	Delete(ctx context.Context, reference string) error

	// URL builds the public reference of a stored file.
	URL(baseURL, fileName string) string
}

// DetectImage sniffs the first bytes of u, records the detected content
// type and rejects anything that is not an image. The bytes read are put
// back in front of Body.
func DetectImage(u *Upload) error {
	if u == nil || u.Body == nil {
		return ErrNotImage
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(u.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("storage: read upload: %w", err)
	}
	head = head[:n]
	u.Body = io.MultiReader(bytes.NewReader(head), u.Body)

	mime := mimetype.Detect(head)
	if !strings.HasPrefix(mime.String(), "image/") {
		return ErrNotImage
	}

	u.ContentType = mime.String()
	return nil
}

// FileName extracts the stored file name from a reference URL or path.
func FileName(reference string) string {
	p := reference
	if u, err := url.Parse(reference); err == nil && u.Path != "" {
		p = u.Path
	}

	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// LocalStore keeps uploads in a directory on disk.
type LocalStore struct {
	dir        string
	publicPath string
}

// NewLocalStore creates dir if needed. publicPath is the URL prefix the
// directory is served under, e.g. "/images".
func NewLocalStore(dir, publicPath string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}

	return &LocalStore{
		dir:        dir,
		publicPath: "/" + strings.Trim(publicPath, "/"),
	}, nil
}

// Dir returns the directory files are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// PublicPath returns the URL prefix files are served under.
func (s *LocalStore) PublicPath() string {
	return s.publicPath
}

func (s *LocalStore) Upload(ctx context.Context, u *Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + extension(u)
	target := filepath.Join(s.dir, name)

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: create file: %w", err)
	}

	if _, err := io.Copy(f, u.Body); err != nil {
		f.Close()
		os.Remove(target)
		return "", fmt.Errorf("storage: write file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("storage: close file: %w", err)
	}

	return name, nil
}

func (s *LocalStore) Delete(ctx context.Context, reference string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := FileName(reference)
	if name == "" {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}

func (s *LocalStore) URL(baseURL, fileName string) string {
	return strings.TrimRight(baseURL, "/") + s.publicPath + "/" + fileName
}

// extension prefers the sniffed type, then the client's file name.
func extension(u *Upload) string {
	if u.ContentType != "" {
		if ext := mimetype.Lookup(u.ContentType); ext != nil {
			return ext.Extension()
		}
	}
	return strings.ToLower(filepath.Ext(u.Filename))
}

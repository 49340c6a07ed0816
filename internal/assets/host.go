// Package assets uploads listing and profile images to an asset host and keeps
// images that could not be uploaded yet in a local spool.
package assets

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/AnshRaj112/thriftit-backend/internal/errs"
)

const (
	ItemsFolder    = "thrift-it/items"
	ProfilesFolder = "thrift-it/profiles"
)

// Object is one upload body.
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Options place the asset on the host. An empty PublicID lets the host pick one.
type Options struct {
	Folder    string
	PublicID  string
	Overwrite bool
}

// Asset is an uploaded file.
type Asset struct {
	URL      string
	PublicID string
}

// Host stores assets and serves them at a public URL.
type Host interface {
	Upload(ctx context.Context, obj Object, opts Options) (Asset, error)
	Delete(ctx context.Context, publicID string) error
}

// Source is an image waiting to be uploaded.
type Source struct {
	Name string
	Data []byte
}

// ContentType sniffs the data and rejects anything that is not an image.
func (s Source) ContentType() (string, error) {
	if len(s.Data) == 0 {
		return "", fmt.Errorf("%s: empty image: %w", s.Name, errs.ErrValidation)
	}
	mt := mimetype.Detect(s.Data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%s: %s is not an image: %w", s.Name, mt.String(), errs.ErrValidation)
	}
	return mt.String(), nil
}

// Extension returns the file extension matching the sniffed content, e.g. ".jpg".
func (s Source) Extension() string {
	return mimetype.Detect(s.Data).Extension()
}

func objectKey(opts Options, id, ext string) string {
	if opts.PublicID != "" {
		id = opts.PublicID
	}
	key := id + ext
	if opts.Folder != "" {
		key = strings.TrimSuffix(opts.Folder, "/") + "/" + key
	}
	return key
}

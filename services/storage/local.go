package storagesvc

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Shiv1431/MedAR/core"
)

type localUploader struct {
	root    string
	baseURL string
}

var _ core.Uploader = (*localUploader)(nil)

// NewLocalUploader stores files on the local disk under conf.Media.Root
// and serves them back under conf.Media.BaseURL.
func NewLocalUploader(conf *core.Config) (core.Uploader, error) {
	if err := os.MkdirAll(conf.Media.Root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating media root")
	}
	return &localUploader{
		root:    conf.Media.Root,
		baseURL: strings.TrimRight(conf.Media.BaseURL, "/"),
	}, nil
}

func (u *localUploader) Upload(filename string, content io.Reader) (string, error) {
	// keep the extension, randomize the rest
	name := uuid.New().String() + strings.ToLower(filepath.Ext(filename))

	f, err := os.Create(filepath.Join(u.root, name))
	if err != nil {
		return "", errors.Wrap(err, "creating media file")
	}
	defer f.Close()

	if _, err = io.Copy(f, content); err != nil {
		return "", errors.Wrap(err, "writing media file")
	}
	return u.baseURL + "/" + name, nil
}

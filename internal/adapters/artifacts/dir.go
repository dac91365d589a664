package artifacts

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	perr "arledger/internal/platform/errors"
	"arledger/internal/services/dunning/domain"
)

const fileScheme = "file://"

// Dir implements domain.ArtifactStore on a local directory, refs look like file://key
type Dir struct {
	root string
}

var _ domain.ArtifactStore = (*Dir)(nil)

// NewDir creates root when missing
func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, perr.InvalidArgf("artifacts: empty directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "artifacts: create %s", root)
	}
	return &Dir{root: root}, nil
}

// Put writes body atomically under key
func (d *Dir) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	p, rel, err := d.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnavailable, "artifacts: mkdir for %s", key)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnavailable, "artifacts: write %s", key)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return "", perr.Wrapf(err, perr.ErrorCodeUnavailable, "artifacts: rename %s", key)
	}
	return fileScheme + rel, nil
}

// Get reads the file behind ref
func (d *Dir) Get(_ context.Context, ref string) ([]byte, error) {
	key, ok := strings.CutPrefix(ref, fileScheme)
	if !ok {
		return nil, perr.InvalidArgf("artifacts: ref %q is not a file ref", ref)
	}
	p, _, err := d.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, perr.NotFoundf("artifact %s not found", ref)
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "artifacts: read %s", ref)
	}
	return b, nil
}

// path keeps key inside root and returns the absolute and slash separated relative paths
func (d *Dir) path(key string) (string, string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) {
		return "", "", perr.InvalidArgf("artifacts: empty key")
	}
	rel := strings.TrimPrefix(filepath.ToSlash(clean), "/")
	return filepath.Join(d.root, clean), rel, nil
}

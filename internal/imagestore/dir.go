package imagestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Archive is where analyzed spool photos end up. Both the S3 store and the
// local directory store satisfy it.
type Archive interface {
	Put(ctx context.Context, digest, mime string, data []byte) error
	GetURL(ctx context.Context, digest, mime string) (string, error)
}

// DirStore archives photos under a fixed local directory, for deployments
// without object storage. Every path is resolved against the root with
// symlinks evaluated, so a hostile digest can never escape it.
type DirStore struct {
	absRoot string
}

func NewDirStore(root string) (*DirStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("imagestore: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("imagestore: root is not a directory")
	}
	return &DirStore{absRoot: abs}, nil
}

// Root returns the absolute archive directory.
func (d *DirStore) Root() string {
	if d == nil {
		return ""
	}
	return d.absRoot
}

func (d *DirStore) Put(ctx context.Context, digest, mime string, data []byte) error {
	if d == nil {
		return errors.New("imagestore: store is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.resolve(objectKey(digest, mime))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	// Write-then-rename keeps readers from ever seeing a half-written photo.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".spool-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// GetURL returns a file:// link to a stored photo.
func (d *DirStore) GetURL(ctx context.Context, digest, mime string) (string, error) {
	if d == nil {
		return "", errors.New("imagestore: store is nil")
	}
	p, err := d.resolve(objectKey(digest, mime))
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(p), nil
}

func (d *DirStore) resolve(key string) (string, error) {
	if key == "" {
		return "", errors.New("imagestore: empty key")
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.New("imagestore: path escapes archive root")
	}
	joined := filepath.Join(d.absRoot, clean)
	// The parent may not exist yet; confine on the lexical path and verify any
	// existing ancestor did not symlink out of the root.
	resolvedDir, err := filepath.EvalSymlinks(existingAncestor(filepath.Dir(joined)))
	if err != nil {
		return "", err
	}
	if !hasPathPrefix(resolvedDir, d.absRoot) {
		return "", fmt.Errorf("imagestore: resolved outside root (root=%s, path=%s)", d.absRoot, resolvedDir)
	}
	return joined, nil
}

func existingAncestor(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path+sep, root)
}

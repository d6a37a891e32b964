// Package blob stores template PDFs by path.
//
// Files live on an afero filesystem rooted at a base directory: the OS
// filesystem in production and an in-memory one in tests. Paths are
// confined to the base directory by afero.BasePathFs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
)

// Store is the blob storage collaborator.
type Store struct {
	fs      afero.Fs
	baseURL string
}

// New creates a store under root on fs. publicBaseURL is the externally
// reachable server address used to build file links.
func New(fs afero.Fs, root, publicBaseURL string) (*Store, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory %s: %w", root, err)
	}
	return &Store{
		fs:      afero.NewBasePathFs(fs, root),
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func clean(p string) (string, error) {
	c := strings.TrimPrefix(path.Clean("/"+p), "/")
	if c == "" {
		return "", apperrors.Validation("blob path is required")
	}
	return c, nil
}

// Upload writes data to p, replacing any existing file. The write goes to a
// temporary file first so readers never see a partial PDF.
func (s *Store) Upload(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := clean(p)
	if err != nil {
		return err
	}
	if dir := path.Dir(name); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return apperrors.Storage("upload", err)
		}
	}

	tmp := name + ".tmp-" + uuid.New().String()
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return apperrors.Storage("upload", err)
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return apperrors.Storage("upload", err)
	}
	return nil
}

// Download reads the file at p.
func (s *Store) Download(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := clean(p)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Storage("download", err)
	}
	return data, nil
}

// PublicURL returns the link the file is served at.
func (s *Store) PublicURL(p string) string {
	name, err := clean(p)
	if err != nil {
		return ""
	}
	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/files/" + strings.Join(segments, "/")
}

// Remove deletes every path given. Missing files are not an error.
func (s *Store) Remove(ctx context.Context, paths ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var errs []error
	for _, p := range paths {
		name, err := clean(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return apperrors.Storage("remove", errors.Join(errs...))
	}
	return nil
}

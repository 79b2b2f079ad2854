package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/RACOAI-Official/ems-realtime/errors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DiskFileStore keeps message attachments under a single root directory.
// Refs handed out to callers are root-relative, so the root can move
// between environments without invalidating stored messages.
type DiskFileStore struct {
	log  *slog.Logger
	root string
}

func NewDiskFileStore(log *slog.Logger, root string) (*DiskFileStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating attachment root: %w", err)
	}
	return &DiskFileStore{log: log, root: root}, nil
}

// Store writes the attachment and returns its ref and detected MIME
// type. The MIME type comes from content sniffing, never from the
// client-provided name.
func (s *DiskFileStore) Store(ctx context.Context, name string, r io.Reader) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", "", fmt.Errorf("reading attachment: %w", err)
	}
	detected := mimetype.Detect(data).String()

	now := time.Now().UTC()
	ref := filepath.Join(now.Format("2006/01"), uuid.NewString()+"-"+filepath.Base(name))

	path := filepath.Join(s.root, ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", "", fmt.Errorf("creating attachment directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", "", fmt.Errorf("writing attachment: %w", err)
	}

	s.log.Debug("Attachment stored", "ref", ref, "mime", detected, "bytes", len(data))
	return ref, detected, nil
}

// Remove deletes the file behind a ref. A ref escaping the root is
// refused; a ref whose file is already gone is not an error.
func (s *DiskFileStore) Remove(_ context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing attachment %s: %w", ref, err)
	}
	return nil
}

// Open returns a reader over a stored attachment.
func (s *DiskFileStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("attachment %s: %w", ref, apperrors.ErrNotFound)
	}
	return f, err
}

func (s *DiskFileStore) resolve(ref string) (string, error) {
	path := filepath.Join(s.root, ref)
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: attachment ref %q", apperrors.ErrValidation, ref)
	}
	return path, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const photoScope = "photo"

// LocalStorage persists photos on disk and hands out signed download links.
type LocalStorage struct {
	baseDir     string
	signer      *SignedURLSigner
	downloadURL string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
// downloadURL is the public endpoint that accepts the signed token query parameter.
func NewLocalStorage(baseDir string, signer *SignedURLSigner, downloadURL string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if signer == nil {
		return nil, fmt.Errorf("signer required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, signer: signer, downloadURL: downloadURL}, nil
}

// Put writes the reader to key and returns a signed link to it.
func (s *LocalStorage) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload stream: %w", err)
	}
	return s.URL(ctx, key)
}

// Get opens the stored photo for reading.
func (s *LocalStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return file, nil
}

// Delete removes a stored photo if present.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

// URL returns a fresh signed download link for key.
func (s *LocalStorage) URL(_ context.Context, key string) (string, error) {
	token, _, err := s.signer.Generate(photoScope, key)
	if err != nil {
		return "", err
	}
	return s.downloadURL + "?token=" + url.QueryEscape(token), nil
}

// KeyFromToken validates a download token and returns the photo key it grants.
func (s *LocalStorage) KeyFromToken(token string) (string, error) {
	scope, key, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", err
	}
	if scope != photoScope {
		return "", fmt.Errorf("invalid token scope")
	}
	return key, nil
}

// resolve maps key onto the base directory, refusing paths that escape it.
func (s *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}

package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileSource stores credentials as JSON on the local filesystem. Writes use
// temp file + rename for crash safety and enforce 0600 permissions.
type FileSource struct {
	filePath string
}

var _ Source = (*FileSource)(nil)

// NewFileSource creates a FileSource for the given path, creating parent
// directories with 0700 permissions if they don't exist.
func NewFileSource(filePath string) (*FileSource, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, err
	}
	return &FileSource{filePath: filePath}, nil
}

// Read returns the stored credentials. Files with permissions wider than
// 0600 are rejected rather than read.
func (f *FileSource) Read(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	info, err := os.Stat(f.filePath)
	if err != nil {
		return Credentials{}, err
	}
	if info.Mode().Perm() != 0600 {
		return Credentials{}, fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", f.filePath, info.Mode().Perm())
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return Credentials{}, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parsing %s: %w", f.filePath, err)
	}
	if err := creds.validate(); err != nil {
		return Credentials{}, fmt.Errorf("%w (in %s)", err, f.filePath)
	}
	return creds, nil
}

// Write atomically saves the credentials using temp file + rename.
func (f *FileSource) Write(ctx context.Context, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := creds.validate(); err != nil {
		return err
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.filePath)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(append(data, '\n')); err != nil {
		return err
	}
	if err := tempFile.Chmod(0600); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	return os.Rename(tempName, f.filePath)
}

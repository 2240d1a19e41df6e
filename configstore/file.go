package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// fileDocument is the on-disk layout of a FileBackend.
type fileDocument struct {
	Values map[string]string `json:"values"`
}

// FileBackend stores configuration in a JSON file. Writes hold a lock file
// and replace the document through a temp file, so readers never see a
// partial write and concurrent writers do not drop each other's keys.
type FileBackend struct {
	path string
	lock *documentLock
}

// NewFileBackend returns a FileBackend for path. The file is created on the
// first write.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path, lock: newDocumentLock(path)}
}

func (f *FileBackend) Get(_ context.Context, path string) (string, error) {
	doc, err := f.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	value, ok := doc.Values[path]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (f *FileBackend) Set(ctx context.Context, path, value string) (err error) {
	unlock, err := f.lock.acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := unlock(); releaseErr != nil && err == nil {
			err = fmt.Errorf("failed to release lock: %w", releaseErr)
		}
	}()

	// Reload under the lock; an unreadable document is replaced.
	doc, err := f.load()
	if err != nil || doc.Values == nil {
		doc = fileDocument{Values: make(map[string]string)}
	}
	doc.Values[path] = value

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, f.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (f *FileBackend) load() (fileDocument, error) {
	var doc fileDocument
	data, err := os.ReadFile(f.path)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse config file: %w", err)
	}
	return doc, nil
}

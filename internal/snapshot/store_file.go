package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type fileStore struct {
	directory string
}

func NewFileStore(directory string) (Store, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("cannot create snapshot directory: %w", err)
	}
	return &fileStore{directory: directory}, nil
}

func (store *fileStore) path(id uuid.UUID) string {
	return filepath.Join(store.directory, id.String()+".snapshot")
}

func (store *fileStore) Save(ctx context.Context, snapshot Snapshot) error {
	bytes, err := Encode(snapshot)
	if err != nil {
		return err
	}

	// Readers never see a partially written snapshot
	temporary := store.path(snapshot.Id) + ".tmp"
	if err := os.WriteFile(temporary, bytes, 0644); err != nil {
		return fmt.Errorf("cannot write snapshot %v: %w", snapshot.Id, err)
	}
	return os.Rename(temporary, store.path(snapshot.Id))
}

func (store *fileStore) Load(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	bytes, err := os.ReadFile(store.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrNotFound, id)
	} else if err != nil {
		return Snapshot{}, err
	}
	return Decode(bytes)
}

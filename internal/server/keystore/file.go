package keystore

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/soclocker/soclocker/internal/common"
)

// FileKeystore stores the keypair as a JSON file with owner-only permissions.
type FileKeystore struct {
	path string
}

func NewFileKeystore(path string) *FileKeystore {
	return &FileKeystore{path: path}
}

func (k *FileKeystore) Load(ctx context.Context) (*Keypair, error) {
	data, err := os.ReadFile(k.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return unmarshalKeypair(data)
}

func (k *FileKeystore) Save(ctx context.Context, kp *Keypair) error {
	data, err := marshalKeypair(kp)
	if err != nil {
		return err
	}
	return os.WriteFile(k.path, data, 0o600)
}

// Package store keeps whole JSON documents (the user map and the report map)
// on a storage medium and serializes every read-modify-write on them
package store

import (
	"context"
	"errors"
)

// ErrNotExist is returned by a Medium when the document was never written
var ErrNotExist = errors.New("document does not exist")

// Medium is the place a single document lives. Write must replace the whole
// document or leave the previous one untouched.
type Medium interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Name() string
}

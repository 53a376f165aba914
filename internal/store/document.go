package store

import (
	"bitwise74/kidney-api/internal/apperr"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNoChange can be returned from an Update callback to skip the write
var ErrNoChange = errors.New("no change")

// Document is a JSON object keyed by email, loaded and saved in full on
// every operation. All access goes through one mutex so a read-modify-write
// done with Update can't be clobbered by a concurrent writer in this process.
type Document[V any] struct {
	mu     sync.Mutex
	medium Medium
}

func NewDocument[V any](m Medium) *Document[V] {
	return &Document[V]{medium: m}
}

func (d *Document[V]) Name() string {
	return d.medium.Name()
}

// Init creates an empty document if none exists yet and checks that an
// existing one can be decoded
func (d *Document[V]) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.load(ctx)
	if err == nil {
		return nil
	}

	if !errors.Is(err, ErrNotExist) {
		return err
	}

	return d.save(ctx, map[string]V{})
}

// Load returns the whole document. A document that was never written is
// returned as an empty map.
func (d *Document[V]) Load(ctx context.Context) (map[string]V, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.load(ctx)
	if errors.Is(err, ErrNotExist) {
		return map[string]V{}, nil
	}

	return v, err
}

// Save overwrites the whole document with v
func (d *Document[V]) Save(ctx context.Context, v map[string]V) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.save(ctx, v)
}

// Update loads the document, hands it to fn and saves the result, all while
// holding the lock. Errors from fn are returned untouched and nothing is
// written; ErrNoChange skips the write and reports success.
func (d *Document[V]) Update(ctx context.Context, fn func(doc map[string]V) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.load(ctx)
	if errors.Is(err, ErrNotExist) {
		v, err = map[string]V{}, nil
	}
	if err != nil {
		return err
	}

	if err := fn(v); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}

		return err
	}

	return d.save(ctx, v)
}

func (d *Document[V]) load(ctx context.Context) (map[string]V, error) {
	data, err := d.medium.Read(ctx)
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return nil, ErrNotExist
		}

		return nil, apperr.Storage(err)
	}

	var v map[string]V
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, apperr.Storage(fmt.Errorf("malformed document %s, %w", d.medium.Name(), err))
	}

	// A document holding JSON null decodes to a nil map
	if v == nil {
		v = map[string]V{}
	}

	return v, nil
}

func (d *Document[V]) save(ctx context.Context, v map[string]V) error {
	if v == nil {
		v = map[string]V{}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperr.Storage(fmt.Errorf("failed to encode document %s, %w", d.medium.Name(), err))
	}

	if err := d.medium.Write(ctx, data); err != nil {
		return apperr.Storage(err)
	}

	return nil
}

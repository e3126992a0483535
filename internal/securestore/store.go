package securestore

import "context"

// Store is a device-local key-value store for small string documents.
type Store interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	DeleteItem(ctx context.Context, key string) error
}

// BatchStore is implemented by backends that can apply several writes
// atomically. A nil value in items deletes the key.
type BatchStore interface {
	Store
	SetItems(ctx context.Context, items map[string]*string) error
}

// WriteItems applies items through SetItems when the backend supports it and
// falls back to sequential writes otherwise.
func WriteItems(ctx context.Context, s Store, items map[string]*string) error {
	if batch, ok := s.(BatchStore); ok {
		return batch.SetItems(ctx, items)
	}
	for key, value := range items {
		var err error
		if value == nil {
			err = s.DeleteItem(ctx, key)
		} else {
			err = s.SetItem(ctx, key, *value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

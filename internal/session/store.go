package session

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// StoreKey is the fixed key the conversation document is persisted under.
const StoreKey = "chats"

// Storage is a key-value persistence surface holding whole documents.
// Save replaces the previous document; last write wins.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, doc []byte) error
	Close() error
}

// Store persists the conversation list as one snapshot.
type Store struct {
	storage Storage
	key     string
}

// NewStore wraps storage using StoreKey.
func NewStore(storage Storage) *Store {
	return &Store{storage: storage, key: StoreKey}
}

// Load returns the saved conversations, or an empty list when nothing was saved.
func (s *Store) Load(ctx context.Context) (List, error) {
	doc, ok, err := s.storage.Load(ctx, s.key)
	if err != nil {
		return nil, errors.Wrap(err, "load conversations")
	}
	if !ok || len(doc) == 0 {
		return List{}, nil
	}
	var list List
	if err := json.Unmarshal(doc, &list); err != nil {
		return nil, errors.Wrap(err, "decode conversations")
	}
	for i := range list {
		if list[i].Messages == nil {
			list[i].Messages = []Turn{}
		}
	}
	return list, nil
}

// Save replaces the stored snapshot with list.
func (s *Store) Save(ctx context.Context, list List) error {
	if list == nil {
		list = List{}
	}
	doc, err := json.Marshal(list)
	if err != nil {
		return errors.Wrap(err, "encode conversations")
	}
	if err := s.storage.Save(ctx, s.key, doc); err != nil {
		return errors.Wrap(err, "save conversations")
	}
	return nil
}

// Close releases the underlying storage.
func (s *Store) Close() error {
	return s.storage.Close()
}

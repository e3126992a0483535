package securestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps every item in one encrypted JSON file. Each write rewrites
// the whole file through a temp file and rename, so multi-key writes land
// together or not at all.
//
// The argon2id key is derived once per file salt and held for the life of the
// store. Writes keep the salt and draw a fresh nonce.
type FileStore struct {
	mu     sync.Mutex
	path   string
	secret string
	salt   []byte
	key    []byte
}

func NewFileStore(path, secret string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("securestore: file path is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("securestore: device secret is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return &FileStore{path: path, secret: secret}, nil
}

func (s *FileStore) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.loadLocked()
	if err != nil {
		return "", false, err
	}
	value, ok := items[key]
	return value, ok, nil
}

func (s *FileStore) SetItem(ctx context.Context, key, value string) error {
	return s.SetItems(ctx, map[string]*string{key: &value})
}

func (s *FileStore) DeleteItem(ctx context.Context, key string) error {
	return s.SetItems(ctx, map[string]*string{key: nil})
}

func (s *FileStore) SetItems(_ context.Context, items map[string]*string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.loadLocked()
	if err != nil {
		return err
	}
	applyItems(current, items)
	return s.writeLocked(current)
}

func (s *FileStore) loadLocked() (map[string]string, error) {
	items := make(map[string]string)
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return items, nil
	}
	if err != nil {
		return nil, err
	}
	plain, err := s.openLocked(raw)
	if err != nil {
		return nil, fmt.Errorf("securestore: open %s: %w", filepath.Base(s.path), err)
	}
	defer zeroBytes(plain)
	if err := json.Unmarshal(plain, &items); err != nil {
		return nil, ErrInvalid
	}
	return items, nil
}

func (s *FileStore) writeLocked(items map[string]string) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}
	defer zeroBytes(payload)
	if s.key == nil {
		salt, err := newSalt()
		if err != nil {
			return err
		}
		s.useKeyLocked(salt)
	}
	env, err := sealEnvelope(s.key, s.salt, payload)
	if err != nil {
		return err
	}
	encrypted, err := marshalEnvelope(env)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, encrypted, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) openLocked(raw []byte) ([]byte, error) {
	env, err := parseEnvelope(raw)
	if err != nil {
		return nil, err
	}
	if err := checkEnvelope(env); err != nil {
		return nil, err
	}
	if s.key == nil || !bytes.Equal(s.salt, env.Salt) {
		s.useKeyLocked(env.Salt)
	}
	return openEnvelope(s.key, env)
}

func (s *FileStore) useKeyLocked(salt []byte) {
	zeroBytes(s.key)
	s.salt = bytes.Clone(salt)
	s.key = deriveKey(s.secret, salt)
}

var _ BatchStore = (*FileStore)(nil)

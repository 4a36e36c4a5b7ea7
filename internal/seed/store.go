// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package seed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/opentrusty/seedkeeper/internal/apperr"
	"github.com/opentrusty/seedkeeper/internal/fsutil"
	"github.com/opentrusty/seedkeeper/internal/observability/logger"
)

// Store holds the single active Secret.
//
// Load fails with apperr.ErrSeedMissing when nothing is stored or the stored
// value does not parse. Save replaces the previous value atomically.
type Store interface {
	Load(ctx context.Context) (Secret, error)
	Save(ctx context.Context, secret Secret) error
}

// FileStore keeps the secret in a single file. Writers are serialized and
// replace the file by rename, so readers never take the lock.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (Secret, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", apperr.ErrSeedMissing
	}
	if err != nil {
		return "", fmt.Errorf("failed to read seed file: %w", err)
	}

	secret, err := Parse(strings.TrimSpace(string(data)))
	if err != nil {
		slog.WarnContext(ctx, "stored seed is malformed",
			logger.Component("seed_store"),
			logger.File(s.path),
		)
		return "", fmt.Errorf("stored seed fails validation: %w", apperr.ErrSeedMissing)
	}
	return secret, nil
}

func (s *FileStore) Save(ctx context.Context, secret Secret) error {
	if _, err := Parse(secret.Hex()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fsutil.WriteFileAtomic(s.path, []byte(secret.Hex()+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to persist seed: %w", err)
	}

	slog.DebugContext(ctx, "seed persisted",
		logger.Component("seed_store"),
		logger.File(s.path),
	)
	return nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	secret Secret
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.secret == "" {
		return "", apperr.ErrSeedMissing
	}
	return s.secret, nil
}

func (s *MemoryStore) Save(_ context.Context, secret Secret) error {
	if _, err := Parse(secret.Hex()); err != nil {
		return err
	}

	s.mu.Lock()
	s.secret = secret
	s.mu.Unlock()
	return nil
}

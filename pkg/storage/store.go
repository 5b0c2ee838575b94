package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"neurocost/pkg/config"
)

// Slot identifies one of the fixed artifact kinds. Each slot holds at most
// one artifact; saving replaces it.
type Slot string

const (
	SlotBaseline Slot = "baseline"
	SlotLCM      Slot = "lcm"
	SlotSelector Slot = "selector"
)

// ErrKindMismatch is returned when a stored artifact belongs to another slot.
var ErrKindMismatch = errors.New("artifact kind mismatch")

// ArtifactInfo describes a stored artifact.
type ArtifactInfo struct {
	Slot      Slot
	Key       string
	RunID     string
	CreatedAt time.Time
}

// SaveResult reports whether Save wrote anything.
type SaveResult struct {
	Saved bool
	Info  ArtifactInfo
}

// ModelStore persists trained artifacts, one per slot, on a Backend.
type ModelStore struct {
	backend     Backend
	keys        map[Slot]string
	compression Compression
}

func NewModelStore(backend Backend, keys config.KeysConfig, compression Compression) *ModelStore {
	return &ModelStore{
		backend: backend,
		keys: map[Slot]string{
			SlotBaseline: keys.Baseline,
			SlotLCM:      keys.LCM,
			SlotSelector: keys.Selector,
		},
		compression: compression,
	}
}

// Open builds the backend named by cfg.Backend and wraps it in a ModelStore.
func Open(ctx context.Context, cfg config.StoreConfig) (*ModelStore, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "file", "":
		backend, err = NewFileBackend(cfg.Path)
	case "sqlite":
		backend, err = NewSQLiteBackend(cfg.Path)
	case "badger":
		backend, err = NewBadgerBackend(cfg.Path)
	case "memory":
		backend = NewMemoryBackend(8)
	case "minio":
		client, derr := DialMinio(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.UseSSL)
		if derr != nil {
			return nil, fmt.Errorf("dial minio: %w", derr)
		}
		ok, berr := client.BucketExists(ctx, cfg.Minio.Bucket)
		if berr != nil {
			return nil, fmt.Errorf("check bucket %q: %w", cfg.Minio.Bucket, berr)
		}
		if !ok {
			return nil, fmt.Errorf("bucket %q: %w", cfg.Minio.Bucket, ErrNotFound)
		}
		backend = NewMinioBackend(client, cfg.Minio.Bucket, cfg.Minio.Prefix)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewModelStore(backend, cfg.Keys, Compression(cfg.Compression)), nil
}

// Key returns the backend key of a slot.
func (s *ModelStore) Key(slot Slot) string {
	if k, ok := s.keys[slot]; ok && k != "" {
		return k
	}
	return string(slot)
}

func (s *ModelStore) Exists(ctx context.Context, slot Slot) (bool, error) {
	return s.backend.Exists(ctx, s.Key(slot))
}

// Save encodes v into slot. With overwrite=false an occupied slot is left
// untouched and Saved is false.
func (s *ModelStore) Save(ctx context.Context, slot Slot, v any, overwrite bool) (SaveResult, error) {
	key := s.Key(slot)
	if !overwrite {
		exists, err := s.backend.Exists(ctx, key)
		if err != nil {
			return SaveResult{}, err
		}
		if exists {
			return SaveResult{Info: ArtifactInfo{Slot: slot, Key: key}}, nil
		}
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return SaveResult{}, fmt.Errorf("encode %s: %w", slot, err)
	}
	env := envelope{
		Kind:      slot,
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
	data, err := encodeEnvelope(env, s.compression)
	if err != nil {
		return SaveResult{}, err
	}
	if err := s.backend.Put(ctx, key, data); err != nil {
		return SaveResult{}, fmt.Errorf("store %s: %w", slot, err)
	}
	return SaveResult{
		Saved: true,
		Info:  ArtifactInfo{Slot: slot, Key: key, RunID: env.RunID, CreatedAt: env.CreatedAt},
	}, nil
}

// Load decodes the artifact in slot into v. An empty slot yields an error
// satisfying errors.Is(err, ErrNotFound).
func (s *ModelStore) Load(ctx context.Context, slot Slot, v any) (ArtifactInfo, error) {
	key := s.Key(slot)
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return ArtifactInfo{}, fmt.Errorf("load %s: %w", slot, err)
	}
	env, err := decodeEnvelope(data)
	if err != nil {
		return ArtifactInfo{}, fmt.Errorf("load %s: %w", slot, err)
	}
	if env.Kind != slot {
		return ArtifactInfo{}, fmt.Errorf("%w: slot %s holds %s", ErrKindMismatch, slot, env.Kind)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return ArtifactInfo{}, fmt.Errorf("decode %s payload: %w", slot, err)
	}
	return ArtifactInfo{Slot: slot, Key: key, RunID: env.RunID, CreatedAt: env.CreatedAt}, nil
}

func (s *ModelStore) Delete(ctx context.Context, slot Slot) error {
	return s.backend.Delete(ctx, s.Key(slot))
}

func (s *ModelStore) Close() error {
	return s.backend.Close()
}

package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is bumped on breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
)

type SchemaInfo struct {
	Version    int    `json:"version"`
	ConfigHash string `json:"config_hash"`
}

// Fingerprint is the configuration the stored corpus depends on. A change
// in any field invalidates the index.
type Fingerprint struct {
	ChunkTokens      int    `json:"chunk_tokens"`
	ChunkOverlap     int    `json:"chunk_overlap"`
	Structural       bool   `json:"structural,omitempty"`
	Stemming         bool   `json:"stemming,omitempty"`
	EmbeddingEnabled bool   `json:"embedding_enabled"`
	EmbeddingModel   string `json:"embedding_model,omitempty"`
	Dimension        int    `json:"dimension,omitempty"`
}

// Hash is a short stable digest of f.
func (f Fingerprint) Hash() string {
	data, _ := json.Marshal(f)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func (s *BoltStore) GetSchemaInfo() (SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketStats)
		if v := b.Get(keySchemaVersion); v != nil {
			if err := json.Unmarshal(v, &info.Version); err != nil {
				return fmt.Errorf("store: schema version: %w", err)
			}
		}
		info.ConfigHash = string(b.Get(keyConfigHash))
		return nil
	})
	return info, err
}

func (s *BoltStore) SetSchemaInfo(info SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketStats)
		v, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, v); err != nil {
			return err
		}
		return b.Put(keyConfigHash, []byte(info.ConfigHash))
	})
}

// NeedsRebuild reports whether the stored corpus was built by another
// schema version or with a different fingerprint. A fresh file needs no
// rebuild.
func (s *BoltStore) NeedsRebuild(fp Fingerprint) (bool, string, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return false, "", err
	}
	switch {
	case info.Version == 0:
		return false, "", nil
	case info.Version != CurrentSchemaVersion:
		return true, fmt.Sprintf("schema v%d, want v%d", info.Version, CurrentSchemaVersion), nil
	case info.ConfigHash != "" && info.ConfigHash != fp.Hash():
		return true, "index configuration changed", nil
	}
	return false, "", nil
}

// Stamp records the current schema version and fingerprint.
func (s *BoltStore) Stamp(fp Fingerprint) error {
	return s.SetSchemaInfo(SchemaInfo{Version: CurrentSchemaVersion, ConfigHash: fp.Hash()})
}

// Clear removes the corpus and vectors, keeping schema metadata.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDocs, bucketChunks, bucketBlobs, bucketTerms, bucketDocChunks, bucketVectors} {
			if tx.Bucket(name) == nil {
				continue
			}
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketStats).Delete(keyStats)
	})
}

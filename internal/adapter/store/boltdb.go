// Package store persists the search corpus and its embedding vectors in a
// bbolt file so the semantic strategy survives restarts.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"ctxopt/internal/domain"
	"ctxopt/internal/port"
)

var (
	bucketDocs      = []byte("docs")
	bucketChunks    = []byte("chunks")
	bucketBlobs     = []byte("blobs")
	bucketTerms     = []byte("terms")
	bucketStats     = []byte("stats")
	bucketDocChunks = []byte("doc_chunks")
	keyStats        = []byte("corpus_stats")
)

var _ port.IndexStore = (*BoltStore)(nil)

type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketChunks, bucketBlobs, bucketTerms, bucketStats, bucketDocChunks} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("store: create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// DB exposes the handle so the vector store can share the file.
func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

type docMeta struct {
	Path    string `json:"path"`
	ModTime int64  `json:"mod_time"`
	Lang    string `json:"lang"`
}

type chunkMeta struct {
	DocID     string   `json:"doc_id"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Tokens    []string `json:"tokens"`
}

func (s *BoltStore) GetDoc(id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("store: document %s: %w", id, domain.ErrNotFound)
		}
		var meta docMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		doc = meta.document(id)
		return nil
	})
	return doc, err
}

func (s *BoltStore) ListDocs() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			docs = append(docs, meta.document(string(k)))
			return nil
		})
	})
	return docs, err
}

func (m docMeta) document(id string) domain.Document {
	return domain.Document{
		ID:      id,
		Path:    m.Path,
		ModTime: time.Unix(m.ModTime, 0),
		Lang:    m.Lang,
	}
}

func (s *BoltStore) GetChunk(id string) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		c, ok, err := readChunk(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("store: chunk %s: %w", id, domain.ErrNotFound)
		}
		chunk = c
		return nil
	})
	return chunk, err
}

func (s *BoltStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		ids, err := docChunkIDs(tx, docID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			c, ok, err := readChunk(tx, id)
			if err != nil || !ok {
				continue
			}
			chunks = append(chunks, c)
		}
		return nil
	})
	return chunks, err
}

func readChunk(tx *bbolt.Tx, id string) (domain.Chunk, bool, error) {
	data := tx.Bucket(bucketChunks).Get([]byte(id))
	if data == nil {
		return domain.Chunk{}, false, nil
	}
	var meta chunkMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Chunk{}, false, err
	}
	text := tx.Bucket(bucketBlobs).Get([]byte(id))
	return domain.Chunk{
		ID:        id,
		DocID:     meta.DocID,
		StartLine: meta.StartLine,
		EndLine:   meta.EndLine,
		Tokens:    meta.Tokens,
		Text:      string(text),
	}, true, nil
}

func docChunkIDs(tx *bbolt.Tx, docID string) ([]string, error) {
	data := tx.Bucket(bucketDocChunks).Get([]byte(docID))
	if data == nil {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *BoltStore) GetPostings(term string) ([]domain.Posting, error) {
	var postings []domain.Posting
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTerms).Get([]byte(term))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &postings)
	})
	return postings, err
}

func (s *BoltStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStats).Get(keyStats)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &stats)
	})
	return stats, err
}

func (s *BoltStore) UpdateStats(stats domain.Stats) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketStats).Put(keyStats, data)
	})
}

// BatchIndex writes files in one transaction. An earlier version of each
// document is removed first, postings included.
func (s *BoltStore) BatchIndex(files []port.IndexedFile) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		docsBucket := tx.Bucket(bucketDocs)
		chunksBucket := tx.Bucket(bucketChunks)
		blobsBucket := tx.Bucket(bucketBlobs)
		docChunksBucket := tx.Bucket(bucketDocChunks)

		allPostings := make(map[string][]domain.Posting)

		for _, file := range files {
			if err := removeDoc(tx, file.Doc.ID); err != nil {
				return err
			}

			data, err := json.Marshal(docMeta{
				Path:    file.Doc.Path,
				ModTime: file.Doc.ModTime.Unix(),
				Lang:    file.Doc.Lang,
			})
			if err != nil {
				return err
			}
			if err := docsBucket.Put([]byte(file.Doc.ID), data); err != nil {
				return err
			}

			chunkIDs := make([]string, 0, len(file.Chunks))
			for _, chunk := range file.Chunks {
				data, err := json.Marshal(chunkMeta{
					DocID:     chunk.DocID,
					StartLine: chunk.StartLine,
					EndLine:   chunk.EndLine,
					Tokens:    chunk.Tokens,
				})
				if err != nil {
					return err
				}
				if err := chunksBucket.Put([]byte(chunk.ID), data); err != nil {
					return err
				}
				if err := blobsBucket.Put([]byte(chunk.ID), []byte(chunk.Text)); err != nil {
					return err
				}
				chunkIDs = append(chunkIDs, chunk.ID)
			}

			idsData, err := json.Marshal(chunkIDs)
			if err != nil {
				return err
			}
			if err := docChunksBucket.Put([]byte(file.Doc.ID), idsData); err != nil {
				return err
			}

			for term, chunkTFs := range file.Postings {
				for chunkID, tf := range chunkTFs {
					allPostings[term] = append(allPostings[term], domain.Posting{ChunkID: chunkID, TF: tf})
				}
			}
		}

		for term, added := range allPostings {
			existing, err := readPostings(tx, term)
			if err != nil {
				return err
			}
			if err := writePostings(tx, term, append(existing, added...)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) RemoveDoc(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return removeDoc(tx, id)
	})
}

func removeDoc(tx *bbolt.Tx, docID string) error {
	ids, err := docChunkIDs(tx, docID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		c, ok, err := readChunk(tx, id)
		if err != nil {
			return err
		}
		if ok {
			if err := dropPostings(tx, id, c.Tokens); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketChunks).Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlobs).Delete([]byte(id)); err != nil {
			return err
		}
	}
	if err := tx.Bucket(bucketDocChunks).Delete([]byte(docID)); err != nil {
		return err
	}
	return tx.Bucket(bucketDocs).Delete([]byte(docID))
}

func dropPostings(tx *bbolt.Tx, chunkID string, terms []string) error {
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true
		postings, err := readPostings(tx, term)
		if err != nil {
			return err
		}
		filtered := postings[:0]
		for _, p := range postings {
			if p.ChunkID != chunkID {
				filtered = append(filtered, p)
			}
		}
		if err := writePostings(tx, term, filtered); err != nil {
			return err
		}
	}
	return nil
}

func readPostings(tx *bbolt.Tx, term string) ([]domain.Posting, error) {
	data := tx.Bucket(bucketTerms).Get([]byte(term))
	if data == nil {
		return nil, nil
	}
	var postings []domain.Posting
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil, fmt.Errorf("store: postings for %q: %w", term, err)
	}
	return postings, nil
}

func writePostings(tx *bbolt.Tx, term string, postings []domain.Posting) error {
	b := tx.Bucket(bucketTerms)
	if len(postings) == 0 {
		return b.Delete([]byte(term))
	}
	data, err := json.Marshal(postings)
	if err != nil {
		return err
	}
	return b.Put([]byte(term), data)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

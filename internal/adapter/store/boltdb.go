package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"docrag/internal/domain"
)

var (
	bucketMeta    = []byte("meta")
	bucketVectors = []byte("vectors")
	bucketChunks  = []byte("chunks")
	keyInfo       = []byte("corpus_info")
)

// BoltCorpusStore keeps a corpus in a single bbolt file. Vectors and chunk
// metadata live in separate buckets under the same slot key, and every save
// writes a fresh file that atomically replaces the previous one.
type BoltCorpusStore struct {
	path string
}

func NewBoltCorpusStore(path string) *BoltCorpusStore {
	return &BoltCorpusStore{path: path}
}

func (s *BoltCorpusStore) Path() string {
	return s.path
}

// Save writes corpus to a temporary file next to the target and renames it
// into place. On failure the previous corpus is left untouched.
func (s *BoltCorpusStore) Save(corpus domain.Corpus) error {
	if err := validateCorpus(corpus); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create corpus directory: %w", err)
	}

	tmp := s.path + ".tmp-" + uuid.NewString()
	if err := writeCorpus(tmp, corpus); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace corpus: %w", err)
	}
	return nil
}

func writeCorpus(path string, corpus domain.Corpus) error {
	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		vectors, err := tx.CreateBucket(bucketVectors)
		if err != nil {
			return err
		}
		chunks, err := tx.CreateBucket(bucketChunks)
		if err != nil {
			return err
		}
		// Keys are appended in ascending order.
		vectors.FillPercent = 1.0
		chunks.FillPercent = 1.0

		info, err := json.Marshal(corpus.Info)
		if err != nil {
			return err
		}
		if err := meta.Put(keyInfo, info); err != nil {
			return err
		}

		for _, r := range corpus.Records {
			key := slotKey(r.Slot)
			if err := vectors.Put(key, encodeVector(r.Vector)); err != nil {
				return err
			}
			data, err := json.Marshal(r.Chunk)
			if err != nil {
				return err
			}
			if err := chunks.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if closeErr := db.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write corpus: %w", err)
	}
	return nil
}

// Load reads the whole corpus into memory and closes the file.
func (s *BoltCorpusStore) Load() (*domain.Corpus, error) {
	stat, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCorpusNotFound, s.path)
		}
		return nil, err
	}

	corpus, err := readCorpus(s.path, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorpusCorrupt, err)
	}

	if err := validateCorpus(*corpus); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorpusCorrupt, err)
	}
	return corpus, nil
}

// readCorpus decodes the file at path. bbolt panics on damaged pages, and a
// file shorter than its own high-water mark faults on access; both come
// back as errors.
func readCorpus(path string, fileSize int64) (corpus *domain.Corpus, err error) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			corpus, err = nil, fmt.Errorf("damaged page: %v", r)
		}
	}()

	db, err := bbolt.Open(path, 0444, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	corpus = &domain.Corpus{}
	err = db.View(func(tx *bbolt.Tx) error {
		if tx.Size() > fileSize {
			return fmt.Errorf("file is %d bytes, expected at least %d", fileSize, tx.Size())
		}

		meta := tx.Bucket(bucketMeta)
		vectors := tx.Bucket(bucketVectors)
		chunks := tx.Bucket(bucketChunks)
		if meta == nil || vectors == nil || chunks == nil {
			return errors.New("missing bucket")
		}

		data := meta.Get(keyInfo)
		if data == nil {
			return errors.New("missing corpus info")
		}
		if err := json.Unmarshal(data, &corpus.Info); err != nil {
			return fmt.Errorf("corpus info: %w", err)
		}

		slot := 0
		err := vectors.ForEach(func(k, v []byte) error {
			if !isSlotKey(k, slot) {
				return fmt.Errorf("vector key out of sequence at slot %d", slot)
			}
			vec, err := decodeVector(v)
			if err != nil {
				return fmt.Errorf("slot %d: %w", slot, err)
			}
			corpus.Records = append(corpus.Records, domain.Record{Slot: slot, Vector: vec})
			slot++
			return nil
		})
		if err != nil {
			return err
		}

		slot = 0
		err = chunks.ForEach(func(k, v []byte) error {
			if slot >= len(corpus.Records) {
				return fmt.Errorf("chunk list longer than vector list (%d)", len(corpus.Records))
			}
			if !isSlotKey(k, slot) {
				return fmt.Errorf("chunk key out of sequence at slot %d", slot)
			}
			if err := json.Unmarshal(v, &corpus.Records[slot].Chunk); err != nil {
				return fmt.Errorf("slot %d: %w", slot, err)
			}
			slot++
			return nil
		})
		if err != nil {
			return err
		}
		if slot != len(corpus.Records) {
			return fmt.Errorf("chunk list has %d entries for %d vectors", slot, len(corpus.Records))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return corpus, nil
}

func validateCorpus(corpus domain.Corpus) error {
	if corpus.Info.Size != len(corpus.Records) {
		return fmt.Errorf("corpus info size %d does not match %d records", corpus.Info.Size, len(corpus.Records))
	}
	for i, r := range corpus.Records {
		if r.Slot != i {
			return fmt.Errorf("record %d has slot %d", i, r.Slot)
		}
		if len(r.Vector) != corpus.Info.Dimension {
			return fmt.Errorf("%w: slot %d has dimension %d, expected %d",
				domain.ErrDimensionMismatch, i, len(r.Vector), corpus.Info.Dimension)
		}
	}
	return nil
}

func slotKey(slot int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(slot))
	return key
}

func isSlotKey(k []byte, slot int) bool {
	return len(k) == 8 && binary.BigEndian.Uint64(k) == uint64(slot)
}

func encodeVector(v domain.Embedding) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) (domain.Embedding, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector has %d bytes, not a multiple of 4", len(b))
	}
	v := make(domain.Embedding, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

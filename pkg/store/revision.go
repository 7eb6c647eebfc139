package store

import (
	"encoding/binary"

	bolt "go.etcd.io/bbolt"

	"src.cgv.sh/pkg/ast"
	. "src.cgv.sh/pkg/store/storedefs"
)

func init() {
	initDB["initialize revision table"] = func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRevision))
		return err
	}
}

// Each grammar has a nested bucket in the revision bucket, keyed by sequence
// numbers.

func addRevision(tx *bolt.Tx, name string, data []byte) (uint64, error) {
	b, err := tx.Bucket([]byte(bucketRevision)).CreateBucketIfNotExists([]byte(name))
	if err != nil {
		return 0, err
	}
	seq, err := b.NextSequence()
	if err != nil {
		return 0, err
	}
	return seq, b.Put(marshalSeq(seq), data)
}

func delRevisions(tx *bolt.Tx, name string) error {
	b := tx.Bucket([]byte(bucketRevision))
	if b.Bucket([]byte(name)) == nil {
		return nil
	}
	return b.DeleteBucket([]byte(name))
}

// Revision returns the revision of the grammar name with the given sequence
// number.
func (s *dbStore) Revision(name string, seq int) (ast.Grammar, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRevision)).Bucket([]byte(name))
		if b == nil {
			return ErrNoGrammar
		}
		v := b.Get(marshalSeq(uint64(seq)))
		if v == nil {
			return ErrNoRevision
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ast.UnmarshalGrammar(data)
}

// Revisions returns all revisions of the grammar name, oldest first.
func (s *dbStore) Revisions(name string) ([]Revision, error) {
	var revisions []Revision
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRevision)).Bucket([]byte(name))
		if b == nil {
			return ErrNoGrammar
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			g, err := ast.UnmarshalGrammar(v)
			if err != nil {
				return err
			}
			revisions = append(revisions, Revision{Seq: int(unmarshalSeq(k)), Grammar: g})
		}
		return nil
	})
	return revisions, err
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}

package store

import (
	bolt "go.etcd.io/bbolt"

	"src.cgv.sh/pkg/ast"
	. "src.cgv.sh/pkg/store/storedefs"
)

func init() {
	initDB["initialize grammar table"] = func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketGrammar))
		return err
	}
}

// PutGrammar stores g under name, replacing the grammar stored before, and
// appends it to the history of name. It returns the sequence number of the
// new revision.
func (s *dbStore) PutGrammar(name string, g ast.Grammar) (int, error) {
	data, err := ast.MarshalGrammar(g)
	if err != nil {
		return 0, err
	}
	s.waits.Add(1)
	defer s.waits.Done()
	var seq uint64
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(bucketGrammar)).Put([]byte(name), data); err != nil {
			return err
		}
		seq, err = addRevision(tx, name, data)
		return err
	})
	return int(seq), err
}

// Grammar returns the grammar stored under name.
func (s *dbStore) Grammar(name string) (ast.Grammar, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketGrammar)).Get([]byte(name))
		if v == nil {
			return ErrNoGrammar
		}
		// Values are only valid within the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ast.UnmarshalGrammar(data)
}

// GrammarNames lists the names of all stored grammars in lexicographical
// order.
func (s *dbStore) GrammarNames() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketGrammar)).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// DelGrammar deletes the grammar stored under name with its history.
func (s *dbStore) DelGrammar(name string) error {
	s.waits.Add(1)
	defer s.waits.Done()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketGrammar))
		if b.Get([]byte(name)) == nil {
			return ErrNoGrammar
		}
		if err := b.Delete([]byte(name)); err != nil {
			return err
		}
		return delRevisions(tx, name)
	})
}

package badger

import (
	"bytes"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v2"

	"github.com/akhenakh/rfgen/storage"
)

type Store struct {
	*badger.DB
}

// PutTx stores v for k at t, skipping the write when the most recent entry for k holds v
func (s *Store) PutTx(txi storage.Tx, k string, v []byte, t time.Time) (bool, error) {
	tx, ok := txi.(*badger.Txn)
	if !ok {
		return false, errors.New("invalid tx passed")
	}

	// the datakey D
	dk := storage.DataKey(k, t)

	// the listing key L
	kk := storage.ListKey(k)

	// the most recent entry is the first one with reverse timestamps
	prefix := storage.DataPrefix(k)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 1
	it := tx.NewIterator(opts)
	defer it.Close()

	it.Seek(prefix)
	exist := it.ValidForPrefix(prefix)
	if exist {
		last, err := it.Item().ValueCopy(nil)
		if err != nil {
			return false, err
		}
		if bytes.Equal(last, v) {
			return false, nil
		}
	}

	// storing D
	e := badger.NewEntry(dk, v)
	if err := tx.SetEntry(e); err != nil {
		return false, err
	}

	// storing L
	if !exist {
		e = badger.NewEntry(kk, nil)
		if err := tx.SetEntry(e); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Put stores v for k at t in its own transaction
func (s *Store) Put(k string, v []byte, t time.Time) (bool, error) {
	txn := s.NewTransaction(true)
	defer txn.Discard()

	changed, err := s.PutTx(txn, k, v, t)
	if err != nil || !changed {
		return false, err
	}

	return true, txn.Commit()
}

// GetAll return all entries for k up to count, most recent first
func (s *Store) GetAll(k string, count int) ([]storage.Artifact, error) {
	var res []storage.Artifact
	existing := 0
	err := s.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = count
		if opts.PrefetchSize <= 0 {
			opts.PrefetchSize = 10
		}
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := storage.DataPrefix(k)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if count > 0 && existing >= count {
				break
			}

			item := it.Item()
			dk, t, err := storage.ReadDataKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}

			valc, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			res = append(res, storage.Artifact{
				Key:   dk,
				Value: valc,
				Time:  t,
			})
			existing++
		}
		return nil
	})

	return res, err
}

// Get the most recent entry for k, nil if none
func (s *Store) Get(k string) (*storage.Artifact, error) {
	res, err := s.GetAll(k, 1)
	if err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, nil
	}
	return &res[0], nil
}

// Keys list all keys
func (s *Store) Keys() ([]string, error) {
	var res []string
	err := s.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(storage.Prefix + "L")

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			res = append(res, string(k[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (s *Store) Begin() storage.Tx {
	return s.NewTransaction(true)
}

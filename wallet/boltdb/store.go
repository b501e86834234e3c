package boltdb

import (
	"context"
	"io"
	"path"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/zkcred/zkcred/common/log"
	"github.com/zkcred/zkcred/internal/fs"
	"github.com/zkcred/zkcred/wallet"
)

// BoltStore implements wallet.Store with boltdb. Records are stored as JSON
// under an increasing sequence number, with an index from id to sequence.
type BoltStore struct {
	db *bolt.DB

	log log.Logger
}

var (
	recordBucket = []byte("credentials")
	indexBucket  = []byte("ids")
)

// BoltFileName is the name of the file boltdb writes to
const BoltFileName = "wallet.db"

// BoltStoreOpenPerm is the permission of the store file. Credentials are
// private: only the owner reads them.
const BoltStoreOpenPerm = 0600

// NewBoltStore opens or creates the store in folder.
func NewBoltStore(ctx context.Context, l log.Logger, folder string, opts *bolt.Options) (*BoltStore, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if _, err := fs.CreateSecureFolder(log.ToContext(ctx, l), folder); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path.Join(folder, BoltFileName), BoltStoreOpenPerm, opts)
	if err != nil {
		return nil, err
	}
	// create the buckets already
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{
		log: l.Named("boltdb"),
		db:  db,
	}, nil
}

func (b *BoltStore) Len(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	var length = 0
	err := b.db.View(func(tx *bolt.Tx) error {
		length = tx.Bucket(indexBucket).Stats().KeyN
		return nil
	})
	return length, err
}

// Put stores a new record. An id already stored gives wallet.ErrExists.
func (b *BoltStore) Put(ctx context.Context, r *wallet.Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	buff, err := r.Marshal()
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(indexBucket)
		id := r.ID[:]
		if index.Get(id) != nil {
			return wallet.ErrExists
		}
		bucket := tx.Bucket(recordBucket)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := wallet.SeqToBytes(seq)
		if err := bucket.Put(key, buff); err != nil {
			b.log.Debugw("storing credential", "id", r.ID, "err", err)
			return err
		}
		return index.Put(id, key)
	})
}

func (b *BoltStore) Get(ctx context.Context, id uuid.UUID) (*wallet.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r := &wallet.Record{}
	err := b.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(indexBucket).Get(id[:])
		if key == nil {
			return wallet.ErrNotFound
		}
		v := tx.Bucket(recordBucket).Get(key)
		if v == nil {
			return wallet.ErrNotFound
		}
		return r.Unmarshal(v)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// List returns every record in insertion order.
func (b *BoltStore) List(ctx context.Context) ([]*wallet.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var out []*wallet.Record
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(recordBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			r := &wallet.Record{}
			if err := r.Unmarshal(v); err != nil {
				b.log.Errorw("", "boltdb", "corrupted record", "seq", k, "err", err)
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func (b *BoltStore) Delete(ctx context.Context, id uuid.UUID) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(indexBucket)
		key := index.Get(id[:])
		if key == nil {
			return wallet.ErrNotFound
		}
		if err := tx.Bucket(recordBucket).Delete(key); err != nil {
			return err
		}
		return index.Delete(id[:])
	})
}

func (b *BoltStore) Close(context.Context) error {
	err := b.db.Close()
	if err != nil {
		b.log.Errorw("", "boltdb", "close", "err", err)
	}
	return err
}

// SaveTo writes a consistent copy of the database, for backups.
func (b *BoltStore) SaveTo(ctx context.Context, w io.Writer) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return b.db.View(func(tx *bolt.Tx) error {
		_, err := tx.WriteTo(w)
		return err
	})
}

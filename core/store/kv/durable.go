package kv

import (
	"go.dedis.ch/syncdb/core/store"
	"golang.org/x/xerrors"
)

// DefaultBucket is the name of the bucket used when none is provided.
var DefaultBucket = []byte("syncdb")

// Durable is a durable store that keeps the snapshot in a single bucket of a
// key/value database. A persist drops the bucket and writes the complete
// snapshot again inside one transaction.
//
// - implements store.DurableStore
type Durable struct {
	db     DB
	bucket []byte
}

// NewDurable creates a durable store on top of the database. A nil bucket name
// selects the default one.
func NewDurable(db DB, bucket []byte) Durable {
	if len(bucket) == 0 {
		bucket = DefaultBucket
	}

	return Durable{
		db:     db,
		bucket: bucket,
	}
}

// Load implements store.DurableStore. It reads every key of the bucket. A
// missing bucket is an empty snapshot.
func (d Durable) Load() (store.Snapshot, error) {
	snap := store.NewSnapshot()

	err := d.db.View(func(tx ReadableTx) error {
		bucket := tx.GetBucket(d.bucket)
		if bucket == nil {
			return nil
		}

		// bbolt values are only valid during the transaction, so the snapshot
		// takes a copy of each of them.
		return bucket.ForEach(func(k, v []byte) error {
			snap.Set(k, v)
			return nil
		})
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to read bucket: %v", err)
	}

	return snap, nil
}

// Persist implements store.DurableStore. It rewrites the whole bucket in a
// single transaction, which is either fully applied or not at all.
func (d Durable) Persist(snap store.Snapshot) error {
	err := d.db.Update(func(tx WritableTx) error {
		err := tx.DeleteBucket(d.bucket)
		if err != nil {
			return err
		}

		bucket, err := tx.GetBucketOrCreate(d.bucket)
		if err != nil {
			return err
		}

		for key, value := range snap {
			err = bucket.Set([]byte(key), value)
			if err != nil {
				return xerrors.Errorf("failed to set key %#x: %v", key, err)
			}
		}

		return nil
	})
	if err != nil {
		return xerrors.Errorf("failed to write bucket: %v", err)
	}

	return nil
}

// Close closes the underlying database.
func (d Durable) Close() error {
	return d.db.Close()
}

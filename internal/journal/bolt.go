package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chainguard-dev/ami-backup/internal/log"
	"go.etcd.io/bbolt"
)

var _ Journal = (*bolt)(nil)

type bolt struct {
	path string
}

// NewBolt returns a Journal persisted in a bbolt database at path, creating
// the file and its parent directory if needed. The database is only held
// open for the duration of each call.
func NewBolt(path string) (Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	b := &bolt{path: path}
	db, err := b.client()
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	defer db.Close()

	return b, nil
}

// Begin implements Journal.
func (b *bolt) Begin(ctx context.Context, rec Record) (Record, error) {
	if err := rec.validate(); err != nil {
		return Record{}, err
	}
	log.Debug(ctx, "journaling cleanup", "image_id", rec.ImageID, "snapshots", rec.Snapshots)

	db, err := b.client()
	if err != nil {
		return Record{}, fmt.Errorf("failed to open journal database: %w", err)
	}
	defer db.Close()

	stored := rec
	if err := db.Update(func(tx *bbolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(rec.Tag))
		if err != nil {
			return fmt.Errorf("failed to create journal bucket: %w", err)
		}

		// Keep the progress of an existing record
		if raw := bkt.Get([]byte(rec.ImageID)); raw != nil {
			stored = Record{}
			if err := json.Unmarshal(raw, &stored); err != nil {
				return fmt.Errorf("failed to unmarshal record: %w", err)
			}
			log.Info(ctx, "cleanup already journaled, keeping its progress",
				"image_id", rec.ImageID,
				"deregistered", stored.Deregistered,
				"started_by", stored.RunID,
			)
			return nil
		}

		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		return bkt.Put([]byte(rec.ImageID), raw)
	}); err != nil {
		return Record{}, fmt.Errorf("failed to begin journal record: %w", err)
	}

	return stored, nil
}

// MarkDeregistered implements Journal.
func (b *bolt) MarkDeregistered(ctx context.Context, tag, imageID string) error {
	return b.update(ctx, tag, imageID, func(r *Record) { r.Deregistered = true })
}

// MarkSnapshotDeleted implements Journal.
func (b *bolt) MarkSnapshotDeleted(ctx context.Context, tag, imageID, snapshotID string) error {
	return b.update(ctx, tag, imageID, func(r *Record) { r.markDeleted(snapshotID) })
}

// Finish implements Journal.
func (b *bolt) Finish(ctx context.Context, tag, imageID string) error {
	log.Debug(ctx, "closing journal record", "image_id", imageID)

	db, err := b.client()
	if err != nil {
		return fmt.Errorf("failed to open journal database: %w", err)
	}
	defer db.Close()

	if err := db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(tag))
		if bkt == nil || bkt.Get([]byte(imageID)) == nil {
			log.Warn(ctx, "no journal record to close", "tag", tag, "image_id", imageID)
			return nil
		}
		return bkt.Delete([]byte(imageID))
	}); err != nil {
		return fmt.Errorf("failed to finish journal record: %w", err)
	}

	return nil
}

// Pending implements Journal.
func (b *bolt) Pending(ctx context.Context, tag string) ([]Record, error) {
	db, err := b.client()
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	defer db.Close()

	var recs []Record
	if err := db.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(tag))
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal record %s: %w", k, err)
			}
			recs = append(recs, rec)
			return nil
		})
	}); err != nil {
		return nil, fmt.Errorf("failed to list journal records: %w", err)
	}

	sortByStart(recs)
	log.Debug(ctx, "listed pending journal records", "tag", tag, "count", len(recs))
	return recs, nil
}

func (b *bolt) update(ctx context.Context, tag, imageID string, fn func(*Record)) error {
	db, err := b.client()
	if err != nil {
		return fmt.Errorf("failed to open journal database: %w", err)
	}
	defer db.Close()

	if err := db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(tag))
		if bkt == nil {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, imageID)
		}

		raw := bkt.Get([]byte(imageID))
		if raw == nil {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, imageID)
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}
		fn(&rec)

		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		return bkt.Put([]byte(imageID), raw)
	}); err != nil {
		return fmt.Errorf("failed to update journal record: %w", err)
	}

	log.Debug(ctx, "updated journal record", "image_id", imageID)
	return nil
}

func (b *bolt) client() (*bbolt.DB, error) {
	return bbolt.Open(b.path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
}

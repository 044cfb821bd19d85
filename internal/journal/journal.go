// Package journal records the progress of AMI cleanups so that an
// interrupted cleanup can be finished by a later run without repeating the
// steps that already succeeded.
package journal

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Journal stores cleanup records, grouped by the Name tag of the AMIs they
// belong to.
type Journal interface {
	// Begin stores rec unless a record for the same AMI already exists, in
	// which case the existing record (and its progress) is kept and returned.
	Begin(ctx context.Context, rec Record) (Record, error)
	MarkDeregistered(ctx context.Context, tag, imageID string) error
	MarkSnapshotDeleted(ctx context.Context, tag, imageID, snapshotID string) error
	// Finish drops the record of a completed cleanup.
	Finish(ctx context.Context, tag, imageID string) error
	// Pending lists unfinished records for tag, oldest first.
	Pending(ctx context.Context, tag string) ([]Record, error)
}

// Record tracks the cleanup of one AMI.
type Record struct {
	ImageID          string    `json:"image_id"`
	ImageName        string    `json:"image_name,omitempty"`
	Tag              string    `json:"tag"`
	RunID            string    `json:"run_id,omitempty"`
	Snapshots        []string  `json:"snapshots"`
	Deregistered     bool      `json:"deregistered"`
	DeletedSnapshots []string  `json:"deleted_snapshots,omitempty"`
	Started          time.Time `json:"started"`
}

// Remaining lists the snapshots not yet recorded as deleted, in their
// original order.
func (r Record) Remaining() []string {
	var out []string
	for _, s := range r.Snapshots {
		if !slices.Contains(r.DeletedSnapshots, s) {
			out = append(out, s)
		}
	}
	return out
}

// Done reports whether every step of the cleanup has been recorded.
func (r Record) Done() bool {
	return r.Deregistered && len(r.Remaining()) == 0
}

var (
	ErrRecordInvalid  = fmt.Errorf("journal record requires an image ID and a tag")
	ErrRecordNotFound = fmt.Errorf("journal record not found")
)

func (r Record) validate() error {
	if r.ImageID == "" || r.Tag == "" {
		return ErrRecordInvalid
	}
	return nil
}

func (r *Record) markDeleted(snapshotID string) {
	if !slices.Contains(r.DeletedSnapshots, snapshotID) {
		r.DeletedSnapshots = append(r.DeletedSnapshots, snapshotID)
	}
}

func sortByStart(recs []Record) {
	slices.SortStableFunc(recs, func(a, b Record) int {
		return a.Started.Compare(b.Started)
	})
}

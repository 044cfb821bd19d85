package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/ami-backup/internal/journal"
	"github.com/chainguard-dev/clog"
)

var (
	ErrImageList      = fmt.Errorf("failed to list AMIs")
	ErrNoImages       = fmt.Errorf("no AMI found")
	ErrDeregister     = fmt.Errorf("failed to deregister AMI")
	ErrSnapshotDelete = fmt.Errorf("failed to delete snapshot")
	ErrJournal        = fmt.Errorf("failed to record cleanup progress")
)

// Sweeper deregisters expired AMIs and deletes their snapshots.
type Sweeper struct {
	API API

	// Journal records cleanup progress. Default: an in-memory journal.
	Journal journal.Journal

	// Now is the clock used to age AMIs. Default: time.Now.
	Now func() time.Time

	// RunID is stored with journal records.
	RunID string

	// DryRun logs the cleanup that would happen without mutating anything.
	DryRun bool

	// AllowEmpty makes finding no AMI a no-op instead of ErrNoImages.
	AllowEmpty bool
}

// SweepReport summarizes a sweep.
type SweepReport struct {
	// Found is the number of AMIs carrying the Name tag.
	Found int
	// Kept lists AMIs younger than the retention window.
	Kept []string
	// Deregistered lists AMIs deregistered by this sweep.
	Deregistered []string
	// SnapshotsDeleted lists snapshots deleted by this sweep.
	SnapshotsDeleted []string
	// Resumed lists AMIs whose cleanup was left unfinished by an earlier run.
	Resumed []string
}

// Sweep expires every AMI whose Name tag equals tag and which is strictly
// older than days. Unfinished cleanups from earlier sweeps of the same tag
// are completed first.
//
// Any EC2 failure stops the sweep; the journal keeps what was already done.
func (s *Sweeper) Sweep(ctx context.Context, days int, tag string) (*SweepReport, error) {
	log := clog.FromContext(ctx).With("tag", tag)
	report := &SweepReport{}
	if s.Journal == nil {
		s.Journal = journal.NewMemory()
	}

	if err := s.resume(ctx, tag, report); err != nil {
		return report, err
	}

	log.Info("checking for AMIs older than the retention window", "days", days)
	images, err := listImages(ctx, s.API, tag)
	if err != nil {
		return report, err
	}
	if len(images) == 0 {
		if s.AllowEmpty {
			log.Info("no AMI found")
			return report, nil
		}
		log.Error("no AMI found")
		return report, fmt.Errorf("%w: %s=%s", ErrNoImages, tagKeyName, tag)
	}

	report.Found = len(images)
	log.Info("total AMIs found", "count", len(images))

	now := s.now()
	retention := RetentionPeriod(days)
	for _, image := range images {
		imageID := aws.ToString(image.ImageId)
		created, err := ParseCreationDate(aws.ToString(image.CreationDate))
		if err != nil {
			return report, fmt.Errorf("AMI %s: %w", imageID, err)
		}

		if !Expired(created, now, retention) {
			log.Info("AMI still not older than the retention window",
				"image_id", imageID,
				"days", days,
				"created", created,
			)
			report.Kept = append(report.Kept, imageID)
			continue
		}

		if err := s.expire(ctx, tag, image, report); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (s *Sweeper) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// resume finishes cleanups journaled by an earlier, interrupted sweep.
func (s *Sweeper) resume(ctx context.Context, tag string, report *SweepReport) error {
	log := clog.FromContext(ctx)

	pending, err := s.Journal.Pending(ctx, tag)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJournal, err)
	}
	for _, rec := range pending {
		log.Warn("resuming unfinished AMI cleanup",
			"image_id", rec.ImageID,
			"deregistered", rec.Deregistered,
			"remaining_snapshots", rec.Remaining(),
			"started_by", rec.RunID,
		)
		report.Resumed = append(report.Resumed, rec.ImageID)
		if s.DryRun {
			continue
		}
		// Interrupted between the last deletion and closing the record.
		if rec.Done() {
			if err := s.Journal.Finish(ctx, rec.Tag, rec.ImageID); err != nil {
				return fmt.Errorf("%w: %w", ErrJournal, err)
			}
			continue
		}
		if err := s.cleanup(ctx, rec, report); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sweeper) expire(ctx context.Context, tag string, image types.Image, report *SweepReport) error {
	log := clog.FromContext(ctx)
	imageID := aws.ToString(image.ImageId)

	// Re-read the AMI; the listing may predate its last mapping change.
	snapshots, err := imageSnapshots(ctx, s.API, imageID)
	if err != nil {
		return err
	}

	if s.DryRun {
		log.Info("dry run, would delete AMI", "image_id", imageID, "snapshots", snapshots)
		return nil
	}

	rec, err := s.Journal.Begin(ctx, journal.Record{
		ImageID:   imageID,
		ImageName: aws.ToString(image.Name),
		Tag:       tag,
		RunID:     s.RunID,
		Snapshots: snapshots,
		Started:   s.now(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJournal, err)
	}
	return s.cleanup(ctx, rec, report)
}

// cleanup deregisters the AMI, then deletes its snapshots, journaling each
// step. Steps already journaled are skipped.
func (s *Sweeper) cleanup(ctx context.Context, rec journal.Record, report *SweepReport) error {
	log := clog.FromContext(ctx)

	if !rec.Deregistered {
		log.Info("deleting AMI", "image_id", rec.ImageID)
		if err := deregisterImage(ctx, s.API, rec.ImageID); err != nil {
			return err
		}
		if err := s.Journal.MarkDeregistered(ctx, rec.Tag, rec.ImageID); err != nil {
			return fmt.Errorf("%w: %w", ErrJournal, err)
		}
		report.Deregistered = append(report.Deregistered, rec.ImageID)
	}

	for _, snapshotID := range rec.Remaining() {
		log.Info("deleting snapshot", "snapshot_id", snapshotID, "image_id", rec.ImageID)
		if err := deleteSnapshot(ctx, s.API, snapshotID); err != nil {
			return err
		}
		if err := s.Journal.MarkSnapshotDeleted(ctx, rec.Tag, rec.ImageID, snapshotID); err != nil {
			return fmt.Errorf("%w: %w", ErrJournal, err)
		}
		report.SnapshotsDeleted = append(report.SnapshotsDeleted, snapshotID)
	}

	if err := s.Journal.Finish(ctx, rec.Tag, rec.ImageID); err != nil {
		return fmt.Errorf("%w: %w", ErrJournal, err)
	}
	return nil
}

// listImages returns every AMI owned by the account whose Name tag equals
// tag, across all result pages.
func listImages(ctx context.Context, api API, tag string) ([]types.Image, error) {
	var images []types.Image
	paginator := ec2.NewDescribeImagesPaginator(api, &ec2.DescribeImagesInput{
		Owners:  []string{"self"},
		Filters: nameTagFilters(tag),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrImageList, err)
		}
		for _, image := range page.Images {
			// tag-key/tag-value match independently; only keep exact Name tags
			if tagValue(image.Tags, tagKeyName) == tag {
				images = append(images, image)
			}
		}
	}
	return images, nil
}

func deregisterImage(ctx context.Context, api API, imageID string) error {
	_, err := api.DeregisterImage(ctx, &ec2.DeregisterImageInput{
		ImageId: aws.String(imageID),
	})
	if isNotFound(err) {
		clog.FromContext(ctx).Info("AMI already deregistered", "image_id", imageID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDeregister, imageID, err)
	}
	return nil
}

func deleteSnapshot(ctx context.Context, api API, snapshotID string) error {
	_, err := api.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{
		SnapshotId: aws.String(snapshotID),
	})
	if isNotFound(err) {
		clog.FromContext(ctx).Info("snapshot already deleted", "snapshot_id", snapshotID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSnapshotDelete, snapshotID, err)
	}
	return nil
}

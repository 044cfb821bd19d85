package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

// WaitOptions bounds AwaitImage.
type WaitOptions struct {
	// Timeout bounds the whole wait. Default: 10m.
	Timeout time.Duration

	// PollInterval is the delay between DescribeImages calls. Default: 5s.
	PollInterval time.Duration

	// WaitAvailable waits for the AMI to reach the 'available' state instead
	// of returning as soon as every EBS mapping references a snapshot.
	WaitAvailable bool
}

func (o *WaitOptions) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
}

var (
	ErrImageNotReady = fmt.Errorf("AMI did not become ready in time")
	ErrImageFailed   = fmt.Errorf("AMI creation failed")
)

// AwaitImage blocks until the AMI's snapshots can be tagged.
//
// By default that is as soon as the AMI is 'available', or 'pending' with a
// snapshot ID on every EBS block device mapping. With WaitAvailable set it
// defers to the SDK's ImageAvailable waiter.
func AwaitImage(ctx context.Context, api API, imageID string, opts WaitOptions) error {
	opts.applyDefaults()
	log := clog.FromContext(ctx).With("image_id", imageID)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if opts.WaitAvailable {
		log.Info("waiting for AMI to become available", "timeout", opts.Timeout)
		waiter := ec2.NewImageAvailableWaiter(api, func(o *ec2.ImageAvailableWaiterOptions) {
			o.MinDelay = opts.PollInterval
			o.MaxDelay = max(o.MaxDelay, opts.PollInterval)
		})
		if err := waiter.Wait(ctx, &ec2.DescribeImagesInput{
			ImageIds: []string{imageID},
		}, opts.Timeout); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrImageNotReady, imageID, err)
		}
		log.Info("AMI is available")
		return nil
	}

	log.Info("waiting for AMI snapshots to start", "timeout", opts.Timeout)
	for {
		ready, err := imageReady(ctx, api, imageID)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %s: %w", ErrImageNotReady, imageID, ctx.Err())
			}
			return err
		}
		if ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrImageNotReady, imageID, ctx.Err())
		case <-time.After(opts.PollInterval):
		}
	}
}

func imageReady(ctx context.Context, api API, imageID string) (bool, error) {
	log := clog.FromContext(ctx).With("image_id", imageID)

	image, err := describeImage(ctx, api, imageID)
	switch {
	// A freshly created AMI can take a moment to become visible.
	case isNotFound(err), errors.Is(err, ErrImageMissing):
		log.Debug("AMI not visible yet, waiting longer")
		return false, nil
	case err != nil:
		return false, err
	}

	switch image.State {
	case types.ImageStateAvailable:
		log.Info("AMI is available")
		return true, nil
	case types.ImageStatePending:
		if pendingSnapshotsReferenced(image) {
			log.Info("AMI snapshots referenced", "snapshots", snapshotIDs(image))
			return true, nil
		}
		log.Debug("AMI snapshots not referenced yet, waiting longer")
		return false, nil
	case types.ImageStateFailed, types.ImageStateError, types.ImageStateInvalid, types.ImageStateDeregistered:
		reason := ""
		if image.StateReason != nil {
			reason = aws.ToString(image.StateReason.Message)
		}
		return false, fmt.Errorf("%w: %s is %s: %s", ErrImageFailed, imageID, image.State, reason)
	default:
		log.Debug("AMI in transitional state, waiting longer", "state", image.State)
		return false, nil
	}
}

// pendingSnapshotsReferenced reports whether the image has at least one EBS
// mapping and every EBS mapping names its snapshot.
func pendingSnapshotsReferenced(image *types.Image) bool {
	ebs := 0
	for _, bdm := range image.BlockDeviceMappings {
		if bdm.Ebs == nil {
			continue
		}
		ebs++
		if aws.ToString(bdm.Ebs.SnapshotId) == "" {
			return false
		}
	}
	return ebs > 0
}

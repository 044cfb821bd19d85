package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

// imageNameLayout renders as "-15Jan2024-10-30".
const imageNameLayout = "-02Jan2006-15-04"

// ImageName is the name given to an AMI of serverName created at t.
func ImageName(serverName string, t time.Time) string {
	return serverName + t.UTC().Format(imageNameLayout)
}

var (
	ErrImageCreate      = fmt.Errorf("failed to create AMI")
	ErrImageCreateIDNil = fmt.Errorf("encountered no error during AMI " +
		"creation, but the returned image ID was nil")
)

// CreateImage requests an AMI of instanceID without rebooting the instance.
// EC2 builds the AMI and its snapshots asynchronously; see AwaitImage.
func CreateImage(ctx context.Context, api API, instanceID, name string) (string, error) {
	result, err := api.CreateImage(ctx, &ec2.CreateImageInput{
		InstanceId: aws.String(instanceID),
		Name:       aws.String(name),
		NoReboot:   aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrImageCreate, err)
	}
	if result.ImageId == nil {
		return "", ErrImageCreateIDNil
	}
	clog.FromContext(ctx).Info("requested AMI", "instance_id", instanceID, "image_id", *result.ImageId, "image_name", name)
	return *result.ImageId, nil
}

var (
	ErrImageDescribe = fmt.Errorf("failed to describe AMI")
	ErrImageMissing  = fmt.Errorf("describe images call produced no errors, " +
		"but returned no image")
)

// describeImage fetches a single AMI by ID.
func describeImage(ctx context.Context, api API, imageID string) (*types.Image, error) {
	result, err := api.DescribeImages(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{imageID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrImageDescribe, imageID, err)
	}
	if len(result.Images) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrImageMissing, imageID)
	}
	return &result.Images[0], nil
}

// snapshotIDs lists the EBS snapshots referenced by the image's block device
// mappings, in mapping order. Instance store and not-yet-populated mappings
// are skipped.
func snapshotIDs(image *types.Image) []string {
	var ids []string
	for _, bdm := range image.BlockDeviceMappings {
		if bdm.Ebs == nil || aws.ToString(bdm.Ebs.SnapshotId) == "" {
			continue
		}
		ids = append(ids, *bdm.Ebs.SnapshotId)
	}
	return ids
}

// imageSnapshots re-reads the AMI and returns its snapshot IDs.
func imageSnapshots(ctx context.Context, api API, imageID string) ([]string, error) {
	image, err := describeImage(ctx, api, imageID)
	if err != nil {
		return nil, err
	}
	return snapshotIDs(image), nil
}

package backup

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/chainguard-dev/clog"
)

var ErrTagging = fmt.Errorf("failed to tag resource")

// TagImage tags the AMI with Name=serverName and every snapshot it references
// with Name=imageName. It returns the IDs of the tagged snapshots.
//
// Snapshots the AMI does not reference yet are not tagged; call AwaitImage
// first.
func TagImage(ctx context.Context, api API, imageID, serverName, imageName string) ([]string, error) {
	if err := tagResource(ctx, api, imageID, serverName); err != nil {
		return nil, err
	}

	snapshots, err := imageSnapshots(ctx, api, imageID)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		clog.FromContext(ctx).Warn("AMI references no snapshots, nothing else to tag", "image_id", imageID)
	}

	for _, snapshotID := range snapshots {
		if err := tagResource(ctx, api, snapshotID, imageName); err != nil {
			return nil, err
		}
	}
	return snapshots, nil
}

func tagResource(ctx context.Context, api API, resourceID, name string) error {
	clog.FromContext(ctx).Info("adding name tag", "resource", resourceID, "name", name)
	_, err := api.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{resourceID},
		Tags:      nameTag(name),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTagging, resourceID, err)
	}
	return nil
}

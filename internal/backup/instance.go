package backup

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

var (
	ErrInstanceLookup   = fmt.Errorf("failed to look up EC2 instance")
	ErrInstanceNotFound = fmt.Errorf("no running EC2 instance found")
)

// FindInstance returns the ID of the first running instance whose Name tag
// equals serverName, in the order EC2 returns them. Zero matches is
// ErrInstanceNotFound.
func FindInstance(ctx context.Context, api API, serverName string) (string, error) {
	log := clog.FromContext(ctx)

	input := &ec2.DescribeInstancesInput{
		Filters: append(nameTagFilters(serverName), types.Filter{
			Name:   aws.String(filterInstanceState),
			Values: []string{string(types.InstanceStateNameRunning)},
		}),
	}

	var matches []string
	paginator := ec2.NewDescribeInstancesPaginator(api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInstanceLookup, err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				if instance.InstanceId == nil || tagValue(instance.Tags, tagKeyName) != serverName {
					continue
				}
				matches = append(matches, *instance.InstanceId)
			}
		}
	}

	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s=%s", ErrInstanceNotFound, tagKeyName, serverName)
	}
	if len(matches) > 1 {
		log.Warn("multiple running instances share the name tag, using the first",
			"name", serverName,
			"instance_id", matches[0],
			"ignored", matches[1:],
		)
	}
	return matches[0], nil
}

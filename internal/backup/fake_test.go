package backup

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// API operation names recorded by fakeEC2.
const (
	opDescribeInstances = "DescribeInstances"
	opCreateImage       = "CreateImage"
	opCreateTags        = "CreateTags"
	opDescribeImages    = "DescribeImages"
	opDeregisterImage   = "DeregisterImage"
	opDeleteSnapshot    = "DeleteSnapshot"
)

// fakeEC2 is an in-memory stand-in for the EC2 API holding instances, AMIs
// and snapshots, recording every call.
type fakeEC2 struct {
	instances []types.Instance
	images    []*types.Image
	snapshots map[string]map[string]string // snapshot ID -> tags

	// CreateImage behavior
	newImageID        string
	newImageSnapshots []string
	newImageState     types.ImageState
	now               time.Time

	// imagePageSize > 0 paginates DescribeImages listings.
	imagePageSize int

	// Hooks and error injection.
	onDescribeImage     func(*types.Image)
	describeInstanceErr error
	createImageErr      error
	createTagsErr       error
	deregisterErr       error
	deleteSnapshotErr   func(snapshotID string) error

	// Track operations for testing.
	operations []string
	mutations  []string
}

var _ API = (*fakeEC2)(nil)

func newFakeEC2() *fakeEC2 {
	return &fakeEC2{snapshots: make(map[string]map[string]string)}
}

func (f *fakeEC2) addInstance(id, name string, state types.InstanceStateName) {
	f.instances = append(f.instances, types.Instance{
		InstanceId: aws.String(id),
		State:      &types.InstanceState{Name: state},
		Tags:       nameTag(name),
	})
}

func (f *fakeEC2) addImage(id, tag string, created time.Time, snapshots ...string) *types.Image {
	image := &types.Image{
		ImageId:      aws.String(id),
		Name:         aws.String(ImageName(tag, created)),
		CreationDate: aws.String(created.UTC().Format("2006-01-02T15:04:05.000Z")),
		State:        types.ImageStateAvailable,
		Tags:         nameTag(tag),
	}
	for i, s := range snapshots {
		f.snapshots[s] = map[string]string{}
		image.BlockDeviceMappings = append(image.BlockDeviceMappings, types.BlockDeviceMapping{
			DeviceName: aws.String("/dev/sd" + string(rune('a'+i))),
			Ebs:        &types.EbsBlockDevice{SnapshotId: aws.String(s)},
		})
	}
	f.images = append(f.images, image)
	return image
}

func (f *fakeEC2) image(id string) *types.Image {
	for _, image := range f.images {
		if aws.ToString(image.ImageId) == id {
			return image
		}
	}
	return nil
}

func (f *fakeEC2) record(op string, args ...string) {
	f.operations = append(f.operations, op)
	switch op {
	case opCreateImage, opCreateTags, opDeregisterImage, opDeleteSnapshot:
		f.mutations = append(f.mutations, strings.Join(append([]string{op}, args...), " "))
	}
}

func notFound(code, id string) error {
	return &smithy.GenericAPIError{
		Code:    code,
		Message: fmt.Sprintf("The resource '%s' does not exist", id),
	}
}

func matchesFilters(tags []types.Tag, filters []types.Filter, state types.InstanceStateName) bool {
	for _, filter := range filters {
		switch aws.ToString(filter.Name) {
		case filterTagKey:
			if !slices.ContainsFunc(tags, func(t types.Tag) bool {
				return slices.Contains(filter.Values, aws.ToString(t.Key))
			}) {
				return false
			}
		case filterTagValue:
			if !slices.ContainsFunc(tags, func(t types.Tag) bool {
				return slices.Contains(filter.Values, aws.ToString(t.Value))
			}) {
				return false
			}
		case filterInstanceState:
			if !slices.Contains(filter.Values, string(state)) {
				return false
			}
		}
	}
	return true
}

func (f *fakeEC2) DescribeInstances(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.record(opDescribeInstances)
	if f.describeInstanceErr != nil {
		return nil, f.describeInstanceErr
	}

	out := &ec2.DescribeInstancesOutput{}
	for _, instance := range f.instances {
		if matchesFilters(instance.Tags, params.Filters, instance.State.Name) {
			out.Reservations = append(out.Reservations, types.Reservation{
				Instances: []types.Instance{instance},
			})
		}
	}
	return out, nil
}

func (f *fakeEC2) CreateImage(_ context.Context, params *ec2.CreateImageInput, _ ...func(*ec2.Options)) (*ec2.CreateImageOutput, error) {
	f.record(opCreateImage, aws.ToString(params.InstanceId), aws.ToString(params.Name), strconv.FormatBool(aws.ToBool(params.NoReboot)))
	if f.createImageErr != nil {
		return nil, f.createImageErr
	}

	id := f.newImageID
	if id == "" {
		id = fmt.Sprintf("ami-%03d", len(f.images)+1)
	}
	image := f.addImage(id, "", f.now, f.newImageSnapshots...)
	image.Name = params.Name
	image.Tags = nil
	image.State = f.newImageState
	if image.State == "" {
		image.State = types.ImageStatePending
	}
	return &ec2.CreateImageOutput{ImageId: aws.String(id)}, nil
}

func (f *fakeEC2) CreateTags(_ context.Context, params *ec2.CreateTagsInput, _ ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	for _, resource := range params.Resources {
		for _, tag := range params.Tags {
			f.record(opCreateTags, resource, aws.ToString(tag.Key)+"="+aws.ToString(tag.Value))
		}
	}
	if f.createTagsErr != nil {
		return nil, f.createTagsErr
	}

	for _, resource := range params.Resources {
		if image := f.image(resource); image != nil {
			for _, tag := range params.Tags {
				image.Tags = slices.DeleteFunc(image.Tags, func(t types.Tag) bool {
					return aws.ToString(t.Key) == aws.ToString(tag.Key)
				})
				image.Tags = append(image.Tags, tag)
			}
			continue
		}
		tags, ok := f.snapshots[resource]
		if !ok {
			return nil, notFound("InvalidID", resource)
		}
		for _, tag := range params.Tags {
			tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
		}
	}
	return &ec2.CreateTagsOutput{}, nil
}

func (f *fakeEC2) DescribeImages(_ context.Context, params *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	f.record(opDescribeImages, params.ImageIds...)

	out := &ec2.DescribeImagesOutput{}
	if len(params.ImageIds) > 0 {
		for _, id := range params.ImageIds {
			image := f.image(id)
			if image == nil {
				return nil, notFound("InvalidAMIID.NotFound", id)
			}
			if f.onDescribeImage != nil {
				f.onDescribeImage(image)
			}
			out.Images = append(out.Images, *image)
		}
		return out, nil
	}

	var matched []types.Image
	for _, image := range f.images {
		if matchesFilters(image.Tags, params.Filters, "") {
			matched = append(matched, *image)
		}
	}
	if f.imagePageSize <= 0 {
		out.Images = matched
		return out, nil
	}

	start := 0
	if params.NextToken != nil {
		start, _ = strconv.Atoi(*params.NextToken)
	}
	end := min(start+f.imagePageSize, len(matched))
	out.Images = matched[start:end]
	if end < len(matched) {
		out.NextToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeEC2) DeregisterImage(_ context.Context, params *ec2.DeregisterImageInput, _ ...func(*ec2.Options)) (*ec2.DeregisterImageOutput, error) {
	id := aws.ToString(params.ImageId)
	f.record(opDeregisterImage, id)
	if f.deregisterErr != nil {
		return nil, f.deregisterErr
	}

	image := f.image(id)
	if image == nil {
		return nil, notFound("InvalidAMIID.NotFound", id)
	}
	f.images = slices.DeleteFunc(f.images, func(i *types.Image) bool { return i == image })
	return &ec2.DeregisterImageOutput{}, nil
}

func (f *fakeEC2) DeleteSnapshot(_ context.Context, params *ec2.DeleteSnapshotInput, _ ...func(*ec2.Options)) (*ec2.DeleteSnapshotOutput, error) {
	id := aws.ToString(params.SnapshotId)
	f.record(opDeleteSnapshot, id)
	if f.deleteSnapshotErr != nil {
		if err := f.deleteSnapshotErr(id); err != nil {
			return nil, err
		}
	}

	if _, ok := f.snapshots[id]; !ok {
		return nil, notFound("InvalidSnapshot.NotFound", id)
	}
	delete(f.snapshots, id)
	return &ec2.DeleteSnapshotOutput{}, nil
}

package backup

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageName(t *testing.T) {
	at := time.Date(2024, time.January, 15, 10, 30, 59, 0, time.UTC)
	assert.Equal(t, "MyWebServer-15Jan2024-10-30", ImageName("MyWebServer", at))

	// Always rendered in UTC
	pst := time.FixedZone("PST", -8*60*60)
	assert.Equal(t, "MyWebServer-15Jan2024-10-30", ImageName("MyWebServer", at.In(pst)))

	// Single digit days and hours are zero padded
	early := time.Date(2023, time.March, 5, 4, 7, 0, 0, time.UTC)
	assert.Equal(t, "db-05Mar2023-04-07", ImageName("db", early))

	pattern := regexp.MustCompile(`^web-\d{2}[A-Z][a-z]{2}\d{4}-\d{2}-\d{2}$`)
	assert.Regexp(t, pattern, ImageName("web", time.Now()))
}

func TestCreateImage(t *testing.T) {
	t.Run("no-reboot", func(t *testing.T) {
		api := newFakeEC2()
		api.newImageID = "ami-123"

		id, err := CreateImage(t.Context(), api, "i-0abc", "MyWebServer-15Jan2024-10-30")
		require.NoError(t, err)
		assert.Equal(t, "ami-123", id)
		assert.Equal(t, []string{"CreateImage i-0abc MyWebServer-15Jan2024-10-30 true"}, api.mutations)
	})
	t.Run("error", func(t *testing.T) {
		api := newFakeEC2()
		api.createImageErr = errors.New("unauthorized")

		_, err := CreateImage(t.Context(), api, "i-0abc", "name")
		require.ErrorIs(t, err, ErrImageCreate)
	})
}

func TestSnapshotIDs(t *testing.T) {
	image := &types.Image{
		BlockDeviceMappings: []types.BlockDeviceMapping{
			{Ebs: &types.EbsBlockDevice{SnapshotId: aws.String("snap-1")}},
			{VirtualName: aws.String("ephemeral0")},
			{Ebs: &types.EbsBlockDevice{}},
			{Ebs: &types.EbsBlockDevice{SnapshotId: aws.String("snap-2")}},
		},
	}
	assert.Equal(t, []string{"snap-1", "snap-2"}, snapshotIDs(image))
	assert.Empty(t, snapshotIDs(&types.Image{}))
}

package backup

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindInstance(t *testing.T) {
	t.Run("single-running-match", func(t *testing.T) {
		api := newFakeEC2()
		api.addInstance("i-stopped", "MyWebServer", types.InstanceStateNameStopped)
		api.addInstance("i-other", "OtherServer", types.InstanceStateNameRunning)
		api.addInstance("i-0abc", "MyWebServer", types.InstanceStateNameRunning)

		id, err := FindInstance(t.Context(), api, "MyWebServer")
		require.NoError(t, err)
		assert.Equal(t, "i-0abc", id)
		assert.Equal(t, []string{opDescribeInstances}, api.operations)
	})
	t.Run("first-of-many", func(t *testing.T) {
		api := newFakeEC2()
		api.addInstance("i-first", "MyWebServer", types.InstanceStateNameRunning)
		api.addInstance("i-second", "MyWebServer", types.InstanceStateNameRunning)

		id, err := FindInstance(t.Context(), api, "MyWebServer")
		require.NoError(t, err)
		assert.Equal(t, "i-first", id)
	})
	t.Run("no-match", func(t *testing.T) {
		api := newFakeEC2()
		api.addInstance("i-stopped", "MyWebServer", types.InstanceStateNameStopped)

		id, err := FindInstance(t.Context(), api, "MyWebServer")
		require.ErrorIs(t, err, ErrInstanceNotFound)
		assert.Empty(t, id)
	})
	t.Run("name-tag-must-match-exactly", func(t *testing.T) {
		// Matches tag-key=Name and tag-value=MyWebServer, but not on the same tag.
		api := newFakeEC2()
		api.addInstance("i-0abc", "SomethingElse", types.InstanceStateNameRunning)
		api.instances[0].Tags = append(api.instances[0].Tags, nameTag("MyWebServer")[0])
		api.instances[0].Tags[1].Key = ptr("Role")

		_, err := FindInstance(t.Context(), api, "MyWebServer")
		require.ErrorIs(t, err, ErrInstanceNotFound)
	})
	t.Run("lookup-error", func(t *testing.T) {
		api := newFakeEC2()
		api.describeInstanceErr = errors.New("throttled")

		_, err := FindInstance(t.Context(), api, "MyWebServer")
		require.ErrorIs(t, err, ErrInstanceLookup)
		assert.NotErrorIs(t, err, ErrInstanceNotFound)
	})
}

func ptr[T any](v T) *T { return &v }

package backup

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagImage(t *testing.T) {
	t.Run("image-gets-server-name-snapshots-get-image-name", func(t *testing.T) {
		api := newFakeEC2()
		api.addImage("ami-123", "", time.Now(), "snap-abc", "snap-def")

		snapshots, err := TagImage(t.Context(), api, "ami-123", "MyWebServer", "MyWebServer-15Jan2024-10-30")
		require.NoError(t, err)
		assert.Equal(t, []string{"snap-abc", "snap-def"}, snapshots)
		assert.Equal(t, []string{
			"CreateTags ami-123 Name=MyWebServer",
			"CreateTags snap-abc Name=MyWebServer-15Jan2024-10-30",
			"CreateTags snap-def Name=MyWebServer-15Jan2024-10-30",
		}, api.mutations)

		assert.Equal(t, "MyWebServer", tagValue(api.image("ami-123").Tags, tagKeyName))
		assert.Equal(t, "MyWebServer-15Jan2024-10-30", api.snapshots["snap-abc"][tagKeyName])
		assert.Equal(t, "MyWebServer-15Jan2024-10-30", api.snapshots["snap-def"][tagKeyName])
	})
	t.Run("no-snapshots-yet", func(t *testing.T) {
		api := newFakeEC2()
		api.addImage("ami-123", "", time.Now())

		snapshots, err := TagImage(t.Context(), api, "ami-123", "MyWebServer", "MyWebServer-15Jan2024-10-30")
		require.NoError(t, err)
		assert.Empty(t, snapshots)
		assert.Equal(t, []string{"CreateTags ami-123 Name=MyWebServer"}, api.mutations)
	})
	t.Run("tagging-error", func(t *testing.T) {
		api := newFakeEC2()
		api.addImage("ami-123", "", time.Now(), "snap-abc")
		api.createTagsErr = errors.New("denied")

		_, err := TagImage(t.Context(), api, "ami-123", "MyWebServer", "MyWebServer-15Jan2024-10-30")
		require.ErrorIs(t, err, ErrTagging)
		assert.Len(t, api.mutations, 1, "stops at the first failure")
	})
}

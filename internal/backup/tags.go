package backup

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const (
	// 'Name' is the tag key AWS itself renders in the console; both instance
	// lookup and the retention sweep match on it.
	tagKeyName = "Name"

	filterTagKey        = "tag-key"
	filterTagValue      = "tag-value"
	filterInstanceState = "instance-state-name"
)

func nameTag(value string) []types.Tag {
	return []types.Tag{
		{
			Key:   aws.String(tagKeyName),
			Value: aws.String(value),
		},
	}
}

// nameTagFilters matches resources carrying a 'Name' tag key and a tag with
// the given value.
func nameTagFilters(value string) []types.Filter {
	return []types.Filter{
		{
			Name:   aws.String(filterTagKey),
			Values: []string{tagKeyName},
		},
		{
			Name:   aws.String(filterTagValue),
			Values: []string{value},
		},
	}
}

// tagValue returns the value of key in tags, or "" when absent.
func tagValue(tags []types.Tag, key string) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value)
		}
	}
	return ""
}

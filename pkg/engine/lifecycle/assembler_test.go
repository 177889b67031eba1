package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleOrdering(t *testing.T) {
	c := NewCorrelator()
	// Commit in deliberately scrambled region/id order.
	require.NoError(t, c.Commit([]Event{
		launch(key("us-west-2", "i-b"), 1, "t3.micro"),
		launch(key("ap-south-1", "i-z"), 1, "t3.micro"),
		launch(key("us-west-2", "i-a"), 1, "t3.micro"),
		launch(key("ap-south-1", "i-a"), 1, "t3.micro"),
		terminate(key("eu-west-1", "i-x"), 3),
		terminate(key("ap-northeast-1", "i-y"), 3),
	}, nil))

	result := c.Finalize()

	var got []string
	for _, rec := range result.Records {
		got = append(got, rec.Key.String())
	}
	assert.Equal(t, []string{
		"ap-south-1/i-a",
		"ap-south-1/i-z",
		"us-west-2/i-a",
		"us-west-2/i-b",
	}, got)

	var orphans []string
	for _, k := range result.Orphans {
		orphans = append(orphans, k.String())
	}
	assert.Equal(t, []string{
		"ap-northeast-1/i-y",
		"eu-west-1/i-x",
	}, orphans)
}

func TestAssembleSameKeyDifferentRegions(t *testing.T) {
	// Identical instance ids in two regions stay distinct records.
	c := NewCorrelator()
	require.NoError(t, c.Commit([]Event{
		launch(key("us-east-1", "i-1"), 1, "t3.micro"),
		launch(key("eu-west-1", "i-1"), 2, "m5.large"),
		terminate(key("us-east-1", "i-1"), 5),
	}, nil))

	result := c.Finalize()
	require.Len(t, result.Records, 2)
	assert.Equal(t, "eu-west-1", result.Records[0].Key.Region)
	assert.True(t, result.Records[0].StillRunning())
	assert.Equal(t, "us-east-1", result.Records[1].Key.Region)
	assert.False(t, result.Records[1].StillRunning())
}

func TestWindowValidate(t *testing.T) {
	assert.Error(t, Window{}.Validate())
	assert.Error(t, Window{Start: day(10), End: day(2)}.Validate())
	assert.NoError(t, Window{Start: day(2), End: day(10)}.Validate())
	assert.NoError(t, Window{Start: day(2), End: day(2)}.Validate())
}

package aws

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrSkyle/fleetledger/pkg/engine/lifecycle"
)

// mockTrailClient implements CloudTrailAPI for testing.
type mockTrailClient struct {
	pages  []*cloudtrail.LookupEventsOutput
	inputs []*cloudtrail.LookupEventsInput
	calls  int
}

func (m *mockTrailClient) LookupEvents(ctx context.Context, params *cloudtrail.LookupEventsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error) {
	m.inputs = append(m.inputs, params)
	out := m.pages[m.calls]
	m.calls++
	return out, nil
}

func auditSourceWith(mock *mockTrailClient) *AuditSource {
	return &AuditSource{
		base:      aws.Config{},
		newClient: func(cfg aws.Config) CloudTrailAPI { return mock },
	}
}

var trailWindow = lifecycle.Window{
	Start: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, time.January, 31, 23, 59, 59, 0, time.UTC),
}

func TestLaunchEventsFanOut(t *testing.T) {
	// One RunInstances entry covering two instances.
	payload := `{"eventTime":"2026-01-05T10:00:00Z","responseElements":{"instancesSet":{"items":[` +
		`{"instanceId":"i-aaa","instanceType":"t3.micro"},` +
		`{"instanceId":"i-bbb","instanceType":"t3.micro"}]}}}`

	mock := &mockTrailClient{
		pages: []*cloudtrail.LookupEventsOutput{
			{
				Events: []types.Event{
					{
						EventName:       aws.String("RunInstances"),
						EventTime:       aws.Time(time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC)),
						CloudTrailEvent: aws.String(payload),
					},
				},
			},
		},
	}

	raws, err := auditSourceWith(mock).LaunchEvents(context.Background(), "us-east-1", trailWindow)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "i-aaa", raws[0].InstanceID)
	assert.Equal(t, "t3.micro", raws[0].InstanceType)
	assert.Equal(t, "2026-01-05T10:00:00Z", raws[0].OccurredAt)
	assert.Equal(t, "i-bbb", raws[1].InstanceID)

	// Lookup must be scoped to the event name and window.
	require.Len(t, mock.inputs, 1)
	input := mock.inputs[0]
	require.Len(t, input.LookupAttributes, 1)
	assert.Equal(t, types.LookupAttributeKeyEventName, input.LookupAttributes[0].AttributeKey)
	assert.Equal(t, "RunInstances", aws.ToString(input.LookupAttributes[0].AttributeValue))
	assert.Equal(t, trailWindow.Start, *input.StartTime)
	assert.Equal(t, trailWindow.End, *input.EndTime)
}

func TestTerminationEventsPagination(t *testing.T) {
	page := func(id string, next *string) *cloudtrail.LookupEventsOutput {
		payload := `{"eventTime":"2026-01-07T00:00:00Z","responseElements":{"instancesSet":{"items":[{"instanceId":"` + id + `"}]}}}`
		return &cloudtrail.LookupEventsOutput{
			Events: []types.Event{
				{EventName: aws.String("TerminateInstances"), CloudTrailEvent: aws.String(payload)},
			},
			NextToken: next,
		}
	}

	mock := &mockTrailClient{
		pages: []*cloudtrail.LookupEventsOutput{
			page("i-first", aws.String("token-1")),
			page("i-second", nil),
		},
	}

	raws, err := auditSourceWith(mock).TerminationEvents(context.Background(), "eu-west-1", trailWindow)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "i-first", raws[0].InstanceID)
	assert.Equal(t, "i-second", raws[1].InstanceID)
	assert.Equal(t, 2, mock.calls)
	assert.Equal(t, "TerminateInstances", aws.ToString(mock.inputs[0].LookupAttributes[0].AttributeValue))
}

func TestExpandTrailEventResourceFallback(t *testing.T) {
	// Older trail formats carry the instance only in the resource list.
	event := types.Event{
		EventTime: aws.Time(time.Date(2026, time.January, 9, 12, 0, 0, 0, time.UTC)),
		Resources: []types.Resource{
			{ResourceType: aws.String("AWS::EC2::Instance"), ResourceName: aws.String("i-old")},
			{ResourceType: aws.String("AWS::EC2::SecurityGroup"), ResourceName: aws.String("sg-1")},
		},
	}

	raws := expandTrailEvent(event)
	require.Len(t, raws, 1)
	assert.Equal(t, "i-old", raws[0].InstanceID)
	assert.Equal(t, "2026-01-09T12:00:00Z", raws[0].OccurredAt)
}

// An undecodable payload still surfaces as a record, so the normalizer can
// reject and count it rather than losing it silently.
func TestExpandTrailEventUndecodablePayload(t *testing.T) {
	event := types.Event{
		EventTime:       aws.Time(time.Date(2026, time.January, 3, 0, 0, 0, 0, time.UTC)),
		CloudTrailEvent: aws.String("{corrupted"),
	}

	raws := expandTrailEvent(event)
	require.Len(t, raws, 1)
	assert.Empty(t, raws[0].InstanceID)
	assert.Equal(t, "2026-01-03T00:00:00Z", raws[0].OccurredAt)
}

package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"

	"github.com/DrSkyle/fleetledger/pkg/engine/lifecycle"
	"github.com/DrSkyle/fleetledger/pkg/engine/source"
)

// CloudTrailAPI is the subset of the CloudTrail client the audit source uses.
type CloudTrailAPI interface {
	LookupEvents(ctx context.Context, params *cloudtrail.LookupEventsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error)
}

// AuditSource retrieves launch and termination evidence from CloudTrail. One
// regional client per lookup; pagination is handled here, never upstream.
type AuditSource struct {
	base      aws.Config
	newClient func(cfg aws.Config) CloudTrailAPI
}

func NewAuditSource(cfg aws.Config) *AuditSource {
	return &AuditSource{
		base: cfg,
		newClient: func(cfg aws.Config) CloudTrailAPI {
			return cloudtrail.NewFromConfig(cfg)
		},
	}
}

// LaunchEvents returns the raw RunInstances audit entries for the window.
func (s *AuditSource) LaunchEvents(ctx context.Context, region string, w lifecycle.Window) ([]source.RawEvent, error) {
	return s.lookup(ctx, region, "RunInstances", w)
}

// TerminationEvents returns the raw TerminateInstances audit entries.
func (s *AuditSource) TerminationEvents(ctx context.Context, region string, w lifecycle.Window) ([]source.RawEvent, error) {
	return s.lookup(ctx, region, "TerminateInstances", w)
}

func (s *AuditSource) lookup(ctx context.Context, region, eventName string, w lifecycle.Window) ([]source.RawEvent, error) {
	cfg := s.base.Copy()
	cfg.Region = region
	client := s.newClient(cfg)

	input := &cloudtrail.LookupEventsInput{
		LookupAttributes: []types.LookupAttribute{
			{
				AttributeKey:   types.LookupAttributeKeyEventName,
				AttributeValue: aws.String(eventName),
			},
		},
		StartTime:  aws.Time(w.Start),
		EndTime:    aws.Time(w.End),
		MaxResults: aws.Int32(50),
	}

	var out []source.RawEvent
	paginator := cloudtrail.NewLookupEventsPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("cloudtrail lookup %s in %s: %w", eventName, region, err)
		}
		for _, event := range page.Events {
			out = append(out, expandTrailEvent(event)...)
		}
	}
	return out, nil
}

// trailPayload is the slice of the embedded CloudTrail JSON document this
// system cares about. RunInstances and TerminateInstances both report the
// affected instances under responseElements.instancesSet.
type trailPayload struct {
	EventTime        string `json:"eventTime"`
	ResponseElements struct {
		InstancesSet struct {
			Items []struct {
				InstanceID   string `json:"instanceId"`
				InstanceType string `json:"instanceType"`
			} `json:"items"`
		} `json:"instancesSet"`
	} `json:"responseElements"`
}

// expandTrailEvent fans one audit entry out to one raw record per affected
// instance (RunInstances with MinCount > 1 launches several). Undecodable
// payloads still yield a record so the normalizer can reject and count it
// instead of it vanishing silently.
func expandTrailEvent(event types.Event) []source.RawEvent {
	occurredAt := ""
	if event.EventTime != nil {
		occurredAt = event.EventTime.UTC().Format(time.RFC3339)
	}

	var payload trailPayload
	if event.CloudTrailEvent != nil {
		if err := json.Unmarshal([]byte(*event.CloudTrailEvent), &payload); err == nil && payload.EventTime != "" {
			occurredAt = payload.EventTime
		}
	}

	var out []source.RawEvent
	for _, item := range payload.ResponseElements.InstancesSet.Items {
		out = append(out, source.RawEvent{
			InstanceID:   item.InstanceID,
			InstanceType: item.InstanceType,
			OccurredAt:   occurredAt,
		})
	}
	if len(out) > 0 {
		return out
	}

	// Older trail formats omit responseElements; fall back to the resource
	// list before giving up.
	for _, res := range event.Resources {
		if aws.ToString(res.ResourceType) != "AWS::EC2::Instance" {
			continue
		}
		out = append(out, source.RawEvent{
			InstanceID: aws.ToString(res.ResourceName),
			OccurredAt: occurredAt,
		})
	}
	if len(out) > 0 {
		return out
	}

	return []source.RawEvent{{OccurredAt: occurredAt}}
}

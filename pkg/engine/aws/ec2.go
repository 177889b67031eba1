package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/DrSkyle/fleetledger/pkg/engine/source"
)

// EC2API is the subset of the EC2 client the snapshot source uses.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// EC2Source lists currently-running instances per region and enumerates the
// account's enabled regions.
type EC2Source struct {
	base      aws.Config
	newClient func(cfg aws.Config) EC2API
}

func NewEC2Source(cfg aws.Config) *EC2Source {
	return &EC2Source{
		base: cfg,
		newClient: func(cfg aws.Config) EC2API {
			return ec2.NewFromConfig(cfg)
		},
	}
}

// RunningInstances returns the raw running-snapshot listing for one region.
// Only running instances are requested; the window filter belongs to the
// normalizer, not this source.
func (s *EC2Source) RunningInstances(ctx context.Context, region string) ([]source.RawInstance, error) {
	cfg := s.base.Copy()
	cfg.Region = region
	client := s.newClient(cfg)

	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{
				Name:   aws.String("instance-state-name"),
				Values: []string{"running"},
			},
		},
	}

	var out []source.RawInstance
	paginator := ec2.NewDescribeInstancesPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances in %s: %w", region, err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				raw := source.RawInstance{
					InstanceID:   aws.ToString(instance.InstanceId),
					InstanceType: string(instance.InstanceType),
				}
				if instance.LaunchTime != nil {
					raw.LaunchedAt = instance.LaunchTime.UTC().Format(time.RFC3339)
				}
				out = append(out, raw)
			}
		}
	}
	return out, nil
}

// Regions enumerates the account's enabled regions, sorted for deterministic
// dispatch order.
func (s *EC2Source) Regions(ctx context.Context) ([]string, error) {
	client := s.newClient(s.base.Copy())

	result, err := client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		AllRegions: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe regions: %w", err)
	}

	var regions []string
	for _, r := range result.Regions {
		if r.RegionName != nil {
			regions = append(regions, *r.RegionName)
		}
	}
	sort.Strings(regions)
	return regions, nil
}

// Package discovery finds the VPCs carrying coverage tags and announces them
// as scope updates for the account they live in.
package discovery

import (
	"context"
	"strings"

	"github.com/alertlogic/scopesync/pkg/alertlogic"
	"github.com/alertlogic/scopesync/pkg/scope"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/common-fate/clio"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type EC2API interface {
	DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
}

// CoverageTag is a tag key and value marking a VPC as protected.
type CoverageTag struct {
	Key   string
	Value string
}

func (t CoverageTag) String() string {
	return t.Key + ":" + t.Value
}

// ParseCoverageTags parses a comma separated list of key:value pairs. The
// value may itself contain colons.
func ParseCoverageTags(s string) ([]CoverageTag, error) {
	var tags []CoverageTag
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		k, v, ok := strings.Cut(item, ":")
		if !ok || k == "" {
			return nil, errors.Errorf("coverage tag %q is not in key:value form", item)
		}
		tags = append(tags, CoverageTag{Key: k, Value: v})
	}
	if len(tags) == 0 {
		return nil, errors.New("no coverage tags configured")
	}
	return tags, nil
}

// Matches reports whether any tag equals one of the coverage tags exactly.
func Matches(tags []types.Tag, coverage []CoverageTag) bool {
	for _, t := range tags {
		for _, c := range coverage {
			if aws.ToString(t.Key) == c.Key && aws.ToString(t.Value) == c.Value {
				return true
			}
		}
	}
	return false
}

type Discoverer struct {
	// EC2 returns a client for region.
	EC2  func(region string) EC2API
	Tags []CoverageTag
}

// VPCs returns a vpc asset for every VPC in region carrying a coverage tag.
func (d *Discoverer) VPCs(ctx context.Context, region string) ([]scope.Asset, error) {
	keys := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		keys = append(keys, t.Key)
	}
	input := &ec2.DescribeVpcsInput{
		Filters:    []types.Filter{{Name: aws.String("tag-key"), Values: keys}},
		MaxResults: aws.Int32(100),
	}

	assets := []scope.Asset{}
	paginator := ec2.NewDescribeVpcsPaginator(d.EC2(region), input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "describing VPCs in %s", region)
		}
		for _, vpc := range page.Vpcs {
			if vpc.VpcId == nil || !Matches(vpc.Tags, d.Tags) {
				continue
			}
			assets = append(assets, scope.Asset{
				Key:  scope.AssetKey(region, alertlogic.AssetVPC, *vpc.VpcId),
				Type: alertlogic.AssetVPC,
			})
		}
	}
	clio.Debugw("discovered VPCs", "region", region, "count", len(assets))
	return assets, nil
}

// Discover runs VPCs for every region concurrently. Assets are returned in
// region order.
func (d *Discoverer) Discover(ctx context.Context, regions []string) ([]scope.Asset, error) {
	perRegion := make([][]scope.Asset, len(regions))
	g, ctx := errgroup.WithContext(ctx)
	for i, region := range regions {
		i, region := i, region
		g.Go(func() error {
			assets, err := d.VPCs(ctx, region)
			if err != nil {
				return err
			}
			perRegion[i] = assets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := []scope.Asset{}
	for _, assets := range perRegion {
		all = append(all, assets...)
	}
	clio.Infow("discovered protection scope", "regions", regions, "assets", len(all))
	return all, nil
}

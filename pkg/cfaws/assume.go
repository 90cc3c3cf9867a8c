package cfaws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/common-fate/clio"
	"github.com/pkg/errors"
)

// ControlTowerExecutionRole is the role Control Tower provisions in every
// enrolled account for the management account to assume.
const ControlTowerExecutionRole = "AWSControlTowerExecution"

type AssumeRoleAPI interface {
	CallerIdentityAPI
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// AssumeRole returns a copy of base whose credentials are those of roleName
// in accountID. The role ARN uses the partition of the current credentials.
func AssumeRole(ctx context.Context, client AssumeRoleAPI, base aws.Config, accountID, roleName, externalID string) (aws.Config, error) {
	caller, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "calling sts:GetCallerIdentity")
	}
	partition := "aws"
	if a, err := arn.Parse(aws.ToString(caller.Arn)); err == nil {
		partition = a.Partition
	}

	roleARN := arn.ARN{Partition: partition, Service: "iam", AccountID: accountID, Resource: "role/" + roleName}.String()
	in := &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleARN),
		RoleSessionName: aws.String(accountID + "-" + roleName),
	}
	if externalID != "" {
		in.ExternalId = aws.String(externalID)
	}
	out, err := client.AssumeRole(ctx, in)
	if err != nil {
		return aws.Config{}, errors.Wrapf(err, "assuming %s", roleARN)
	}
	if out.Credentials == nil {
		return aws.Config{}, errors.Errorf("assuming %s returned no credentials", roleARN)
	}

	cfg := base.Copy()
	c := out.Credentials
	cfg.Credentials = aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		aws.ToString(c.AccessKeyId), aws.ToString(c.SecretAccessKey), aws.ToString(c.SessionToken)))
	clio.Infow("assumed role", "account", accountID, "role", roleName)
	return cfg, nil
}

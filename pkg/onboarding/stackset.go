package onboarding

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/common-fate/clio"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
)

type CloudFormationAPI interface {
	CreateStackSet(ctx context.Context, params *cloudformation.CreateStackSetInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackSetOutput, error)
	CreateStackInstances(ctx context.Context, params *cloudformation.CreateStackInstancesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackInstancesOutput, error)
	DescribeStackSetOperation(ctx context.Context, params *cloudformation.DescribeStackSetOperationInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackSetOperationOutput, error)
	DescribeStackInstance(ctx context.Context, params *cloudformation.DescribeStackInstanceInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackInstanceOutput, error)
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

var capabilities = []types.Capability{
	types.CapabilityCapabilityIam,
	types.CapabilityCapabilityNamedIam,
	types.CapabilityCapabilityAutoExpand,
}

// stackSets manages self-managed stack sets administered by the Control
// Tower stack set role of the management account.
type stackSets struct {
	api          CloudFormationAPI
	adminRoleARN string
	poll         time.Duration
	maxWait      time.Duration
}

func adminRoleARN(managementAccount string) string {
	return "arn:aws:iam::" + managementAccount + ":role/service-role/AWSControlTowerStackSetRole"
}

// create creates the stack set. An existing stack set of the same name is
// kept as is.
func (s stackSets) create(ctx context.Context, name, templateURL string, params []types.Parameter) error {
	_, err := s.api.CreateStackSet(ctx, &cloudformation.CreateStackSetInput{
		StackSetName:          aws.String(name),
		TemplateURL:           aws.String(templateURL),
		Parameters:            params,
		AdministrationRoleARN: aws.String(s.adminRoleARN),
		ExecutionRoleName:     aws.String(executionRole),
		Capabilities:          capabilities,
	})
	var exists *types.NameAlreadyExistsException
	switch {
	case errors.As(err, &exists):
		clio.Infow("stack set already exists", "stack_set", name)
		return nil
	case err != nil:
		return errors.Wrapf(err, "creating stack set %s", name)
	}
	clio.Infow("created stack set", "stack_set", name, "parameters", len(params))
	return nil
}

// createInstances deploys the stack set to every account in every region
// and returns the operation id.
func (s stackSets) createInstances(ctx context.Context, name string, accounts, regions []string) (string, error) {
	out, err := s.api.CreateStackInstances(ctx, &cloudformation.CreateStackInstancesInput{
		StackSetName: aws.String(name),
		Accounts:     accounts,
		Regions:      regions,
	})
	if err != nil {
		return "", errors.Wrapf(err, "creating %s stack instances", name)
	}
	id := aws.ToString(out.OperationId)
	clio.Infow("launched stack instances", "stack_set", name, "accounts", accounts, "regions", regions, "operation", id)
	return id, nil
}

// wait polls the operation until it is no longer in progress. A failed or
// stopped operation is an error.
func (s stackSets) wait(ctx context.Context, name, operationID string) error {
	var status types.StackSetOperationStatus
	b := retry.WithMaxDuration(s.maxWait, retry.NewConstant(s.poll))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		out, err := s.api.DescribeStackSetOperation(ctx, &cloudformation.DescribeStackSetOperationInput{
			StackSetName: aws.String(name),
			OperationId:  aws.String(operationID),
		})
		if err != nil {
			return errors.Wrapf(err, "describing %s operation %s", name, operationID)
		}
		if out.StackSetOperation != nil {
			status = out.StackSetOperation.Status
		}
		switch status {
		case types.StackSetOperationStatusRunning, types.StackSetOperationStatusQueued, types.StackSetOperationStatusStopping:
			return retry.RetryableError(errors.Errorf("%s operation %s is %s", name, operationID, status))
		}
		return nil
	})
	if err != nil {
		return err
	}
	switch status {
	case types.StackSetOperationStatusFailed, types.StackSetOperationStatusStopped:
		return errors.Errorf("%s operation %s is %s", name, operationID, status)
	}
	clio.Infow("stack set operation finished", "stack_set", name, "operation", operationID, "status", status)
	return nil
}

// deploy creates stack instances and waits for them.
func (s stackSets) deploy(ctx context.Context, name string, accounts, regions []string) error {
	id, err := s.createInstances(ctx, name, accounts, regions)
	if err != nil {
		return err
	}
	return s.wait(ctx, name, id)
}

func (s stackSets) stackID(ctx context.Context, name, account, region string) (string, error) {
	out, err := s.api.DescribeStackInstance(ctx, &cloudformation.DescribeStackInstanceInput{
		StackSetName:         aws.String(name),
		StackInstanceAccount: aws.String(account),
		StackInstanceRegion:  aws.String(region),
	})
	if err != nil {
		return "", errors.Wrapf(err, "describing %s stack instance in %s/%s", name, account, region)
	}
	if out.StackInstance == nil || out.StackInstance.StackId == nil {
		return "", errors.Errorf("%s stack instance in %s/%s has no stack", name, account, region)
	}
	return *out.StackInstance.StackId, nil
}

// stackOutputs returns the outputs of a stack by key. api must belong to the
// account holding the stack.
func stackOutputs(ctx context.Context, api CloudFormationAPI, stackID string) (map[string]string, error) {
	out, err := api.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(stackID)})
	if err != nil {
		return nil, errors.Wrapf(err, "describing stack %s", stackID)
	}
	if len(out.Stacks) == 0 {
		return nil, errors.Errorf("stack %s not found", stackID)
	}
	outputs := map[string]string{}
	for _, o := range out.Stacks[0].Outputs {
		outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return outputs, nil
}

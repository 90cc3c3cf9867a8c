package onboarding

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/alertlogic/scopesync/pkg/alertlogic"
	"github.com/alertlogic/scopesync/pkg/cfaws"
	"github.com/alertlogic/scopesync/pkg/cfnresponse"
	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/alertlogic/scopesync/pkg/events"
	"github.com/alertlogic/scopesync/pkg/secrets"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/common-fate/clio"
	"github.com/pkg/errors"
)

const executionRole = cfaws.ControlTowerExecutionRole

// Stack outputs read back from the setup stacks.
const (
	outputRegistrationTopic = "RegistrationSNS"
	outputSecret            = "Secret"
	outputRoleARN           = "RoleARN"
)

// Session holds the clients of one account.
type Session struct {
	CloudFormation CloudFormationAPI
	SQS            SQSAPI
	SNS            SNSAPI
}

// RoleTemplates looks up the templates of the IAM roles the monitoring
// service needs.
type RoleTemplates interface {
	RoleTemplateURL(ctx context.Context, customerID, roleType string) (string, error)
}

type Callback interface {
	Send(ctx context.Context, e events.LifecycleEvent, status cfnresponse.Status, data any, physicalID string)
}

type Onboarder struct {
	// Management holds the clients of the Control Tower management account,
	// where the onboarding runs.
	Management Session
	// Assume returns the clients of another account of the organization,
	// through its Control Tower execution role.
	Assume        func(ctx context.Context, accountID, externalID string) (Session, error)
	Organizations OrganizationsAPI
	Secrets       secrets.Getter
	Roles         func(creds secrets.APICredentials) (RoleTemplates, error)
	Callback      Callback

	// Region and AccountID locate the management account when the
	// invocation context has no function ARN.
	Region    string
	AccountID string

	PollInterval time.Duration
	MaxWait      time.Duration
}

// Result is what an onboarding deployed.
type Result struct {
	RegistrationTopicARN string
	SecretARN            string
	CentralizedRoleARN   string
	ProtectedAccounts    []string
}

// Handle is the Lambda handler. Every request is answered; errors are
// reported to the requester and never returned.
func (o *Onboarder) Handle(ctx context.Context, req Request) error {
	clio.Infow("onboarding request", "request_type", req.RequestType, "request", req.RequestID, "stack", req.StackID)

	if req.RequestType == events.RequestCreate || req.RequestType == events.RequestUpdate {
		res, err := o.Onboard(ctx, req.ResourceProperties)
		if err != nil {
			clio.Errorw("onboarding failed", "error", err)
			o.Callback.Send(ctx, req.Lifecycle(), cfnresponse.StatusFailed, map[string]any{"Status": err.Error()}, cfnresponse.PhysicalResourceID)
			return nil
		}
		clio.Infow("onboarding finished",
			"registration_topic", res.RegistrationTopicARN,
			"centralized_role", res.CentralizedRoleARN,
			"protected_accounts", len(res.ProtectedAccounts))
	}
	o.Callback.Send(ctx, req.Lifecycle(), cfnresponse.StatusSuccess, map[string]any{"event": req}, cfnresponse.PhysicalResourceID)
	return nil
}

// Onboard deploys the onboarding for an organization.
func (o *Onboarder) Onboard(ctx context.Context, p Properties) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	regions, err := config.ParseRegions(p.TargetRegion)
	if err != nil {
		return Result{}, err
	}
	if len(regions) == 0 {
		return Result{}, errors.New("invalid onboarding request: TargetRegion is empty")
	}
	region, account := o.location(ctx)
	if region == "" || account == "" {
		return Result{}, errors.New("unable to determine the management account and region")
	}

	// configuration notifications only speed up asset updates, the
	// onboarding goes on without them
	if err := o.wireConfigNotifications(ctx, p, region); err != nil {
		clio.Errorw("unable to subscribe to configuration notifications, asset data is refreshed every 24 hours only", "error", err)
	}

	creds, err := secrets.LoadAPIKeys(ctx, o.Secrets, region, p.Secret)
	if err != nil {
		return Result{}, errors.Wrapf(err, "invalid secret %s", p.Secret)
	}
	roles, err := o.Roles(creds)
	if err != nil {
		return Result{}, errors.Wrap(err, "creating monitoring API client")
	}

	sets := stackSets{
		api:          o.Management.CloudFormation,
		adminRoleARN: adminRoleARN(account),
		poll:         o.pollInterval(),
		maxWait:      o.maxWait(),
	}

	var res Result
	res.RegistrationTopicARN, res.SecretARN, err = o.setupSecurityAccount(ctx, sets, p, creds, region)
	if err != nil {
		return Result{}, err
	}
	res.CentralizedRoleARN, err = o.setupCentralizedRole(ctx, sets, roles, p, region)
	if err != nil {
		return Result{}, err
	}

	roleType := alertlogic.RoleTypeManual
	if strings.EqualFold(p.DeploymentMode, "Automatic") {
		roleType = alertlogic.RoleTypeFull
	}
	sourceTemplate, err := roles.RoleTemplateURL(ctx, p.CustomerID, roleType)
	if err != nil {
		return Result{}, errors.Wrapf(err, "getting the %s role template", roleType)
	}

	params := p.parameters(managementParameterKeys,
		param("AlertLogicSourceRoleTemplateUrl", sourceTemplate),
		param("AlertLogicCentralizedRoleArn", res.CentralizedRoleARN),
		param(outputRegistrationTopic, res.RegistrationTopicARN),
		param(outputSecret, res.SecretARN),
	)
	if err := sets.create(ctx, p.StackSetName, p.StackSetURL, params); err != nil {
		return Result{}, err
	}

	// the security account hosts the registration topic, so it is deployed
	// before any account which publishes to it
	if err := sets.deploy(ctx, p.StackSetName, []string{p.SecurityAccount}, regions); err != nil {
		return Result{}, err
	}
	if others := otherCoreAccounts(p); len(others) > 0 {
		if err := sets.deploy(ctx, p.StackSetName, others, regions); err != nil {
			return Result{}, err
		}
	}

	res.ProtectedAccounts, err = ProtectedAccounts(ctx, o.Organizations,
		p.IncludeOrganizationalUnits, p.ExcludeOrganizationalUnits, coreAccounts(p))
	if err != nil {
		return Result{}, err
	}
	if len(res.ProtectedAccounts) > 0 {
		// registrations of protected accounts complete on their own
		if _, err := sets.createInstances(ctx, p.StackSetName, res.ProtectedAccounts, regions); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

func (o *Onboarder) wireConfigNotifications(ctx context.Context, p Properties, region string) error {
	audit, err := o.Assume(ctx, p.AuditAccount, p.OrgID)
	if err != nil {
		return err
	}
	if err := allowSubscribe(ctx, audit.SNS, p, region); err != nil {
		return err
	}
	logArchive, err := o.Assume(ctx, p.LogArchiveAccount, p.OrgID)
	if err != nil {
		return err
	}
	return subscribeQueue(ctx, logArchive.SQS, logArchive.SNS, p, region)
}

// setupSecurityAccount deploys the security account setup and returns the
// registration topic and the secret it created.
func (o *Onboarder) setupSecurityAccount(ctx context.Context, sets stackSets, p Properties, creds secrets.APICredentials, region string) (string, string, error) {
	params := p.parameters(securitySetupParameterKeys,
		param("AlertLogicAPIAccessKey", creds.AccessKeyID),
		param("AlertLogicAPISecretKey", creds.SecretKey),
	)
	if err := sets.create(ctx, p.SecuritySetupStackSetName, p.SecuritySetupTemplateURL, params); err != nil {
		return "", "", err
	}
	outputs, err := o.deployAndRead(ctx, sets, p.SecuritySetupStackSetName, p.SecurityAccount, region, p.OrgID)
	if err != nil {
		return "", "", err
	}
	topic, secret := outputs[outputRegistrationTopic], outputs[outputSecret]
	if topic == "" || secret == "" {
		return "", "", errors.Errorf("%s stack has no %s or %s output", p.SecuritySetupStackSetName, outputRegistrationTopic, outputSecret)
	}
	clio.Infow("security account ready", "registration_topic", topic)
	return topic, secret, nil
}

// setupCentralizedRole deploys the role giving the monitoring service access
// to the organization trail in the log archive account and returns its ARN.
func (o *Onboarder) setupCentralizedRole(ctx context.Context, sets stackSets, roles RoleTemplates, p Properties, region string) (string, error) {
	template, err := roles.RoleTemplateURL(ctx, p.CustomerID, alertlogic.RoleTypeXAccountCloudTrail)
	if err != nil {
		return "", errors.Wrapf(err, "getting the %s role template", alertlogic.RoleTypeXAccountCloudTrail)
	}
	clio.Infow("centralized role template", "url", template)

	if err := sets.create(ctx, p.CentralizedRoleStackSet, template, p.parameters(nil, param("ExternalId", p.CustomerID))); err != nil {
		return "", err
	}
	outputs, err := o.deployAndRead(ctx, sets, p.CentralizedRoleStackSet, p.LogArchiveAccount, region, p.OrgID)
	if err != nil {
		return "", err
	}
	roleARN := outputs[outputRoleARN]
	if roleARN == "" {
		return "", errors.Errorf("%s stack has no %s output", p.CentralizedRoleStackSet, outputRoleARN)
	}
	clio.Infow("centralized role ready", "role", roleARN)
	return roleARN, nil
}

// deployAndRead deploys a stack set to one account and region, waits for it
// and returns the outputs of the resulting stack.
func (o *Onboarder) deployAndRead(ctx context.Context, sets stackSets, name, account, region, orgID string) (map[string]string, error) {
	if err := sets.deploy(ctx, name, []string{account}, []string{region}); err != nil {
		return nil, err
	}
	stackID, err := sets.stackID(ctx, name, account, region)
	if err != nil {
		return nil, err
	}
	target, err := o.Assume(ctx, account, orgID)
	if err != nil {
		return nil, err
	}
	return stackOutputs(ctx, target.CloudFormation, stackID)
}

func (o *Onboarder) location(ctx context.Context) (region, account string) {
	region, account = o.Region, o.AccountID
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		if a, err := arn.Parse(lc.InvokedFunctionArn); err == nil {
			region, account = a.Region, a.AccountID
		}
	}
	return region, account
}

func (o *Onboarder) pollInterval() time.Duration {
	if o.PollInterval > 0 {
		return o.PollInterval
	}
	return 5 * time.Second
}

func (o *Onboarder) maxWait() time.Duration {
	if o.MaxWait > 0 {
		return o.MaxWait
	}
	return 10 * time.Minute
}

func coreAccounts(p Properties) []string {
	return []string{p.SecurityAccount, p.LogArchiveAccount, p.AuditAccount}
}

// otherCoreAccounts are the core accounts besides the security account,
// sorted and without duplicates.
func otherCoreAccounts(p Properties) []string {
	seen := map[string]bool{p.SecurityAccount: true}
	var out []string
	for _, a := range coreAccounts(p) {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}

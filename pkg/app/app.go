// Package app builds the handlers from a Config, with real AWS and
// monitoring API clients behind them. It is shared by the Lambda
// entrypoints and scopectl.
package app

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/alertlogic/scopesync/pkg/accounts"
	"github.com/alertlogic/scopesync/pkg/alertlogic"
	"github.com/alertlogic/scopesync/pkg/cfaws"
	"github.com/alertlogic/scopesync/pkg/cfnresponse"
	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/alertlogic/scopesync/pkg/discovery"
	"github.com/alertlogic/scopesync/pkg/dispatch"
	"github.com/alertlogic/scopesync/pkg/onboarding"
	"github.com/alertlogic/scopesync/pkg/reconcile"
	"github.com/alertlogic/scopesync/pkg/secrets"
	"github.com/alertlogic/scopesync/pkg/tagscope"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/common-fate/clio"
)

// readBackoff is the wait between attempts of a failed read request.
const readBackoff = time.Second

type App struct {
	Config config.Config
	AWS    aws.Config
}

// New loads the AWS configuration for the secret's region.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	awsCfg, err := cfaws.LoadConfig(ctx, cfg.SecretRegion)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, AWS: awsCfg}, nil
}

// NewAPI returns a monitoring API client authenticated with creds.
func (a *App) NewAPI(creds secrets.APICredentials) (reconcile.API, error) {
	return a.Client(creds)
}

func (a *App) Client(creds secrets.APICredentials) (*alertlogic.Client, error) {
	return alertlogic.New(a.Config.APIEndpoint,
		alertlogic.Keys{AccessKeyID: creds.AccessKeyID, SecretKey: creds.SecretKey},
		alertlogic.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		alertlogic.WithRateLimit(a.Config.APIRequestsPerSecond),
		alertlogic.WithReadRetries(a.Config.APIMaxAttempts, readBackoff),
	)
}

func (a *App) Secrets() *secrets.Store {
	return secrets.NewStore(a.AWS)
}

// Accounts names deployments after their organization account name when
// enabled, otherwise after the account id.
func (a *App) Accounts() accounts.Directory {
	if !a.Config.ResolveAccountNames {
		return accounts.Directory{}
	}
	return accounts.Directory{API: organizations.NewFromConfig(a.AWS)}
}

func (a *App) Dispatcher() *dispatch.Dispatcher {
	return &dispatch.Dispatcher{
		Config:   a.Config,
		Secrets:  a.Secrets(),
		NewAPI:   a.NewAPI,
		Callback: cfnresponse.NewSender(),
		Accounts: a.Accounts(),
	}
}

func (a *App) TagHandler() *tagscope.Handler {
	return &tagscope.Handler{
		Config:  a.Config,
		Secrets: a.Secrets(),
		NewAPI:  a.NewAPI,
	}
}

// EC2 returns an EC2 client for region.
func (a *App) EC2(region string) discovery.EC2API {
	return ec2.NewFromConfig(a.AWS, func(o *ec2.Options) {
		o.Region = region
	})
}

func (a *App) SNS() *sns.Client {
	return sns.NewFromConfig(a.AWS)
}

// DiscoveryRegions are the configured target regions, or the region the
// process runs in.
func (a *App) DiscoveryRegions() []string {
	if len(a.Config.TargetRegions) > 0 {
		return a.Config.TargetRegions
	}
	if r := os.Getenv("AWS_REGION"); r != "" {
		return []string{r}
	}
	return []string{cfaws.DefaultRegion}
}

func (a *App) DiscoveryHandler() *discovery.Handler {
	return &discovery.Handler{
		EC2:          a.EC2,
		SNS:          a.SNS(),
		Callback:     cfnresponse.NewSender(),
		TopicARN:     a.Config.RegistrationTopicARN,
		CoverageTags: a.Config.CoverageTags,
		Regions:      a.DiscoveryRegions(),
	}
}

// CallerAccountID returns the account of the current AWS credentials.
func (a *App) CallerAccountID(ctx context.Context) (string, error) {
	return cfaws.CallerAccountID(ctx, sts.NewFromConfig(a.AWS))
}

func session(cfg aws.Config) onboarding.Session {
	return onboarding.Session{
		CloudFormation: cloudformation.NewFromConfig(cfg),
		SQS:            sqs.NewFromConfig(cfg),
		SNS:            sns.NewFromConfig(cfg),
	}
}

// AssumeControlTower returns the clients of an organization account, through
// its Control Tower execution role.
func (a *App) AssumeControlTower(ctx context.Context, accountID, externalID string) (onboarding.Session, error) {
	cfg, err := cfaws.AssumeRole(ctx, sts.NewFromConfig(a.AWS), a.AWS, accountID, cfaws.ControlTowerExecutionRole, externalID)
	if err != nil {
		return onboarding.Session{}, err
	}
	return session(cfg), nil
}

func (a *App) OnboardingHandler() *onboarding.Onboarder {
	return &onboarding.Onboarder{
		Management:    session(a.AWS),
		Assume:        a.AssumeControlTower,
		Organizations: organizations.NewFromConfig(a.AWS),
		Secrets:       a.Secrets(),
		Roles: func(creds secrets.APICredentials) (onboarding.RoleTemplates, error) {
			return a.Client(creds)
		},
		Callback: cfnresponse.NewSender(),
		Region:   a.AWS.Region,
	}
}

// MustLoad builds the App from the environment for a Lambda handler and
// exits when the configuration is invalid or fails one of checks.
func MustLoad(ctx context.Context, checks ...func(config.Config) error) *App {
	clio.SetLevelFromEnv("SCOPESYNC_LOG")
	cfg, err := config.FromEnv()
	if err != nil {
		clio.Errorw("invalid configuration", "error", err)
		os.Exit(1)
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			clio.Errorw("invalid configuration", "error", err)
			os.Exit(1)
		}
	}
	a, err := New(ctx, cfg)
	if err != nil {
		clio.Errorw("failed to load AWS configuration", "error", err)
		os.Exit(1)
	}
	return a
}

// Package reconcile keeps the monitoring service's deployment for an AWS
// account in line with lifecycle notifications about that account.
//
// A reconciliation either creates the deployment, provisioning its
// credentials and initial scope, or merges new scope entries into the
// existing deployment. Updates carry the version read during lookup, so a
// deployment changed by a concurrent reconciliation is rejected by the
// service instead of being overwritten. Nothing here retries.
package reconcile

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/alertlogic/scopesync/pkg/alertlogic"
	"github.com/alertlogic/scopesync/pkg/scope"
	"github.com/common-fate/clio"
	"github.com/pkg/errors"
)

// Credential purposes attached to a new deployment.
const (
	PurposeDiscover        = "discover"
	PurposeXAccountMonitor = "x-account-monitor"
)

type API interface {
	DeploymentLister
	PolicyLister
	CreateDeployment(ctx context.Context, customerID string, in alertlogic.CreateDeploymentInput) (*alertlogic.Deployment, error)
	UpdateDeployment(ctx context.Context, customerID, deploymentID string, s alertlogic.Scope, version json.RawMessage) (*alertlogic.Deployment, error)
	CreateCredential(ctx context.Context, customerID, name string, secret alertlogic.CredentialSecret) (*alertlogic.Credential, error)
	DeleteCredential(ctx context.Context, customerID, credentialID string) error
}

type AccountNamer interface {
	Name(ctx context.Context, accountID string) string
}

type Reconciler struct {
	API API
	// OwnerID is the customer account holding the API credentials. Protection
	// policies are always resolved against it.
	OwnerID  string
	Accounts AccountNamer
}

type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionSkipped   Action = "skipped"
)

type Outcome struct {
	Action     Action
	Deployment *alertlogic.Deployment
	// Reason explains a skipped reconciliation.
	Reason string
}

type CreateRequest struct {
	// CustomerID owns the deployment and its credentials.
	CustomerID   string
	AWSAccountID string
	// SourceRoleARN is assumed for discovery, CentralizedRoleARN for
	// cross-account monitoring.
	SourceRoleARN      string
	CentralizedRoleARN string
	Mode               string
	Assets             []scope.Asset
}

type UpdateRequest struct {
	CustomerID   string
	AWSAccountID string
	Assets       []scope.Asset
}

// Create reconciles an onboarded account. The deployment is created when
// none exists for the account, otherwise the requested assets are merged
// into its scope.
func (r *Reconciler) Create(ctx context.Context, req CreateRequest) (Outcome, error) {
	lookup := FindDeployment(ctx, r.API, req.CustomerID, req.AWSAccountID)
	if lookup.Found() {
		return r.update(ctx, req.CustomerID, lookup.Value, req.Assets)
	}
	if lookup.Reason == TransportError {
		clio.Infow("treating failed deployment lookup as not found", "account", req.AWSAccountID, "error", lookup.Err)
	}
	return r.create(ctx, req)
}

// UpdateScope merges assets into the scope of the account's deployment. It
// does nothing when the account has no deployment.
func (r *Reconciler) UpdateScope(ctx context.Context, req UpdateRequest) (Outcome, error) {
	lookup := FindDeployment(ctx, r.API, req.CustomerID, req.AWSAccountID)
	if !lookup.Found() {
		return Outcome{Action: ActionSkipped, Reason: "deployment " + lookup.Reason.String()}, nil
	}
	return r.update(ctx, req.CustomerID, lookup.Value, req.Assets)
}

func (r *Reconciler) create(ctx context.Context, req CreateRequest) (out Outcome, err error) {
	var undo compensations
	defer func() {
		if err != nil {
			undo.run(ctx)
		}
	}()

	discover, err := r.API.CreateCredential(ctx, req.CustomerID, req.CustomerID+"-linked-role", alertlogic.CredentialSecret{
		Type: alertlogic.SecretTypeIAMRole,
		ARN:  req.SourceRoleARN,
	})
	if err != nil {
		return Outcome{}, errors.Wrap(err, "creating discover credential")
	}
	undo.add("delete discover credential "+discover.ID, func(ctx context.Context) error {
		return r.API.DeleteCredential(ctx, req.CustomerID, discover.ID)
	})
	clio.Infow("created credential", "purpose", PurposeDiscover, "credential", discover.ID)

	monitor, err := r.API.CreateCredential(ctx, req.CustomerID, req.CustomerID+"-sqs-role", alertlogic.CredentialSecret{
		Type: alertlogic.SecretTypeIAMRole,
		ARN:  req.CentralizedRoleARN,
	})
	if err != nil {
		return Outcome{}, errors.Wrap(err, "creating cross account credential")
	}
	undo.add("delete cross account credential "+monitor.ID, func(ctx context.Context) error {
		return r.API.DeleteCredential(ctx, req.CustomerID, monitor.ID)
	})
	clio.Infow("created credential", "purpose", PurposeXAccountMonitor, "credential", monitor.ID)

	policy := ResolvePolicyID(ctx, r.API, r.OwnerID)

	in := alertlogic.CreateDeploymentInput{
		Name:     r.accountName(ctx, req.AWSAccountID),
		Platform: alertlogic.Platform{Type: alertlogic.PlatformAWS, ID: req.AWSAccountID},
		Mode:     strings.ToLower(req.Mode),
		Enabled:  true,
		Discover: true,
		Scan:     true,
		Credentials: []alertlogic.CredentialRef{
			{ID: discover.ID, Purpose: PurposeDiscover},
			{ID: monitor.ID, Purpose: PurposeXAccountMonitor},
		},
		Scope: alertlogic.Scope{
			Include: scope.Build(policy.Value, req.Assets),
			Exclude: []alertlogic.ScopeEntry{},
		},
	}

	d, err := r.API.CreateDeployment(ctx, req.CustomerID, in)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "creating deployment")
	}
	clio.Infow("created deployment", "customer", req.CustomerID, "account", req.AWSAccountID, "deployment", d.ID, "scope_entries", len(in.Scope.Include))
	return Outcome{Action: ActionCreated, Deployment: d}, nil
}

// update merges assets into the include scope of d and writes it back with
// the version d was read at.
func (r *Reconciler) update(ctx context.Context, customerID string, d *alertlogic.Deployment, assets []scope.Asset) (Outcome, error) {
	policy := ResolvePolicyID(ctx, r.API, r.OwnerID)
	if !policy.Found() {
		return Outcome{Action: ActionSkipped, Deployment: d, Reason: "policy " + policy.Reason.String()}, nil
	}

	include, added := scope.Merge(d.Scope.Include, scope.Build(policy.Value, assets))
	if added == 0 {
		clio.Infow("deployment scope already up to date", "deployment", d.ID)
		return Outcome{Action: ActionUnchanged, Deployment: d}, nil
	}

	updated, err := r.writeInclude(ctx, customerID, d, include)
	if err != nil {
		return Outcome{}, err
	}
	clio.Infow("updated deployment scope", "deployment", d.ID, "name", d.Name, "added", added)
	return Outcome{Action: ActionUpdated, Deployment: updated}, nil
}

// ErrNoVersion is returned instead of updating a deployment which was listed
// without a version. Writing it back would not be guarded against concurrent
// changes.
var ErrNoVersion = errors.New("deployment has no version")

// writeInclude replaces the include scope of d, keeping its exclude scope,
// at the version d was read at.
func (r *Reconciler) writeInclude(ctx context.Context, customerID string, d *alertlogic.Deployment, include []alertlogic.ScopeEntry) (*alertlogic.Deployment, error) {
	if len(d.Version) == 0 || string(d.Version) == "null" {
		return nil, errors.Wrapf(ErrNoVersion, "updating deployment %s", d.ID)
	}
	s := alertlogic.Scope{Include: include, Exclude: d.Scope.Exclude}
	if s.Exclude == nil {
		s.Exclude = []alertlogic.ScopeEntry{}
	}
	updated, err := r.API.UpdateDeployment(ctx, customerID, d.ID, s, d.Version)
	if err != nil {
		if alertlogic.IsConflict(err) {
			clio.Errorw("deployment changed since it was read", "deployment", d.ID, "version", string(d.Version))
		}
		return nil, errors.Wrapf(err, "updating deployment %s", d.ID)
	}
	return updated, nil
}

func (r *Reconciler) accountName(ctx context.Context, accountID string) string {
	if r.Accounts == nil {
		return accountID
	}
	return r.Accounts.Name(ctx, accountID)
}

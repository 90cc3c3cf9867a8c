package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/alertlogic/scopesync/pkg/alertlogic"
)

// fakeAPI is an in-memory monitoring service. Deployments carry an integer
// version which must match on update, like the real service.
type fakeAPI struct {
	deployments []alertlogic.Deployment
	policies    []alertlogic.Policy
	credentials map[string]alertlogic.Credential

	listDeploymentsErr  error
	listPoliciesErr     error
	createDeploymentErr error
	updateErr           error
	deleteCredentialErr error
	// failCredentialAt fails the nth CreateCredential call (1-based).
	failCredentialAt int

	created      []alertlogic.CreateDeploymentInput
	updates      []alertlogic.Scope
	credCalls    int
	deletedCreds []string
	nextID       int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{credentials: map[string]alertlogic.Credential{}}
}

func (f *fakeAPI) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeAPI) ListDeployments(ctx context.Context, customerID string) ([]alertlogic.Deployment, error) {
	if f.listDeploymentsErr != nil {
		return nil, f.listDeploymentsErr
	}
	// hand out copies so callers cannot change the stored record
	out := make([]alertlogic.Deployment, len(f.deployments))
	for i, d := range f.deployments {
		d.Scope.Include = append([]alertlogic.ScopeEntry(nil), d.Scope.Include...)
		out[i] = d
	}
	return out, nil
}

func (f *fakeAPI) ListPolicies(ctx context.Context, customerID string) ([]alertlogic.Policy, error) {
	if f.listPoliciesErr != nil {
		return nil, f.listPoliciesErr
	}
	return f.policies, nil
}

func (f *fakeAPI) CreateDeployment(ctx context.Context, customerID string, in alertlogic.CreateDeploymentInput) (*alertlogic.Deployment, error) {
	f.created = append(f.created, in)
	if f.createDeploymentErr != nil {
		return nil, f.createDeploymentErr
	}
	d := alertlogic.Deployment{
		ID:          f.id("D"),
		Name:        in.Name,
		Platform:    in.Platform,
		Scope:       in.Scope,
		Version:     json.RawMessage("1"),
		Mode:        in.Mode,
		Enabled:     in.Enabled,
		Discover:    in.Discover,
		Scan:        in.Scan,
		Credentials: in.Credentials,
	}
	f.deployments = append(f.deployments, d)
	return &d, nil
}

func (f *fakeAPI) UpdateDeployment(ctx context.Context, customerID, deploymentID string, s alertlogic.Scope, version json.RawMessage) (*alertlogic.Deployment, error) {
	f.updates = append(f.updates, s)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for i := range f.deployments {
		d := &f.deployments[i]
		if d.ID != deploymentID {
			continue
		}
		if string(d.Version) != string(version) {
			return nil, &alertlogic.APIError{Op: "update deployment", StatusCode: http.StatusConflict}
		}
		v, _ := strconv.Atoi(string(d.Version))
		d.Version = json.RawMessage(strconv.Itoa(v + 1))
		d.Scope = s
		out := *d
		return &out, nil
	}
	return nil, &alertlogic.APIError{Op: "update deployment", StatusCode: http.StatusNotFound}
}

func (f *fakeAPI) CreateCredential(ctx context.Context, customerID, name string, secret alertlogic.CredentialSecret) (*alertlogic.Credential, error) {
	f.credCalls++
	if f.credCalls == f.failCredentialAt {
		return nil, &alertlogic.APIError{Op: "create credential", StatusCode: http.StatusBadRequest}
	}
	c := alertlogic.Credential{ID: f.id("C"), Name: name, Secrets: secret}
	f.credentials[c.ID] = c
	return &c, nil
}

func (f *fakeAPI) DeleteCredential(ctx context.Context, customerID, credentialID string) error {
	f.deletedCreds = append(f.deletedCreds, credentialID)
	if f.deleteCredentialErr != nil {
		return f.deleteCredentialErr
	}
	delete(f.credentials, credentialID)
	return nil
}

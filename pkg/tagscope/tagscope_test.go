package tagscope

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/alertlogic/scopesync/pkg/alertlogic"
	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/alertlogic/scopesync/pkg/reconcile"
	"github.com/alertlogic/scopesync/pkg/secrets"
	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rules = Rules{
	Keys:          []string{"alertlogic"},
	PublicValues:  []string{"public"},
	PrivateValues: []string{"private"},
}

func TestRules_Status(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want Status
	}{
		{name: "public", tags: map[string]string{"AlertLogic": "Public"}, want: StatusPublic},
		{name: "private", tags: map[string]string{"alertlogic": "PRIVATE", "Name": "prod"}, want: StatusPrivate},
		{name: "other value disables", tags: map[string]string{"alertlogic": "off"}, want: StatusDisabled},
		{name: "untagged", tags: map[string]string{"Name": "prod"}, want: StatusUntagged},
		{name: "no tags", want: StatusUntagged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rules.Status(tt.tags)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want > 0, got.Protected())
		})
	}
}

func TestRules_Watches(t *testing.T) {
	assert.True(t, rules.Watches([]string{"Name", "AlertLogic"}))
	assert.False(t, rules.Watches([]string{"Name"}))
	assert.False(t, rules.Watches(nil))
}

func TestResourceID(t *testing.T) {
	id, err := ResourceID("arn:aws:ec2:us-east-1:111122223333:subnet/subnet-0abc")
	require.NoError(t, err)
	assert.Equal(t, "subnet-0abc", id)

	_, err = ResourceID("arn:aws:ec2:us-east-1:111122223333")
	assert.Error(t, err)
	_, err = ResourceID("arn:aws:ec2:us-east-1:111122223333:vpc")
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	region := alertlogic.ScopeEntry{Key: "/aws/us-east-1", Type: "region", Policy: &alertlogic.PolicyRef{ID: "P1"}}
	stale := alertlogic.ScopeEntry{Key: "/aws/us-east-1/vpc/vpc-1", Type: "vpc", Policy: &alertlogic.PolicyRef{ID: "OLD"}}
	fresh := alertlogic.ScopeEntry{Key: "/aws/us-east-1/vpc/vpc-1", Type: "vpc", Policy: &alertlogic.PolicyRef{ID: "P1"}}

	got := Apply([]alertlogic.ScopeEntry{region, stale}, "P1", "vpc", fresh.Key, StatusPrivate)
	assert.Equal(t, []alertlogic.ScopeEntry{fresh, region}, got)

	got = Apply([]alertlogic.ScopeEntry{region, stale}, "P1", "vpc", fresh.Key, StatusDisabled)
	assert.Equal(t, []alertlogic.ScopeEntry{region}, got)

	got = Apply([]alertlogic.ScopeEntry{region}, "P1", "vpc", fresh.Key, StatusUntagged)
	assert.Equal(t, []alertlogic.ScopeEntry{region}, got)
}

type secretFunc func(ctx context.Context, region, name string) ([]byte, error)

func (f secretFunc) GetSecret(ctx context.Context, region, name string) ([]byte, error) {
	return f(ctx, region, name)
}

type stubAPI struct {
	reconcile.API
	deployments []alertlogic.Deployment
	updated     []alertlogic.Scope
	updateErr   error
}

func (s *stubAPI) ListDeployments(ctx context.Context, customerID string) ([]alertlogic.Deployment, error) {
	return s.deployments, nil
}

func (s *stubAPI) ListPolicies(ctx context.Context, customerID string) ([]alertlogic.Policy, error) {
	return []alertlogic.Policy{{ID: "P1", Name: "Professional"}}, nil
}

func (s *stubAPI) UpdateDeployment(ctx context.Context, customerID, deploymentID string, sc alertlogic.Scope, version json.RawMessage) (*alertlogic.Deployment, error) {
	s.updated = append(s.updated, sc)
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &alertlogic.Deployment{ID: deploymentID, Scope: sc}, nil
}

func tagEvent(t *testing.T, resourceType string, changed []string, tags map[string]string, resources ...string) lambdaevents.CloudWatchEvent {
	t.Helper()
	detail, err := json.Marshal(Detail{ChangedTagKeys: changed, Service: "ec2", ResourceType: resourceType, Tags: tags})
	require.NoError(t, err)
	return lambdaevents.CloudWatchEvent{
		ID:         "evt-1",
		DetailType: DetailTypeTagChange,
		Source:     "aws.tag",
		AccountID:  "111122223333",
		Region:     "us-east-1",
		Resources:  resources,
		Detail:     detail,
	}
}

func newHandler(api *stubAPI) *Handler {
	cfg := config.Default()
	cfg.SecretName = "al-credentials"
	cfg.TagKeys = rules.Keys
	cfg.TagPublicValues = rules.PublicValues
	cfg.TagPrivateValues = rules.PrivateValues
	return &Handler{
		Config: cfg,
		Secrets: secretFunc(func(context.Context, string, string) ([]byte, error) {
			return []byte(`{"ALCID":"10000","ALAccessKey":"key","ALSecretKey":"secret"}`), nil
		}),
		NewAPI: func(secrets.APICredentials) (reconcile.API, error) { return api, nil },
	}
}

func TestHandler_Process(t *testing.T) {
	deployment := alertlogic.Deployment{
		ID:       "D1",
		Platform: alertlogic.Platform{Type: "aws", ID: "111122223333"},
		Scope: alertlogic.Scope{Include: []alertlogic.ScopeEntry{
			{Key: "/aws/us-east-1/subnet/subnet-9", Type: "subnet", Policy: &alertlogic.PolicyRef{ID: "P1"}},
		}},
		Version: json.RawMessage("7"),
	}

	t.Run("tagged subnet is added", func(t *testing.T) {
		api := &stubAPI{deployments: []alertlogic.Deployment{deployment}}
		ev := tagEvent(t, "subnet", []string{"alertlogic"}, map[string]string{"alertlogic": "public"},
			"arn:aws:ec2:us-east-1:111122223333:subnet/subnet-1")

		out, err := newHandler(api).Process(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, reconcile.ActionUpdated, out.Action)
		require.Len(t, api.updated, 1)
		assert.Equal(t, []alertlogic.ScopeEntry{
			{Key: "/aws/us-east-1/subnet/subnet-1", Type: "subnet", Policy: &alertlogic.PolicyRef{ID: "P1"}},
			{Key: "/aws/us-east-1/subnet/subnet-9", Type: "subnet", Policy: &alertlogic.PolicyRef{ID: "P1"}},
		}, api.updated[0].Include)
		assert.Equal(t, []alertlogic.ScopeEntry{}, api.updated[0].Exclude)
	})

	t.Run("removed tag drops the subnet", func(t *testing.T) {
		api := &stubAPI{deployments: []alertlogic.Deployment{deployment}}
		ev := tagEvent(t, "subnet", []string{"alertlogic"}, map[string]string{},
			"arn:aws:ec2:us-east-1:111122223333:subnet/subnet-9")

		out, err := newHandler(api).Process(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, reconcile.ActionUpdated, out.Action)
		require.Len(t, api.updated, 1)
		assert.Empty(t, api.updated[0].Include)
	})

	t.Run("unsupported resource", func(t *testing.T) {
		api := &stubAPI{deployments: []alertlogic.Deployment{deployment}}
		ev := tagEvent(t, "instance", []string{"alertlogic"}, map[string]string{"alertlogic": "public"},
			"arn:aws:ec2:us-east-1:111122223333:instance/i-1")

		out, err := newHandler(api).Process(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, reconcile.ActionSkipped, out.Action)
		assert.Empty(t, api.updated)
	})

	t.Run("unwatched tag", func(t *testing.T) {
		api := &stubAPI{deployments: []alertlogic.Deployment{deployment}}
		ev := tagEvent(t, "vpc", []string{"Name"}, map[string]string{"Name": "prod"},
			"arn:aws:ec2:us-east-1:111122223333:vpc/vpc-1")

		out, err := newHandler(api).Process(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, reconcile.ActionSkipped, out.Action)
		assert.Empty(t, api.updated)
	})

	t.Run("no deployment", func(t *testing.T) {
		api := &stubAPI{}
		ev := tagEvent(t, "vpc", []string{"alertlogic"}, map[string]string{"alertlogic": "public"},
			"arn:aws:ec2:us-east-1:111122223333:vpc/vpc-1")

		out, err := newHandler(api).Process(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, reconcile.ActionSkipped, out.Action)
		assert.Empty(t, api.updated)
	})

	t.Run("other detail type", func(t *testing.T) {
		out, err := newHandler(&stubAPI{}).Process(context.Background(), lambdaevents.CloudWatchEvent{DetailType: "EC2 Instance State-change Notification"})
		require.NoError(t, err)
		assert.Equal(t, reconcile.ActionSkipped, out.Action)
	})
}

func TestHandler_HandleDoesNotReturnFailures(t *testing.T) {
	api := &stubAPI{
		deployments: []alertlogic.Deployment{{
			ID:       "D1",
			Platform: alertlogic.Platform{Type: "aws", ID: "111122223333"},
			Version:  json.RawMessage("3"),
		}},
		updateErr: &alertlogic.APIError{Op: "update deployment", StatusCode: http.StatusConflict},
	}
	ev := tagEvent(t, "vpc", []string{"alertlogic"}, map[string]string{"alertlogic": "private"},
		"arn:aws:ec2:us-east-1:111122223333:vpc/vpc-1")
	h := newHandler(api)

	_, err := h.Process(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, alertlogic.IsConflict(err))

	assert.NoError(t, h.Handle(context.Background(), ev))
	assert.Len(t, api.updated, 2, "each invocation attempts the update once")
}

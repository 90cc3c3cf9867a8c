// Package tagscope keeps deployment scope in line with the tags of VPCs and
// subnets, driven by EventBridge "Tag Change on Resource" events.
package tagscope

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/alertlogic/scopesync/pkg/alertlogic"
	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/alertlogic/scopesync/pkg/reconcile"
	"github.com/alertlogic/scopesync/pkg/scope"
	"github.com/alertlogic/scopesync/pkg/secrets"
	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/common-fate/clio"
	"github.com/pkg/errors"
)

const DetailTypeTagChange = "Tag Change on Resource"

// Status is the protection requested by a resource's tags.
type Status int

const (
	StatusUntagged Status = -1
	StatusDisabled Status = 0
	StatusPublic   Status = 1
	StatusPrivate  Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusUntagged:
		return "untagged"
	case StatusDisabled:
		return "disabled"
	case StatusPublic:
		return "public"
	case StatusPrivate:
		return "private"
	}
	return "unknown"
}

// Protected reports whether the resource belongs in the include scope.
func (s Status) Protected() bool {
	return s > 0
}

// Rules map tag keys and values to a Status. All comparisons are case
// insensitive.
type Rules struct {
	Keys          []string
	PublicValues  []string
	PrivateValues []string
}

func RulesFromConfig(c config.Config) Rules {
	return Rules{Keys: c.TagKeys, PublicValues: c.TagPublicValues, PrivateValues: c.TagPrivateValues}
}

// Watches reports whether any of the changed tag keys is a configured key.
func (r Rules) Watches(changedKeys []string) bool {
	for _, k := range changedKeys {
		if containsFold(r.Keys, k) {
			return true
		}
	}
	return false
}

// Status evaluates the first configured tag key found in tags, in key order.
func (r Rules) Status(tags map[string]string) Status {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !containsFold(r.Keys, k) {
			continue
		}
		v := tags[k]
		switch {
		case containsFold(r.PublicValues, v):
			return StatusPublic
		case containsFold(r.PrivateValues, v):
			return StatusPrivate
		default:
			return StatusDisabled
		}
	}
	return StatusUntagged
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// ResourceID returns the resource id of an EC2 ARN such as
// arn:aws:ec2:us-east-1:111122223333:vpc/vpc-0abc.
func ResourceID(arn string) (string, error) {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 {
		return "", errors.Errorf("malformed ARN %q", arn)
	}
	_, id, ok := strings.Cut(parts[5], "/")
	if !ok || id == "" {
		return "", errors.Errorf("ARN %q has no resource id", arn)
	}
	return id, nil
}

// Apply puts a protected resource at the front of include, or drops it
// otherwise. Entries sharing key are always replaced.
func Apply(include []alertlogic.ScopeEntry, policyID, resourceType, key string, status Status) []alertlogic.ScopeEntry {
	if status.Protected() {
		return scope.Put(include, alertlogic.ScopeEntry{
			Key:    key,
			Type:   resourceType,
			Policy: &alertlogic.PolicyRef{ID: policyID},
		})
	}
	return scope.Remove(include, key)
}

// Detail is the detail of a tag change event.
type Detail struct {
	ChangedTagKeys []string          `json:"changed-tag-keys"`
	Service        string            `json:"service"`
	ResourceType   string            `json:"resource-type"`
	Version        float64           `json:"version"`
	Tags           map[string]string `json:"tags"`
}

var supportedResourceTypes = []string{alertlogic.AssetVPC, alertlogic.AssetSubnet}

type Handler struct {
	Config  config.Config
	Secrets secrets.Getter
	NewAPI  func(creds secrets.APICredentials) (reconcile.API, error)
}

// Handle is the Lambda handler for tag change events. Failures are logged
// and never returned: the runtime would invoke it again, replaying the
// update against a fresh read.
func (h *Handler) Handle(ctx context.Context, ev lambdaevents.CloudWatchEvent) error {
	out, err := h.Process(ctx, ev)
	if err != nil {
		clio.Errorw("tag change failed", "event", ev.ID, "account", ev.AccountID, "error", err)
		return nil
	}
	clio.Infow("tag change processed", "event", ev.ID, "account", ev.AccountID, "action", out.Action, "reason", out.Reason)
	return nil
}

func (h *Handler) Process(ctx context.Context, ev lambdaevents.CloudWatchEvent) (reconcile.Outcome, error) {
	if ev.DetailType != DetailTypeTagChange {
		return skipped("unsupported event " + ev.DetailType), nil
	}
	var detail Detail
	if err := json.Unmarshal(ev.Detail, &detail); err != nil {
		return reconcile.Outcome{}, errors.Wrap(err, "decoding tag change detail")
	}
	if !containsFold(supportedResourceTypes, detail.ResourceType) {
		return skipped("unsupported resource type " + detail.ResourceType), nil
	}

	rules := RulesFromConfig(h.Config)
	if !rules.Watches(detail.ChangedTagKeys) {
		return skipped("no watched tag changed"), nil
	}
	status := rules.Status(detail.Tags)
	resourceType := strings.ToLower(detail.ResourceType)

	keys := make([]string, 0, len(ev.Resources))
	for _, arn := range ev.Resources {
		id, err := ResourceID(arn)
		if err != nil {
			return reconcile.Outcome{}, err
		}
		keys = append(keys, scope.AssetKey(ev.Region, resourceType, id))
	}
	clio.Infow("evaluated tags", "account", ev.AccountID, "resources", keys, "status", status)

	creds, err := secrets.LoadAPICredentials(ctx, h.Secrets, h.Config.SecretRegion, h.Config.SecretName)
	if err != nil {
		return reconcile.Outcome{}, errors.Wrap(err, "unable to retrieve the monitoring API credentials")
	}
	api, err := h.NewAPI(creds)
	if err != nil {
		return reconcile.Outcome{}, errors.Wrap(err, "creating monitoring API client")
	}

	r := reconcile.Reconciler{API: api, OwnerID: creds.CustomerID}
	return r.Rewrite(ctx, reconcile.RewriteRequest{
		CustomerID:   creds.CustomerID,
		AWSAccountID: ev.AccountID,
		Rewrite: func(include []alertlogic.ScopeEntry, policyID string) []alertlogic.ScopeEntry {
			for _, key := range keys {
				include = Apply(include, policyID, resourceType, key, status)
			}
			return include
		},
	})
}

func skipped(reason string) reconcile.Outcome {
	return reconcile.Outcome{Action: reconcile.ActionSkipped, Reason: reason}
}

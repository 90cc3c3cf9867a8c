package discovery

import (
	"context"

	"github.com/alertlogic/scopesync/pkg/cfaws"
	"github.com/alertlogic/scopesync/pkg/cfnresponse"
	"github.com/alertlogic/scopesync/pkg/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/common-fate/clio"
	"github.com/pkg/errors"
)

type Callback interface {
	Send(ctx context.Context, e events.LifecycleEvent, status cfnresponse.Status, data any, physicalID string)
}

// Handler answers the scope discovery custom resource. On Create it
// discovers the account's tagged VPCs and publishes them to the
// registration topic. Every request is answered.
type Handler struct {
	EC2      func(region string) EC2API
	SNS      SNSAPI
	Callback Callback

	TopicARN string
	// CoverageTags is used when the request does not carry its own.
	CoverageTags string
	Regions      []string
	// AccountID is used when the invocation context has no function ARN.
	AccountID string
}

func (h *Handler) Handle(ctx context.Context, e events.LifecycleEvent) error {
	clio.Infow("scope discovery request", "request_type", e.RequestType, "request", e.RequestID)

	if e.RequestType == events.RequestCreate {
		if err := h.discover(ctx, e); err != nil {
			clio.Errorw("scope discovery failed", "error", err)
			h.Callback.Send(ctx, e, cfnresponse.StatusFailed, map[string]any{"Status": err.Error()}, cfnresponse.PhysicalResourceID)
			return nil
		}
	}
	h.Callback.Send(ctx, e, cfnresponse.StatusSuccess, map[string]any{"event": e}, cfnresponse.PhysicalResourceID)
	return nil
}

func (h *Handler) discover(ctx context.Context, e events.LifecycleEvent) error {
	raw := e.ResourceProperties.CoverageTags
	if raw == "" {
		raw = h.CoverageTags
	}
	tags, err := ParseCoverageTags(raw)
	if err != nil {
		return err
	}
	accountID := h.accountID(ctx)
	if accountID == "" {
		return errors.New("unable to determine the account id")
	}

	d := Discoverer{EC2: h.EC2, Tags: tags}
	assets, err := d.Discover(ctx, h.Regions)
	if err != nil {
		return err
	}
	_, err = Publish(ctx, h.SNS, h.TopicARN, accountID, assets)
	return err
}

func (h *Handler) accountID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		if id, ok := cfaws.AccountIDFromARN(lc.InvokedFunctionArn); ok {
			return id
		}
	}
	return h.AccountID
}

// Package dispatch routes lifecycle notifications to the reconciler and
// reports Create outcomes back to CloudFormation.
package dispatch

import (
	"context"
	"time"

	"github.com/alertlogic/scopesync/pkg/cfnresponse"
	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/alertlogic/scopesync/pkg/events"
	"github.com/alertlogic/scopesync/pkg/reconcile"
	"github.com/alertlogic/scopesync/pkg/scope"
	"github.com/alertlogic/scopesync/pkg/secrets"
	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/common-fate/clio"
	"github.com/hako/durafmt"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
)

// Callback answers a custom resource request.
type Callback interface {
	Send(ctx context.Context, e events.LifecycleEvent, status cfnresponse.Status, data any, physicalID string)
}

// APIFactory returns a monitoring API client authenticated with creds.
type APIFactory func(creds secrets.APICredentials) (reconcile.API, error)

type Dispatcher struct {
	Config   config.Config
	Secrets  secrets.Getter
	NewAPI   APIFactory
	Callback Callback
	Accounts reconcile.AccountNamer
}

// Result is the outcome of one record.
type Result struct {
	MessageID   string
	RequestType events.RequestType
	Outcome     reconcile.Outcome
	// Status is the response sent to the requester, empty when none was sent.
	Status cfnresponse.Status
	Err    error
}

// HandleSNS is the Lambda handler for the registration topic. Records never
// fail the invocation, their outcome is reported per record.
func (d *Dispatcher) HandleSNS(ctx context.Context, in lambdaevents.SNSEvent) error {
	d.Dispatch(ctx, in)
	return nil
}

// Dispatch processes the records of in sequentially, in delivery order. A
// failed record does not stop the ones after it.
func (d *Dispatcher) Dispatch(ctx context.Context, in lambdaevents.SNSEvent) []Result {
	invocation := "sync-" + ksuid.New().String()
	start := time.Now()
	clio.Infow("dispatch started", "invocation", invocation, "records", len(in.Records))

	records := events.FromSNS(in)
	results := make([]Result, 0, len(records))
	for _, rec := range records {
		res := Result{MessageID: rec.MessageID, RequestType: rec.Event.RequestType}
		if rec.Err != nil {
			clio.Errorw("skipping undecodable record", "invocation", invocation, "message", rec.MessageID, "error", rec.Err)
			res.Err = rec.Err
			results = append(results, res)
			continue
		}
		clio.Infow("processing record", "invocation", invocation, "message", rec.MessageID, "request_type", rec.Event.RequestType)

		switch rec.Event.RequestType {
		case events.RequestCreate:
			res = d.create(ctx, in, rec.Event, res)
		case events.RequestUpdateScope:
			res = d.updateScope(ctx, rec.Event, res)
		default:
			clio.Infow("unsupported request type, skipping", "invocation", invocation, "request_type", rec.Event.RequestType, "resource_type", rec.Event.ResourceType)
			if rec.Event.IsCustomResource() {
				res.Status = cfnresponse.StatusSuccess
				d.Callback.Send(ctx, rec.Event, res.Status, eventData(in), cfnresponse.PhysicalResourceID)
			}
		}

		if res.Err != nil {
			clio.Errorw("record failed", "invocation", invocation, "message", rec.MessageID, "request_type", rec.Event.RequestType, "error", res.Err)
		}
		results = append(results, res)
	}

	clio.Infow("dispatch finished", "invocation", invocation, "duration", durafmt.Parse(time.Since(start)).LimitFirstN(2).String())
	return results
}

func (d *Dispatcher) create(ctx context.Context, in lambdaevents.SNSEvent, e events.LifecycleEvent, res Result) Result {
	fail := func(err error, data any) Result {
		res.Err = err
		res.Status = cfnresponse.StatusFailed
		d.Callback.Send(ctx, e, res.Status, data, cfnresponse.PhysicalResourceID)
		return res
	}

	if err := e.Validate(); err != nil {
		return fail(err, statusData(err))
	}

	creds, err := secrets.LoadAPICredentials(ctx, d.Secrets, d.Config.SecretRegion, d.Config.SecretName)
	if err != nil {
		return fail(errors.Wrap(err, "unable to retrieve the monitoring API credentials"), eventData(in))
	}
	r, err := d.reconciler(creds)
	if err != nil {
		return fail(err, statusData(err))
	}

	var assets []scope.Asset
	if d.Config.FullRegionCoverage {
		assets = scope.RegionAssets(d.Config.TargetRegions)
	}

	p := e.ResourceProperties
	res.Outcome, err = r.Create(ctx, reconcile.CreateRequest{
		CustomerID:         p.CustomerID,
		AWSAccountID:       p.AccountID,
		SourceRoleARN:      p.SourceRoleARN,
		CentralizedRoleARN: p.CentralizedRoleARN,
		Mode:               p.DeploymentMode,
		Assets:             assets,
	})
	if err != nil {
		return fail(err, statusData(err))
	}

	res.Status = cfnresponse.StatusSuccess
	d.Callback.Send(ctx, e, res.Status, eventData(in), cfnresponse.PhysicalResourceID)
	return res
}

// updateScope has no requester to answer; failures are only logged.
func (d *Dispatcher) updateScope(ctx context.Context, e events.LifecycleEvent, res Result) Result {
	if d.Config.FullRegionCoverage {
		clio.Infow("full region coverage is enabled, ignoring scope update", "account", e.AccountID)
		res.Outcome = reconcile.Outcome{Action: reconcile.ActionSkipped, Reason: "full region coverage"}
		return res
	}
	if err := e.Validate(); err != nil {
		res.Err = err
		return res
	}

	creds, err := secrets.LoadAPICredentials(ctx, d.Secrets, d.Config.SecretRegion, d.Config.SecretName)
	if err != nil {
		res.Err = errors.Wrap(err, "unable to retrieve the monitoring API credentials")
		return res
	}
	r, err := d.reconciler(creds)
	if err != nil {
		res.Err = err
		return res
	}

	res.Outcome, res.Err = r.UpdateScope(ctx, reconcile.UpdateRequest{
		CustomerID:   creds.CustomerID,
		AWSAccountID: e.AccountID,
		Assets:       e.Scope,
	})
	if res.Err == nil && res.Outcome.Action == reconcile.ActionSkipped {
		clio.Infow("scope update skipped", "account", e.AccountID, "customer", creds.CustomerID, "reason", res.Outcome.Reason)
	}
	return res
}

func (d *Dispatcher) reconciler(creds secrets.APICredentials) (*reconcile.Reconciler, error) {
	api, err := d.NewAPI(creds)
	if err != nil {
		return nil, errors.Wrap(err, "creating monitoring API client")
	}
	return &reconcile.Reconciler{API: api, OwnerID: creds.CustomerID, Accounts: d.Accounts}, nil
}

func eventData(in lambdaevents.SNSEvent) map[string]any {
	return map[string]any{"event": in}
}

func statusData(err error) map[string]any {
	return map[string]any{"Status": err.Error()}
}

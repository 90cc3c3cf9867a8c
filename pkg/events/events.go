// Package events decodes the lifecycle notifications which drive scope
// reconciliation.
//
// Create and other CloudFormation requests arrive as custom resource
// requests forwarded through SNS. UpdateScope notifications are published by
// scope discovery and carry the assets to add for an account.
package events

import (
	"encoding/json"

	"github.com/alertlogic/scopesync/pkg/scope"
	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
)

type RequestType string

const (
	RequestCreate      RequestType = "Create"
	RequestUpdateScope RequestType = "UpdateScope"
	RequestUpdate      RequestType = "Update"
	RequestDelete      RequestType = "Delete"
)

// CustomResourceType is the resource type of requests which expect an
// answer on their ResponseURL.
const CustomResourceType = "AWS::CloudFormation::CustomResource"

// ResourceProperties are the custom resource properties of a Create request.
type ResourceProperties struct {
	// CustomerID is the monitoring service account owning the deployment.
	CustomerID         string `json:"CID"`
	SourceRoleARN      string `json:"ALSourceRoleArn"`
	CentralizedRoleARN string `json:"ALCentralizedRoleArn"`
	AccountID          string `json:"AccountId"`
	DeploymentMode     string `json:"AlertLogicDeploymentMode"`
	// CoverageTags is only set on scope discovery requests.
	CoverageTags string `json:"CoverageTags,omitempty"`
}

type LifecycleEvent struct {
	RequestType        RequestType        `json:"RequestType"`
	ResponseURL        string             `json:"ResponseURL,omitempty"`
	StackID            string             `json:"StackId,omitempty"`
	RequestID          string             `json:"RequestId,omitempty"`
	LogicalResourceID  string             `json:"LogicalResourceId,omitempty"`
	PhysicalResourceID string             `json:"PhysicalResourceId,omitempty"`
	ResourceType       string             `json:"ResourceType,omitempty"`
	ResourceProperties ResourceProperties `json:"ResourceProperties"`

	// Scope and AccountID are set on UpdateScope notifications.
	Scope     []scope.Asset `json:"scope,omitempty"`
	AccountID string        `json:"account_id,omitempty"`
}

// IsCustomResource reports whether the requester waits for a response.
func (e LifecycleEvent) IsCustomResource() bool {
	return e.ResourceType == CustomResourceType
}

// Validate checks the fields required by the event's request type.
func (e LifecycleEvent) Validate() error {
	switch e.RequestType {
	case "":
		return errors.New("missing RequestType")
	case RequestCreate:
		p := e.ResourceProperties
		switch {
		case e.ResponseURL == "":
			return errors.New("create request has no ResponseURL")
		case p.CustomerID == "":
			return errors.New("create request has no CID")
		case p.AccountID == "":
			return errors.New("create request has no AccountId")
		}
	case RequestUpdateScope:
		if e.AccountID == "" {
			return errors.New("scope update notification has no account_id")
		}
	}
	return nil
}

// Parse decodes a single notification message.
func Parse(message string) (LifecycleEvent, error) {
	var e LifecycleEvent
	if err := json.Unmarshal([]byte(message), &e); err != nil {
		return LifecycleEvent{}, errors.Wrap(err, "decoding lifecycle event")
	}
	return e, nil
}

// Record is one decoded SNS record. Err is set when the message could not be
// decoded; other records of the batch are unaffected.
type Record struct {
	MessageID string
	Event     LifecycleEvent
	Err       error
}

// FromSNS decodes every record of an SNS delivery, in order.
func FromSNS(in lambdaevents.SNSEvent) []Record {
	records := make([]Record, 0, len(in.Records))
	for _, r := range in.Records {
		e, err := Parse(r.SNS.Message)
		records = append(records, Record{MessageID: r.SNS.MessageID, Event: e, Err: err})
	}
	return records
}

// UpdateScopeMessage builds the notification published by scope discovery.
func UpdateScopeMessage(accountID string, assets []scope.Asset) ([]byte, error) {
	if assets == nil {
		assets = []scope.Asset{}
	}
	msg := struct {
		RequestType RequestType   `json:"RequestType"`
		Scope       []scope.Asset `json:"scope"`
		AccountID   string        `json:"account_id"`
	}{RequestUpdateScope, assets, accountID}
	return json.Marshal(msg)
}

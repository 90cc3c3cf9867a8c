// Package onboarding prepares an AWS Control Tower organization for the
// monitoring service.
//
// Onboarding wires the Control Tower configuration notifications of the audit
// account to a queue in the log archive account, deploys the security
// account setup (which hosts the registration topic), the centralized
// CloudTrail role, and finally the stack set which registers every core and
// protected account through the registration topic.
package onboarding

import (
	"encoding/json"
	"strings"

	"github.com/alertlogic/scopesync/pkg/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Request is the custom resource request deploying the onboarding.
type Request struct {
	RequestType        events.RequestType `json:"RequestType"`
	ResponseURL        string             `json:"ResponseURL"`
	StackID            string             `json:"StackId"`
	RequestID          string             `json:"RequestId"`
	LogicalResourceID  string             `json:"LogicalResourceId"`
	PhysicalResourceID string             `json:"PhysicalResourceId,omitempty"`
	ResourceType       string             `json:"ResourceType"`
	ResourceProperties Properties         `json:"ResourceProperties"`
}

// Lifecycle returns the part of the request needed to answer it.
func (r Request) Lifecycle() events.LifecycleEvent {
	return events.LifecycleEvent{
		RequestType:        r.RequestType,
		ResponseURL:        r.ResponseURL,
		StackID:            r.StackID,
		RequestID:          r.RequestID,
		LogicalResourceID:  r.LogicalResourceID,
		PhysicalResourceID: r.PhysicalResourceID,
		ResourceType:       r.ResourceType,
	}
}

type Properties struct {
	OrgID             string `json:"OrgId" validate:"required"`
	SecurityAccount   string `json:"SecurityAccount" validate:"required"`
	LogArchiveAccount string `json:"LogArchiveAccount" validate:"required"`
	AuditAccount      string `json:"AuditAccount" validate:"required"`
	CustomerID        string `json:"AlertLogicCustomerId" validate:"required"`
	MasterAccount     string `json:"MasterAccount,omitempty"`
	MasterRegion      string `json:"MasterRegion,omitempty"`
	DeploymentMode    string `json:"AlertLogicDeploymentMode,omitempty"`
	SourceBucket      string `json:"SourceBucket,omitempty"`
	// TargetRegion is a comma separated region list.
	TargetRegion       string `json:"TargetRegion" validate:"required"`
	FullRegionCoverage string `json:"FullRegionCoverage,omitempty"`
	// Secret names the API keys secret in the management account.
	Secret string `json:"Secret" validate:"required"`

	CentralizedRoleARN        string `json:"AlertLogicCentralizedRoleArn,omitempty"`
	SourceRoleTemplateURL     string `json:"AlertLogicSourceRoleTemplateUrl,omitempty"`
	SecuritySetupStackSetName string `json:"SecurityAccountSetupStackSetName" validate:"required"`
	SecuritySetupTemplateURL  string `json:"SecurityAccountSetupStackSetTemplateUrl" validate:"required"`
	CentralizedRoleStackSet   string `json:"CentralizedRoleStackSetName" validate:"required"`
	StackSetName              string `json:"StackSetName" validate:"required"`
	StackSetURL               string `json:"StackSetUrl" validate:"required"`

	IncludeOrganizationalUnits StringList `json:"IncludeOrganizationalUnits,omitempty"`
	ExcludeOrganizationalUnits StringList `json:"ExcludeOrganizationalUnits,omitempty"`
}

var validate = validator.New()

func (p Properties) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(err, "invalid onboarding request")
	}
	return nil
}

// StringList decodes either a JSON string list or a comma separated string,
// since CloudFormation passes list parameters both ways.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*l = trimAll(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "expected a string or a list of strings")
	}
	*l = trimAll(strings.Split(s, ","))
	return nil
}

func trimAll(items []string) StringList {
	out := StringList{}
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Stack set parameters taken from the request properties.
var (
	managementParameterKeys = []string{
		"OrgId",
		"SecurityAccount",
		"LogArchiveAccount",
		"AlertLogicCustomerId",
		"MasterAccount",
		"MasterRegion",
		"AlertLogicCentralizedRoleArn",
		"AlertLogicSourceRoleTemplateUrl",
		"AlertLogicDeploymentMode",
		"SourceBucket",
	}
	securitySetupParameterKeys = []string{
		"OrgId",
		"AlertLogicCustomerId",
		"TargetRegion",
		"SourceBucket",
		"FullRegionCoverage",
	}
)

func (p Properties) value(key string) string {
	switch key {
	case "OrgId":
		return p.OrgID
	case "SecurityAccount":
		return p.SecurityAccount
	case "LogArchiveAccount":
		return p.LogArchiveAccount
	case "AlertLogicCustomerId":
		return p.CustomerID
	case "MasterAccount":
		return p.MasterAccount
	case "MasterRegion":
		return p.MasterRegion
	case "AlertLogicCentralizedRoleArn":
		return p.CentralizedRoleARN
	case "AlertLogicSourceRoleTemplateUrl":
		return p.SourceRoleTemplateURL
	case "AlertLogicDeploymentMode":
		return p.DeploymentMode
	case "SourceBucket":
		return p.SourceBucket
	case "TargetRegion":
		return p.TargetRegion
	case "FullRegionCoverage":
		return p.FullRegionCoverage
	}
	return ""
}

// parameters returns the parameters named by keys which p sets, in key
// order, followed by extra. A key present in extra replaces the value from p.
func (p Properties) parameters(keys []string, extra ...types.Parameter) []types.Parameter {
	override := map[string]bool{}
	for _, e := range extra {
		override[aws.ToString(e.ParameterKey)] = true
	}
	var out []types.Parameter
	for _, k := range keys {
		v := p.value(k)
		if v == "" || override[k] {
			continue
		}
		out = append(out, param(k, v))
	}
	return append(out, extra...)
}

func param(key, value string) types.Parameter {
	return types.Parameter{ParameterKey: aws.String(key), ParameterValue: aws.String(value)}
}

package alertlogic

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// Role types of the IAM role templates published for AWS accounts.
const (
	RoleTypeFull               = "ci_full"
	RoleTypeManual             = "ci_manual"
	RoleTypeXAccountCloudTrail = "ci_x_account_ct"
)

// Role describes an IAM role the service needs in a customer's cloud
// account, and the CloudFormation template creating it.
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"role_type"`
	Version  string `json:"role_version"`
	Template struct {
		S3URL string `json:"s3_url"`
	} `json:"cft"`
}

// GetRole returns the latest version of a role for platform type AWS.
func (c *Client) GetRole(ctx context.Context, customerID, roleType string) (*Role, error) {
	path := "/themis/v1/" + url.PathEscape(customerID) + "/roles/" + PlatformAWS + "/" + url.PathEscape(roleType) + "/latest"
	var out Role
	if err := c.do(ctx, "get role", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RoleTemplateURL returns the template URL of the latest version of a role.
func (c *Client) RoleTemplateURL(ctx context.Context, customerID, roleType string) (string, error) {
	r, err := c.GetRole(ctx, customerID, roleType)
	if err != nil {
		return "", err
	}
	if r.Template.S3URL == "" {
		return "", errors.Errorf("role %s has no template", roleType)
	}
	return r.Template.S3URL, nil
}

package alertlogic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

func deploymentsPath(customerID string) string {
	return "/deployments/v1/" + url.PathEscape(customerID) + "/deployments"
}

// ListDeployments returns every deployment owned by the customer account.
func (c *Client) ListDeployments(ctx context.Context, customerID string) ([]Deployment, error) {
	var out []Deployment
	err := c.do(ctx, "list deployments", http.MethodGet, deploymentsPath(customerID), nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateDeployment(ctx context.Context, customerID string, in CreateDeploymentInput) (*Deployment, error) {
	var out Deployment
	err := c.do(ctx, "create deployment", http.MethodPost, deploymentsPath(customerID), in, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDeployment replaces the scope of a deployment. The service rejects
// the update if version is not the deployment's current version.
func (c *Client) UpdateDeployment(ctx context.Context, customerID, deploymentID string, scope Scope, version json.RawMessage) (*Deployment, error) {
	var out Deployment
	path := deploymentsPath(customerID) + "/" + url.PathEscape(deploymentID)
	err := c.do(ctx, "update deployment", http.MethodPut, path, updateDeploymentInput{Scope: scope, Version: version}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

package alertlogic

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) ListPolicies(ctx context.Context, customerID string) ([]Policy, error) {
	var out []Policy
	err := c.do(ctx, "list policies", http.MethodGet, "/policies/v1/"+url.PathEscape(customerID)+"/policies", nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

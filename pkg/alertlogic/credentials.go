package alertlogic

import (
	"context"
	"net/http"
	"net/url"
)

func credentialsPath(customerID string) string {
	return "/credentials/v2/" + url.PathEscape(customerID) + "/credentials"
}

func (c *Client) CreateCredential(ctx context.Context, customerID, name string, secret CredentialSecret) (*Credential, error) {
	var out Credential
	in := createCredentialInput{Name: name, Secrets: secret}
	err := c.do(ctx, "create credential", http.MethodPost, credentialsPath(customerID), in, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCredential(ctx context.Context, customerID, credentialID string) error {
	path := credentialsPath(customerID) + "/" + url.PathEscape(credentialID)
	return c.do(ctx, "delete credential", http.MethodDelete, path, nil, nil)
}

// Package secrets reads the monitoring API keys from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/common-fate/clio"
	"github.com/pkg/errors"
)

var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrSecretEmpty    = errors.New("secret value is empty")
	ErrAccessDenied   = errors.New("access denied to secret")
)

type ManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Store reads secrets from Secrets Manager in any region.
type Store struct {
	clientFor func(region string) ManagerAPI
}

func NewStore(cfg aws.Config) *Store {
	return &Store{
		clientFor: func(region string) ManagerAPI {
			return secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
				if region != "" {
					o.Region = region
				}
			})
		},
	}
}

// NewStoreWithClient returns a Store which sends every request to api
// regardless of region.
func NewStoreWithClient(api ManagerAPI) *Store {
	return &Store{clientFor: func(string) ManagerAPI { return api }}
}

// GetSecret returns the string or binary value of a secret.
func (s *Store) GetSecret(ctx context.Context, region, name string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("secret name cannot be empty")
	}
	out, err := s.clientFor(region).GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "ResourceNotFoundException":
				return nil, errors.Wrapf(ErrSecretNotFound, "getting secret %s", name)
			case "AccessDeniedException":
				return nil, errors.Wrapf(ErrAccessDenied, "getting secret %s", name)
			}
		}
		return nil, errors.Wrapf(err, "getting secret %s", name)
	}

	switch {
	case out.SecretString != nil && *out.SecretString != "":
		return []byte(*out.SecretString), nil
	case len(out.SecretBinary) > 0:
		return out.SecretBinary, nil
	}
	return nil, errors.Wrapf(ErrSecretEmpty, "getting secret %s", name)
}

// APICredentials is the JSON document stored in the API credentials secret.
type APICredentials struct {
	CustomerID  string `json:"ALCID"`
	AccessKeyID string `json:"ALAccessKey"`
	SecretKey   string `json:"ALSecretKey"`
}

type Getter interface {
	GetSecret(ctx context.Context, region, name string) ([]byte, error)
}

// LoadAPICredentials retrieves and decodes the monitoring API credentials.
func LoadAPICredentials(ctx context.Context, g Getter, region, name string) (APICredentials, error) {
	creds, err := load(ctx, g, region, name)
	if err != nil {
		return APICredentials{}, err
	}
	if creds.CustomerID == "" || creds.AccessKeyID == "" || creds.SecretKey == "" {
		return APICredentials{}, errors.Errorf("secret %s is missing ALCID, ALAccessKey or ALSecretKey", name)
	}
	return creds, nil
}

// LoadAPIKeys is LoadAPICredentials for callers which name the customer
// account themselves. ALCID may be absent.
func LoadAPIKeys(ctx context.Context, g Getter, region, name string) (APICredentials, error) {
	creds, err := load(ctx, g, region, name)
	if err != nil {
		return APICredentials{}, err
	}
	if creds.AccessKeyID == "" || creds.SecretKey == "" {
		return APICredentials{}, errors.Errorf("secret %s is missing ALAccessKey or ALSecretKey", name)
	}
	return creds, nil
}

func load(ctx context.Context, g Getter, region, name string) (APICredentials, error) {
	raw, err := g.GetSecret(ctx, region, name)
	if err != nil {
		clio.Errorw("unable to retrieve the API credentials", "secret", name, "region", region, "error", err)
		return APICredentials{}, err
	}
	var creds APICredentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return APICredentials{}, errors.Wrapf(err, "decoding secret %s", name)
	}
	return creds, nil
}

package alertlogic

import "encoding/json"

// PlatformAWS is the platform type of deployments protecting AWS accounts.
const PlatformAWS = "aws"

// Asset types used in deployment scopes.
const (
	AssetRegion = "region"
	AssetVPC    = "vpc"
	AssetSubnet = "subnet"
)

type PolicyRef struct {
	ID string `json:"id"`
}

// ScopeEntry identifies a single protected asset within a deployment scope.
// Only key, type and policy are kept; other attributes the service returns on
// an entry are not written back when a scope is updated.
type ScopeEntry struct {
	Key    string     `json:"key"`
	Type   string     `json:"type"`
	Policy *PolicyRef `json:"policy,omitempty"`
}

// Equal reports whether e and o are structurally identical.
func (e ScopeEntry) Equal(o ScopeEntry) bool {
	if e.Key != o.Key || e.Type != o.Type {
		return false
	}
	if e.Policy == nil || o.Policy == nil {
		return e.Policy == nil && o.Policy == nil
	}
	return e.Policy.ID == o.Policy.ID
}

type Scope struct {
	Include []ScopeEntry `json:"include"`
	Exclude []ScopeEntry `json:"exclude"`
}

type Platform struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type CredentialRef struct {
	ID      string `json:"id"`
	Purpose string `json:"purpose"`
}

type Deployment struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Platform Platform `json:"platform"`
	Scope    Scope    `json:"scope"`
	// Version is advanced by the service on every successful update and must
	// be echoed back on updates. It is kept verbatim.
	Version     json.RawMessage `json:"version,omitempty"`
	Mode        string          `json:"mode,omitempty"`
	Enabled     bool            `json:"enabled"`
	Discover    bool            `json:"discover"`
	Scan        bool            `json:"scan"`
	Credentials []CredentialRef `json:"credentials,omitempty"`
}

type CreateDeploymentInput struct {
	Name        string          `json:"name"`
	Platform    Platform        `json:"platform"`
	Mode        string          `json:"mode"`
	Enabled     bool            `json:"enabled"`
	Discover    bool            `json:"discover"`
	Scan        bool            `json:"scan"`
	Credentials []CredentialRef `json:"credentials"`
	Scope       Scope           `json:"scope"`
}

type updateDeploymentInput struct {
	Scope   Scope           `json:"scope"`
	Version json.RawMessage `json:"version"`
}

type Policy struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CredentialSecret is the secret material of a credential. Only IAM role
// credentials are created here.
type CredentialSecret struct {
	Type string `json:"type"`
	ARN  string `json:"arn"`
}

const SecretTypeIAMRole = "aws_iam_role"

type Credential struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Secrets CredentialSecret `json:"secrets"`
}

type createCredentialInput struct {
	Name    string           `json:"name"`
	Secrets CredentialSecret `json:"secrets"`
}

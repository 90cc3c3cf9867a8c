package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockManagerAPI struct {
	getSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *mockManagerAPI) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return m.getSecretValueFunc(ctx, params)
}

func returning(out *secretsmanager.GetSecretValueOutput, err error) *mockManagerAPI {
	return &mockManagerAPI{getSecretValueFunc: func(context.Context, *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
		return out, err
	}}
}

func TestStore_GetSecret(t *testing.T) {
	tests := []struct {
		name    string
		api     *mockManagerAPI
		want    []byte
		wantErr error
	}{
		{
			name: "string secret",
			api:  returning(&secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"ALCID":"134"}`)}, nil),
			want: []byte(`{"ALCID":"134"}`),
		},
		{
			name: "binary secret",
			api:  returning(&secretsmanager.GetSecretValueOutput{SecretBinary: []byte("binary")}, nil),
			want: []byte("binary"),
		},
		{
			name:    "empty secret",
			api:     returning(&secretsmanager.GetSecretValueOutput{}, nil),
			wantErr: ErrSecretEmpty,
		},
		{
			name:    "not found",
			api:     returning(nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "no such secret"}),
			wantErr: ErrSecretNotFound,
		},
		{
			name:    "access denied",
			api:     returning(nil, &smithy.GenericAPIError{Code: "AccessDeniedException"}),
			wantErr: ErrAccessDenied,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStoreWithClient(tt.api).GetSecret(context.Background(), "us-east-1", "al-credentials")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_GetSecretRequestsName(t *testing.T) {
	var gotID string
	api := &mockManagerAPI{getSecretValueFunc: func(_ context.Context, in *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
		gotID = aws.ToString(in.SecretId)
		return &secretsmanager.GetSecretValueOutput{SecretString: aws.String("x")}, nil
	}}
	_, err := NewStoreWithClient(api).GetSecret(context.Background(), "", "al-credentials")
	require.NoError(t, err)
	assert.Equal(t, "al-credentials", gotID)

	_, err = NewStoreWithClient(api).GetSecret(context.Background(), "", "")
	assert.Error(t, err)
}

type getterFunc func(ctx context.Context, region, name string) ([]byte, error)

func (f getterFunc) GetSecret(ctx context.Context, region, name string) ([]byte, error) {
	return f(ctx, region, name)
}

func TestLoadAPICredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		g := getterFunc(func(context.Context, string, string) ([]byte, error) {
			return []byte(`{"ALCID":"134","ALAccessKey":"key","ALSecretKey":"secret"}`), nil
		})
		got, err := LoadAPICredentials(ctx, g, "us-east-1", "al-credentials")
		require.NoError(t, err)
		assert.Equal(t, APICredentials{CustomerID: "134", AccessKeyID: "key", SecretKey: "secret"}, got)
	})

	t.Run("retrieval failure", func(t *testing.T) {
		boom := errors.New("boom")
		g := getterFunc(func(context.Context, string, string) ([]byte, error) { return nil, boom })
		_, err := LoadAPICredentials(ctx, g, "us-east-1", "al-credentials")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("missing fields", func(t *testing.T) {
		g := getterFunc(func(context.Context, string, string) ([]byte, error) { return []byte(`{"ALCID":"134"}`), nil })
		_, err := LoadAPICredentials(ctx, g, "us-east-1", "al-credentials")
		assert.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		g := getterFunc(func(context.Context, string, string) ([]byte, error) { return []byte(`nope`), nil })
		_, err := LoadAPICredentials(ctx, g, "us-east-1", "al-credentials")
		assert.Error(t, err)
	})
}

func TestLoadAPIKeys(t *testing.T) {
	ctx := context.Background()
	keysOnly := getterFunc(func(context.Context, string, string) ([]byte, error) {
		return []byte(`{"ALAccessKey":"key","ALSecretKey":"secret"}`), nil
	})

	got, err := LoadAPIKeys(ctx, keysOnly, "us-east-1", "al-credentials")
	require.NoError(t, err)
	assert.Equal(t, APICredentials{AccessKeyID: "key", SecretKey: "secret"}, got)

	_, err = LoadAPICredentials(ctx, keysOnly, "us-east-1", "al-credentials")
	assert.Error(t, err, "the customer account is required here")

	_, err = LoadAPIKeys(ctx, getterFunc(func(context.Context, string, string) ([]byte, error) {
		return []byte(`{"ALCID":"134","ALAccessKey":"key"}`), nil
	}), "us-east-1", "al-credentials")
	assert.Error(t, err)
}

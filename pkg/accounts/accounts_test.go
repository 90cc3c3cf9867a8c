package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/stretchr/testify/assert"
)

type mockOrganizations struct {
	out *organizations.DescribeAccountOutput
	err error
}

func (m mockOrganizations) DescribeAccount(ctx context.Context, params *organizations.DescribeAccountInput, optFns ...func(*organizations.Options)) (*organizations.DescribeAccountOutput, error) {
	return m.out, m.err
}

func TestDirectory_Name(t *testing.T) {
	tests := []struct {
		name string
		api  OrganizationsAPI
		want string
	}{
		{name: "disabled", api: nil, want: "111122223333"},
		{
			name: "resolved",
			api:  mockOrganizations{out: &organizations.DescribeAccountOutput{Account: &types.Account{Name: aws.String("workloads-prod")}}},
			want: "workloads-prod",
		},
		{name: "lookup fails", api: mockOrganizations{err: errors.New("AccessDenied")}, want: "111122223333"},
		{name: "no account in response", api: mockOrganizations{out: &organizations.DescribeAccountOutput{}}, want: "111122223333"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Directory{API: tt.api}
			assert.Equal(t, tt.want, d.Name(context.Background(), "111122223333"))
		})
	}
}

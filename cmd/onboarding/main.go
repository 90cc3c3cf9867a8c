// Command onboarding answers the Control Tower onboarding custom resource.
package main

import (
	"context"

	"github.com/alertlogic/scopesync/pkg/app"
	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	a := app.MustLoad(context.Background())
	lambda.Start(a.OnboardingHandler().Handle)
}

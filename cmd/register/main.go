// Command register reconciles monitoring deployments from the lifecycle
// notifications delivered to the registration topic.
package main

import (
	"context"

	"github.com/alertlogic/scopesync/pkg/app"
	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	a := app.MustLoad(context.Background(), config.RequireSecret)
	lambda.Start(a.Dispatcher().HandleSNS)
}

// Command discovery answers the scope discovery custom resource.
package main

import (
	"context"

	"github.com/alertlogic/scopesync/pkg/app"
	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	a := app.MustLoad(context.Background(), config.RequireDiscovery)
	lambda.Start(a.DiscoveryHandler().Handle)
}

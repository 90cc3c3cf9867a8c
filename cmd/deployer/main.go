// Command deployer updates deployment scope when VPC or subnet tags change.
package main

import (
	"context"

	"github.com/alertlogic/scopesync/pkg/app"
	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	a := app.MustLoad(context.Background(), config.RequireSecret)
	lambda.Start(a.TagHandler().Handle)
}

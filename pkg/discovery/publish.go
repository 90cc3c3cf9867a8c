package discovery

import (
	"context"

	"github.com/alertlogic/scopesync/pkg/events"
	"github.com/alertlogic/scopesync/pkg/scope"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/common-fate/clio"
	"github.com/pkg/errors"
)

type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publish announces assets as an UpdateScope notification for accountID and
// returns the message id.
func Publish(ctx context.Context, api SNSAPI, topicARN, accountID string, assets []scope.Asset) (string, error) {
	if topicARN == "" {
		return "", errors.New("no registration topic configured")
	}
	msg, err := events.UpdateScopeMessage(accountID, assets)
	if err != nil {
		return "", err
	}
	out, err := api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(string(msg)),
	})
	if err != nil {
		return "", errors.Wrap(err, "publishing scope update")
	}
	id := aws.ToString(out.MessageId)
	clio.Infow("published scope update", "topic", topicARN, "account", accountID, "assets", len(assets), "message", id)
	return id, nil
}

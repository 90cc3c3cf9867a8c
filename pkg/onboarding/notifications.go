package onboarding

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/common-fate/clio"
	"github.com/pkg/errors"
)

// configTopic is the topic Control Tower publishes configuration changes of
// the organization to, in the audit account.
const configTopic = "aws-controltower-AllConfigNotifications"

type SQSAPI interface {
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	SetQueueAttributes(ctx context.Context, params *sqs.SetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error)
}

type SNSAPI interface {
	AddPermission(ctx context.Context, params *sns.AddPermissionInput, optFns ...func(*sns.Options)) (*sns.AddPermissionOutput, error)
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
}

func configTopicARN(region, auditAccount string) string {
	return "arn:aws:sns:" + region + ":" + auditAccount + ":" + configTopic
}

// queueName is the queue in the log archive account which receives the
// configuration notifications for a customer.
func queueName(customerID string) string {
	return "outcomesbucket-" + customerID
}

func queueARN(region, logArchiveAccount, customerID string) string {
	return "arn:aws:sqs:" + region + ":" + logArchiveAccount + ":" + queueName(customerID)
}

type policyDocument struct {
	Version   string            `json:"Version"`
	ID        string            `json:"Id"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string                       `json:"Sid"`
	Effect    string                       `json:"Effect"`
	Principal map[string]string            `json:"Principal"`
	Action    string                       `json:"Action"`
	Resource  string                       `json:"Resource"`
	Condition map[string]map[string]string `json:"Condition"`
}

// queuePolicy allows the configuration topic to deliver to the queue.
func queuePolicy(queueARN, topicARN string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		ID:      "SQSDefaultPolicy",
		Statement: []policyStatement{{
			Sid:       "AlertLogicSNS",
			Effect:    "Allow",
			Principal: map[string]string{"AWS": "*"},
			Action:    "SQS:SendMessage",
			Resource:  queueARN,
			Condition: map[string]map[string]string{
				"ArnEquals": {"aws:SourceArn": topicARN},
			},
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// allowSubscribe lets the log archive account subscribe to the
// configuration topic. api belongs to the audit account.
func allowSubscribe(ctx context.Context, api SNSAPI, p Properties, region string) error {
	topic := configTopicARN(region, p.AuditAccount)
	_, err := api.AddPermission(ctx, &sns.AddPermissionInput{
		TopicArn:     aws.String(topic),
		Label:        aws.String("AlertLogicSQS"),
		AWSAccountId: []string{p.LogArchiveAccount},
		ActionName:   []string{"Subscribe"},
	})
	if err != nil {
		return errors.Wrapf(err, "allowing %s to subscribe to %s", p.LogArchiveAccount, topic)
	}
	clio.Infow("allowed configuration topic subscription", "topic", topic, "account", p.LogArchiveAccount)
	return nil
}

// subscribeQueue creates the customer queue and subscribes it to the
// configuration topic. Both clients belong to the log archive account.
func subscribeQueue(ctx context.Context, queues SQSAPI, topics SNSAPI, p Properties, region string) error {
	q, err := queues.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(queueName(p.CustomerID))})
	if err != nil {
		return errors.Wrapf(err, "creating queue %s", queueName(p.CustomerID))
	}
	clio.Infow("created queue", "queue", aws.ToString(q.QueueUrl))

	queue := queueARN(region, p.LogArchiveAccount, p.CustomerID)
	topic := configTopicARN(region, p.AuditAccount)
	policy, err := queuePolicy(queue, topic)
	if err != nil {
		return err
	}
	_, err = queues.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
		QueueUrl:   q.QueueUrl,
		Attributes: map[string]string{"Policy": policy},
	})
	if err != nil {
		return errors.Wrapf(err, "setting the policy of queue %s", queue)
	}

	sub, err := topics.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: aws.String(topic),
		Protocol: aws.String("sqs"),
		Endpoint: aws.String(queue),
	})
	if err != nil {
		return errors.Wrapf(err, "subscribing %s to %s", queue, topic)
	}
	clio.Infow("subscribed queue to configuration topic", "queue", queue, "topic", topic, "subscription", aws.ToString(sub.SubscriptionArn))
	return nil
}

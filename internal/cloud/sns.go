package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/cenfotec-cedula5/energy-monitor/internal/domain"
)

type publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient publishes analysis failures to an SNS topic.
type SNSClient struct {
	svc      publisher
	topicArn string
}

// NewSNSClient loads AWS credentials from the environment/shared config.
func NewSNSClient(ctx context.Context, region, topicArn string) (*SNSClient, error) {
	if topicArn == "" {
		return nil, fmt.Errorf("sns: empty topic arn")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &SNSClient{svc: sns.NewFromConfig(cfg), topicArn: topicArn}, nil
}

// SendAlert publishes a plain message to the topic.
func (c *SNSClient) SendAlert(ctx context.Context, subject, message string) (string, error) {
	out, err := c.svc.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish to SNS: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// NotifyFailure reports a failed analysis cycle together with the reading that caused it.
func (c *SNSClient) NotifyFailure(ctx context.Context, rd domain.Reading, cause error) error {
	subject := "Energy monitor: analysis failed"
	message := fmt.Sprintf(
		"Analysis failure\n\n"+
			"Source: %s\n"+
			"Received: %s\n"+
			"Error: %v\n\n"+
			"Reading:\n%s",
		rd.Source,
		rd.ReceivedAt.Format(time.RFC3339),
		cause,
		rd.Payload,
	)
	_, err := c.SendAlert(ctx, subject, message)
	return err
}

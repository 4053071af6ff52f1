package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"avpackaging/internal/config"
	"avpackaging/internal/logging"
	"avpackaging/internal/services"
)

// Outcome values carried in the outcome attribute.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailure = "FAILURE"
)

const unknownFormat = "unknown"

// Event describes the terminal outcome of one run.
type Event struct {
	RefID string
	// Format is the classified media kind; empty when the run failed before
	// classification.
	Format string
	// Err is nil on success.
	Err error
}

// Outcome returns OutcomeSuccess or OutcomeFailure.
func (e Event) Outcome() string {
	if e.Err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// Message returns the human-readable message body.
func (e Event) Message() string {
	if e.Err != nil {
		return fmt.Sprintf("%s package %s failed packaging", e.format(), e.RefID)
	}
	return fmt.Sprintf("%s package %s successfully packaged", e.format(), e.RefID)
}

func (e Event) format() string {
	if strings.TrimSpace(e.Format) == "" {
		return unknownFormat
	}
	return e.Format
}

// Attributes returns the message attributes keyed by name.
func (e Event) Attributes(service string) map[string]string {
	attrs := map[string]string{
		"format":  e.format(),
		"refid":   e.RefID,
		"service": service,
		"outcome": e.Outcome(),
	}
	if e.Err != nil {
		attrs["message"] = e.Err.Error()
	}
	return attrs
}

// Service publishes run outcomes.
type Service interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher is the SNS client surface used for publishing.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// NewService returns an SNS-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) Service {
	topic := strings.TrimSpace(cfg.Notifications.TopicARN)
	if topic == "" {
		return noopService{}
	}
	return NewSNSService(sns.NewFromConfig(awsCfg), topic, cfg.Notifications.Service, logger)
}

// NewSNSService wraps an SNS client.
func NewSNSService(client Publisher, topicARN, service string, logger *slog.Logger) Service {
	return &snsService{
		client:  client,
		topic:   topicARN,
		service: service,
		logger:  logging.NewComponentLogger(logger, "notifier"),
	}
}

type snsService struct {
	client  Publisher
	topic   string
	service string
	logger  *slog.Logger
}

func (s *snsService) Publish(ctx context.Context, event Event) error {
	attrs := make(map[string]types.MessageAttributeValue)
	for key, value := range event.Attributes(s.service) {
		if value == "" {
			continue
		}
		attrs[key] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(s.topic),
		Message:           aws.String(event.Message()),
		MessageAttributes: attrs,
	})
	if err != nil {
		return services.Wrap(services.ErrTransfer, "", "publish notification", s.topic, err)
	}
	logging.WithContext(ctx, s.logger).Debug(
		"notification published",
		logging.String("outcome", event.Outcome()),
		logging.String("message_id", aws.ToString(out.MessageId)),
	)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event) error { return nil }

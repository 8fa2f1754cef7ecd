package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	routingKeyLoanCreated        = "loan.created"
	routingKeyPaymentReceived    = "loan.payment.received"
	routingKeyLoanPaidOff        = "loan.paidoff"
	routingKeyInstallmentDueSoon = "installment.duesoon"
	publisherAppID               = "credit-engine"
)

// RabbitMQPublisher publishes domain events to a durable topic exchange.
// Channels are opened per publish; the connection is long-lived and owned by
// the caller.
type RabbitMQPublisher struct {
	conn         *amqp.Connection
	exchangeName string
	logger       *slog.Logger
}

var _ Publisher = (*RabbitMQPublisher)(nil)

func NewRabbitMQPublisher(conn *amqp.Connection, exchangeName string, logger *slog.Logger) (*RabbitMQPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection cannot be nil")
	}
	if exchangeName == "" {
		return nil, fmt.Errorf("RabbitMQ exchange name cannot be empty")
	}

	tempCh, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open temporary channel for exchange declaration: %w", err)
	}
	defer tempCh.Close()

	err = tempCh.ExchangeDeclare(
		exchangeName,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchangeName, err)
	}
	logger.Info("Ensured RabbitMQ exchange exists", "exchange", exchangeName, "type", amqp.ExchangeTopic)

	return &RabbitMQPublisher{
		conn:         conn,
		exchangeName: exchangeName,
		logger:       logger.With("component", "RabbitMQPublisher", "exchange", exchangeName),
	}, nil
}

func (p *RabbitMQPublisher) PublishLoanCreated(ctx context.Context, event LoanCreatedEvent) error {
	return p.publish(ctx, routingKeyLoanCreated, event)
}

func (p *RabbitMQPublisher) PublishPaymentReceived(ctx context.Context, event PaymentReceivedEvent) error {
	return p.publish(ctx, routingKeyPaymentReceived, event)
}

func (p *RabbitMQPublisher) PublishLoanPaidOff(ctx context.Context, event LoanPaidOffEvent) error {
	return p.publish(ctx, routingKeyLoanPaidOff, event)
}

func (p *RabbitMQPublisher) PublishInstallmentDueSoon(ctx context.Context, event InstallmentDueSoonEvent) error {
	return p.publish(ctx, routingKeyInstallmentDueSoon, event)
}

func (p *RabbitMQPublisher) publish(ctx context.Context, routingKey string, payload interface{}) error {
	logCtx := p.logger.With(slog.String("routingKey", routingKey))

	channel, err := p.conn.Channel()
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to open RabbitMQ channel", slog.Any("error", err))
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	body, err := json.Marshal(payload)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to marshal event payload to JSON", slog.Any("error", err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = channel.PublishWithContext(
		ctx,
		p.exchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
			AppId:        publisherAppID,
		},
	)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to publish message to RabbitMQ", slog.Any("error", err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logCtx.InfoContext(ctx, "Successfully published message")
	return nil
}

package event

import "context"

type Publisher interface {
	PublishLoanCreated(ctx context.Context, event LoanCreatedEvent) error

	PublishPaymentReceived(ctx context.Context, event PaymentReceivedEvent) error

	PublishLoanPaidOff(ctx context.Context, event LoanPaidOffEvent) error

	PublishInstallmentDueSoon(ctx context.Context, event InstallmentDueSoonEvent) error
}

// NoopPublisher satisfies Publisher when messaging is disabled.
type NoopPublisher struct{}

var _ Publisher = (*NoopPublisher)(nil)

func (NoopPublisher) PublishLoanCreated(context.Context, LoanCreatedEvent) error {
	return nil
}

func (NoopPublisher) PublishPaymentReceived(context.Context, PaymentReceivedEvent) error {
	return nil
}

func (NoopPublisher) PublishLoanPaidOff(context.Context, LoanPaidOffEvent) error {
	return nil
}

func (NoopPublisher) PublishInstallmentDueSoon(context.Context, InstallmentDueSoonEvent) error {
	return nil
}

package service

import (
	"context"
	"fmt"

	"rentflow/internal/domain"
	"rentflow/internal/models"

	"github.com/google/uuid"
)

// MockGateway approves every charge. References look like PAY-<bookingID>-<uuid>.
type MockGateway struct{}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) Charge(_ context.Context, req domain.ChargeRequest) (models.PaymentResult, error) {
	if !req.Amount.IsPositive() {
		return models.PaymentResult{Success: false, Reason: "amount must be positive"}, nil
	}
	return models.PaymentResult{
		Success:   true,
		Reference: fmt.Sprintf("PAY-%d-%s", req.BookingID, uuid.NewString()),
	}, nil
}

// NewPaymentGateway resolves the configured provider.
func NewPaymentGateway(provider string) (domain.PaymentGateway, error) {
	switch provider {
	case "", "mock":
		return NewMockGateway(), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", provider)
	}
}

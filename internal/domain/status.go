package domain

// PaymentStatus is the canonical status of a payment across all gateways.
type PaymentStatus string

// Payment status constants.
const (
	PaymentStatusPending        PaymentStatus = "pending"
	PaymentStatusProcessing     PaymentStatus = "processing"
	PaymentStatusSucceeded      PaymentStatus = "succeeded"
	PaymentStatusFailed         PaymentStatus = "failed"
	PaymentStatusCanceled       PaymentStatus = "canceled"
	PaymentStatusRequiresAction PaymentStatus = "requires_action"
)

// RefundStatus is the canonical status of a refund.
type RefundStatus string

// Refund status constants.
const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusFailed    RefundStatus = "failed"
	RefundStatusCanceled  RefundStatus = "canceled"
)

// PayoutStatus is the canonical status of a payout.
type PayoutStatus string

// Payout status constants.
const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusInTransit PayoutStatus = "in_transit"
	PayoutStatusPaid      PayoutStatus = "paid"
	PayoutStatusFailed    PayoutStatus = "failed"
	PayoutStatusCanceled  PayoutStatus = "canceled"
)

// ValidPaymentStatuses returns all valid payment statuses.
func ValidPaymentStatuses() []PaymentStatus {
	return []PaymentStatus{
		PaymentStatusPending,
		PaymentStatusProcessing,
		PaymentStatusSucceeded,
		PaymentStatusFailed,
		PaymentStatusCanceled,
		PaymentStatusRequiresAction,
	}
}

// IsValidPaymentStatus checks whether the given status is a valid payment status.
func IsValidPaymentStatus(status PaymentStatus) bool {
	for _, s := range ValidPaymentStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is expected for the payment.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCanceled:
		return true
	default:
		return false
	}
}

// ValidRefundStatuses returns all valid refund statuses.
func ValidRefundStatuses() []RefundStatus {
	return []RefundStatus{
		RefundStatusPending,
		RefundStatusSucceeded,
		RefundStatusFailed,
		RefundStatusCanceled,
	}
}

// IsValidRefundStatus checks whether the given status is a valid refund status.
func IsValidRefundStatus(status RefundStatus) bool {
	for _, s := range ValidRefundStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// ValidPayoutStatuses returns all valid payout statuses.
func ValidPayoutStatuses() []PayoutStatus {
	return []PayoutStatus{
		PayoutStatusPending,
		PayoutStatusInTransit,
		PayoutStatusPaid,
		PayoutStatusFailed,
		PayoutStatusCanceled,
	}
}

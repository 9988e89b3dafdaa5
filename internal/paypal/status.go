package paypal

type OrderStatus string

const (
	OrderStatusCreated             OrderStatus = "CREATED"
	OrderStatusSaved               OrderStatus = "SAVED"
	OrderStatusApproved            OrderStatus = "APPROVED"
	OrderStatusPayerActionRequired OrderStatus = "PAYER_ACTION_REQUIRED"
	OrderStatusCompleted           OrderStatus = "COMPLETED"
	OrderStatusVoided              OrderStatus = "VOIDED"
	OrderStatusDeclined            OrderStatus = "DECLINED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusVoided || s == OrderStatusDeclined
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

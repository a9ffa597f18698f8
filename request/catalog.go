package request

// Body is a free-form JSON object for endpoints whose payload is too
// broad to model field by field.
type Body = map[string]any

// StateChangeReason explains a subscription state transition.
type StateChangeReason struct {
	Reason string `json:"reason"`
}

// Money is an amount in the v1 billing format.
type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// CaptureRequest charges an outstanding subscription balance.
type CaptureRequest struct {
	Note        string `json:"note"`
	CaptureType string `json:"capture_type"`
	Amount      Money  `json:"amount"`
}

// PatchOperation is one JSON Patch operation.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
	From  string `json:"from,omitempty"`
}

// Amount is an amount in the v1 payments format.
type Amount struct {
	Total    string            `json:"total"`
	Currency string            `json:"currency"`
	Details  map[string]string `json:"details,omitempty"`
}

// RefundRequest refunds a sale or capture, fully when Amount is nil.
type RefundRequest struct {
	Amount        *Amount `json:"amount,omitempty"`
	Description   string  `json:"description,omitempty"`
	InvoiceNumber string  `json:"invoice_number,omitempty"`
}

// ExecuteRequest completes a payment the payer approved.
type ExecuteRequest struct {
	PayerID      string `json:"payer_id"`
	Transactions []Body `json:"transactions,omitempty"`
}

// Billing subscriptions.
var (
	SubscriptionCreate   = Register[Body]("billing.subscriptions.create", POST, "/v1/billing/subscriptions?")
	SubscriptionGet      = Register[NoBody]("billing.subscriptions.get", GET, "/v1/billing/subscriptions/{subscription_id}?")
	SubscriptionUpdate   = Register[[]PatchOperation]("billing.subscriptions.update", PATCH, "/v1/billing/subscriptions/{subscription_id}?")
	SubscriptionActivate = Register[StateChangeReason]("billing.subscriptions.activate", POST, "/v1/billing/subscriptions/{subscription_id}/activate?")
	SubscriptionSuspend  = Register[StateChangeReason]("billing.subscriptions.suspend", POST, "/v1/billing/subscriptions/{subscription_id}/suspend?")
	SubscriptionCancel   = Register[StateChangeReason]("billing.subscriptions.cancel", POST, "/v1/billing/subscriptions/{subscription_id}/cancel?")
	SubscriptionCapture  = Register[CaptureRequest]("billing.subscriptions.capture", POST, "/v1/billing/subscriptions/{subscription_id}/capture?")
)

// Billing plans.
var (
	PlanCreate = Register[Body]("billing.plans.create", POST, "/v1/billing/plans?")
	PlanGet    = Register[NoBody]("billing.plans.get", GET, "/v1/billing/plans/{plan_id}?")
)

// Payments, sales and captures.
var (
	PaymentCreate  = Register[Body]("payments.payment.create", POST, "/v1/payments/payment?")
	PaymentGet     = Register[NoBody]("payments.payment.get", GET, "/v1/payments/payment/{payment_id}?")
	PaymentExecute = Register[ExecuteRequest]("payments.payment.execute", POST, "/v1/payments/payment/{payment_id}/execute?")
	SaleGet        = Register[NoBody]("payments.sale.get", GET, "/v1/payments/sale/{sale_id}?")
	SaleRefund     = Register[RefundRequest]("payments.sale.refund", POST, "/v1/payments/sale/{sale_id}/refund?")
	CaptureGet     = Register[NoBody]("payments.capture.get", GET, "/v1/payments/capture/{capture_id}?")
	CaptureRefund  = Register[RefundRequest]("payments.capture.refund", POST, "/v1/payments/capture/{capture_id}/refund?")
)

// Invoicing and webhooks.
var (
	InvoiceUpdate = Register[Body]("invoicing.invoices.update", PUT, "/v2/invoicing/invoices/{invoice_id}?")
	WebhookDelete = Register[NoBody]("notifications.webhooks.delete", DELETE, "/v1/notifications/webhooks/{webhook_id}?")
)

package constants

// Static route constants
const (
	MpesaRoute    = "/mpesa"
	InvoicesRoute = "/invoices"
	PaymentsRoute = "/payments"
	APIRoute      = "/api"
)

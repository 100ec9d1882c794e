package domain

import "errors"

// Business-rule rejections. These are detected before any remote call, so
// a caller seeing one knows no transaction row and no gateway order exist.
var (
	ErrNotEligible         = errors.New("caller is not eligible for this payment purpose")
	ErrAlreadyPaid         = errors.New("this fee or subscription is already paid")
	ErrDuplicateInProgress = errors.New("a payment for this purpose is already in progress or completed")
	ErrInvalidInput        = errors.New("invalid input")
)

// Gateway failures. During initiation they always leave a failed
// transaction with the raw diagnostic payload attached.
var (
	ErrGatewayUnreachable  = errors.New("failed to contact payment gateway")
	ErrGatewayAuthFailed   = errors.New("failed to authenticate with payment gateway")
	ErrGatewaySubmitFailed = errors.New("payment gateway did not accept the request")
)

// Reconciliation outcomes.
var (
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrAlreadyFinal marks a transition attempt on a terminal transaction.
	// Callers on the notification path treat it as an idempotent no-op.
	ErrAlreadyFinal = errors.New("transaction already in a terminal state")
)

// IsGatewayError reports whether err is any of the gateway failure classes.
func IsGatewayError(err error) bool {
	return errors.Is(err, ErrGatewayUnreachable) ||
		errors.Is(err, ErrGatewayAuthFailed) ||
		errors.Is(err, ErrGatewaySubmitFailed)
}

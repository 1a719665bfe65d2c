package payments

import "context"

// PaymentGateway defines the contract every provider adapter implements.
type PaymentGateway interface {
	Name() Provider

	// BuildCreateRequest translates an intent into the provider's wire request. It performs
	// no I/O; credentials that need a network round trip are added by InitiatePayment.
	BuildCreateRequest(intent PaymentIntent) (*OutboundRequest, error)
	ParseCreateResponse(status int, raw []byte) (CreateResult, error)
	InitiatePayment(ctx context.Context, intent PaymentIntent) (CreateResult, error)

	QueryStatus(ctx context.Context, q StatusQuery) (StatusResult, error)

	VerifyCallback(raw []byte) error
	ParseCallback(raw []byte) (CallbackResult, error)
}

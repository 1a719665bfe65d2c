package payments

import "strings"

// Native status vocabulary shared by all adapters. OPay speaks it directly; the M-Pesa and
// Nsano adapters translate their result codes into it.
const (
	NativeInitial = "INITIAL"
	NativePending = "PENDING"
	NativeSuccess = "SUCCESS"
	NativeFail    = "FAIL"
	NativeClose   = "CLOSE"
)

const (
	CodeSuccess = "00"
	CodeFailed  = "01"
	CodeExpired = "02"
	CodePending = "03"
)

// CanonicalStatus is the merchant-facing status pair.
type CanonicalStatus struct {
	Code    string `json:"code"`
	Message string `json:"msg"`
}

var statusTable = map[string]CanonicalStatus{
	NativeInitial: {CodePending, "Payment initialized"},
	NativePending: {CodePending, "Payment pending customer approval"},
	NativeSuccess: {CodeSuccess, "Payment completed successfully"},
	NativeFail:    {CodeFailed, "Payment failed"},
	NativeClose:   {CodeFailed, "Payment cancelled or expired"},
}

var unknownStatus = CanonicalStatus{CodePending, "Payment status unknown"}

// MapStatus maps a native status to its canonical pair. Anything unrecognised is pending,
// never a definitive success or failure.
func MapStatus(native string) CanonicalStatus {
	if st, ok := statusTable[strings.ToUpper(strings.TrimSpace(native))]; ok {
		return st
	}
	return unknownStatus
}

// State derives the lifecycle state from the canonical code.
func (c CanonicalStatus) State() State {
	switch c.Code {
	case CodeSuccess:
		return StateSuccess
	case CodeFailed, CodeExpired:
		return StateFailed
	default:
		return StatePending
	}
}

package usagey

import "github.com/usagey/usagey-go/pkg/httpclient"

// Error is returned by every Client method when the API call fails. Inspect
// Kind or Code to branch; Message is suitable for display.
type Error = httpclient.Error

// Kind identifies the Error variant.
type Kind = httpclient.Kind

const (
	KindGeneric        = httpclient.KindGeneric
	KindAuthentication = httpclient.KindAuthentication
	KindRateLimit      = httpclient.KindRateLimit
	KindValidation     = httpclient.KindValidation
)

const (
	CodeUnknown         = httpclient.CodeUnknown
	CodePaymentRequired = httpclient.CodePaymentRequired
	CodeForbidden       = httpclient.CodeForbidden
	CodeNotFound        = httpclient.CodeNotFound
	CodeNetwork         = httpclient.CodeNetwork
	CodeAuthentication  = httpclient.CodeAuthentication
	CodeRateLimit       = httpclient.CodeRateLimit
	CodeValidation      = httpclient.CodeValidation
)

// AsError extracts the API error from err's chain.
func AsError(err error) (*Error, bool) { return httpclient.AsError(err) }

func IsAuthentication(err error) bool { return httpclient.IsAuthentication(err) }
func IsRateLimit(err error) bool      { return httpclient.IsRateLimit(err) }
func IsValidation(err error) bool     { return httpclient.IsValidation(err) }
func IsNetwork(err error) bool        { return httpclient.IsNetwork(err) }

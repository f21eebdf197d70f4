package http

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// paymentRequestSchema is shared by /verify and /settle: both consume a
// payment payload plus payment requirements.
const paymentRequestSchema = `{
	"type": "object",
	"required": ["paymentPayload", "paymentRequirements"],
	"properties": {
		"paymentPayload": {
			"type": "object",
			"required": ["x402Version", "payload"],
			"properties": {
				"x402Version": {"type": "integer"},
				"payload": {"type": "object"}
			}
		},
		"paymentRequirements": {
			"type": "object",
			"required": ["network", "asset", "amount"],
			"properties": {
				"scheme": {"type": "string"},
				"network": {"type": "string", "minLength": 1},
				"asset": {"type": "string", "minLength": 1},
				"amount": {"type": "string", "minLength": 1},
				"payTo": {"type": "string"},
				"maxTimeoutSeconds": {"type": "integer"},
				"extra": {"type": "object"}
			}
		}
	}
}`

var paymentRequestValidator = gojsonschema.NewStringLoader(paymentRequestSchema)

// validatePaymentRequest checks the raw body shape before decoding.
func validatePaymentRequest(body []byte) error {
	result, err := gojsonschema.Validate(paymentRequestValidator, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid request: %s", errs[0].String())
		}
		return fmt.Errorf("invalid request")
	}
	return nil
}

package event

import (
	"chat-relay/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks an inbound payload before it reaches the router.
// Events without payload are always valid.
func Validate(in Inbound) error {
	switch req := in.(type) {
	case ChatMessageRequest, FileUploadRequest:
		if err := validate.Struct(req); err != nil {
			return fmt.Errorf("%w: %s: %v", errors.ErrInvalidPayload, in.Name(), err)
		}
	}
	return nil
}

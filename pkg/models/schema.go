package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateInboundPush(push *InboundPush) error {
	if push == nil {
		return &ValidationError{
			Field:   "push",
			Message: "push cannot be nil",
		}
	}

	if push.Payload == nil {
		return &ValidationError{
			Field:   "payload",
			Message: "payload is required",
		}
	}

	if aps, ok := push.Payload[KeyAPS]; ok {
		if _, isMap := aps.(map[string]interface{}); !isMap {
			return &ValidationError{
				Field:   "payload.aps",
				Message: "aps must be an object",
			}
		}
	}

	return nil
}

package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"fileshare/internal/apperr"
)

// envelope is the standard response body shape. Every endpoint returns it
// regardless of success or failure; successful responses never populate Error.
type envelope struct {
	Data    any            `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   *errorEnvelope `json:"error,omitempty"`
}

type errorEnvelope struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// writeData writes a success envelope.
func writeData(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(envelope{Data: data})
}

// writeMessage writes a success envelope with both a message and data.
func writeMessage(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(envelope{Data: data, Message: message})
}

// writeError maps err onto the taxonomy status code and writes the error
// envelope. Internal detail of storage or unexpected failures never reaches
// the client; a generic message is substituted.
func writeError(c *fiber.Ctx, err error) error {
	e := apperr.From(err)
	msg := e.Message
	details := e.Details
	if e.Kind == apperr.StorageFailure || e.Kind == apperr.Configuration {
		msg = "internal server error"
		details = ""
	}
	return c.Status(e.Kind.Status()).JSON(envelope{
		Error: &errorEnvelope{Message: msg, Details: details},
	})
}

// ErrorHandler returns a Fiber global error handler that standardizes error
// responses for errors returned by middleware and handlers.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return writeError(c, appErr)
		}
		if e, ok := err.(*fiber.Error); ok {
			return c.Status(e.Code).JSON(envelope{
				Error: &errorEnvelope{Message: e.Message},
			})
		}
		return writeError(c, err)
	}
}

var validate = validator.New()

// parseBody decodes and validates a JSON request body.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Wrap(apperr.InvalidRequestBody, "invalid request body", err)
	}
	if err := validate.Struct(out); err != nil {
		return apperr.New(apperr.InvalidRequestBody, "invalid request body").
			WithDetails(validationDetails(err))
	}
	return nil
}

func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	details := ""
	for i, fe := range verrs {
		if i > 0 {
			details += "; "
		}
		details += fe.Field() + " failed on '" + fe.Tag() + "'"
	}
	return details
}

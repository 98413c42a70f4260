package apperror

import (
	"errors"
	"fmt"

	"docqa/config"
	"docqa/pkg/apperror/status"
	"docqa/pkg/logger"

	"github.com/gofiber/fiber/v3"
)

// WriteError logs a structured warning and returns a standardized JSON error
func WriteError(module config.Module, c fiber.Ctx, httpStatus int, code string, message string) error {
	logger.WithFields(map[string]interface{}{
		"module":        module,
		"status_code":   httpStatus,
		"error_code":    code,
		"error_message": message,
		"http_method":   c.Method(),
		"path":          c.Path(),
		"url":           c.OriginalURL(),
		"ip":            c.IP(),
		"request_id":    c.Get(fiber.HeaderXRequestID),
	}).Warnf("http error")

	return c.Status(httpStatus).JSON(ErrorResponse{
		Error:     message,
		ErrorCode: code,
	})
}

func errorCode(code status.ErrorCode) string {
	return fmt.Sprintf("AI-%d", code)
}

// Shorthands for common error responses
func BadRequest(module config.Module, c fiber.Ctx, code status.ErrorCode, message string) error {
	return WriteError(module, c, fiber.StatusBadRequest, errorCode(code), message)
}

// UnsupportedMediaType rejects uploads whose type cannot be extracted.
func UnsupportedMediaType(module config.Module, c fiber.Ctx, code status.ErrorCode, message string) error {
	return WriteError(module, c, fiber.StatusUnsupportedMediaType, errorCode(code), message)
}

// ServiceUnavailable reports a dependency or state that is not ready yet.
func ServiceUnavailable(module config.Module, c fiber.Ctx, code status.ErrorCode, message string) error {
	return WriteError(module, c, fiber.StatusServiceUnavailable, errorCode(code), message)
}

// InternalError writes a structured warning and returns a standardized JSON error.
// A status.CodedError keeps its own code.
func InternalError(module config.Module, c fiber.Ctx, err error) error {
	code := status.ErrorCodeInternal
	var coded status.CodedError
	if errors.As(err, &coded) {
		code = coded.ErrorCode()
	}
	return WriteError(module, c, fiber.StatusInternalServerError, errorCode(code), err.Error())
}

// Success writes a standardized JSON success response
func Success(module config.Module, fiberCtx fiber.Ctx, response FiberSuccessMessage) error {
	logger.Debug("%v: %s %s ok", module, fiberCtx.Method(), fiberCtx.Path())
	return fiberCtx.Status(fiber.StatusOK).JSON(response)
}

package http

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/observability"
	apperrors "github.com/greatlakes/greenhouse-tickets/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}
			domainErr := apperrors.ToDomainError(err)
			if metrics != nil {
				metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
			}
			if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
				logger.Error("request failed",
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
					zap.String("code", domainErr.Code),
					zap.Error(domainErr))
			}
			status, body := errorEnvelope(domainErr)
			if status == fiber.StatusServiceUnavailable {
				c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
			}
			err = c.Status(status).JSON(body)
		}()
		return c.Next()
	}
}

const retryAfterSeconds = "5"

// errorEnvelope renders {"error":{"code","message","details"}}. A 503 always
// carries details.retryable=true; other statuses never claim it.
func errorEnvelope(domainErr *apperrors.DomainError) (int, fiber.Map) {
	status := domainErr.HTTPStatus
	if status == 0 {
		status = fiber.StatusInternalServerError
	}
	details := make(map[string]any, len(domainErr.Details)+1)
	for k, v := range domainErr.Details {
		details[k] = v
	}
	if status == fiber.StatusServiceUnavailable {
		details["retryable"] = true
	} else {
		delete(details, "retryable")
	}

	payload := fiber.Map{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	if len(details) > 0 {
		payload["details"] = details
	}
	return status, fiber.Map{"error": payload}
}

package worker

import (
	"go.uber.org/zap"

	"github.com/greatlakes/greenhouse-tickets/internal/service"
)

// StartNotificationWorker subscribes the notification handlers so ticket
// events turn into queued email. Delivery itself happens in the jobs binary.
func StartNotificationWorker(notifications *service.NotificationService, logger *zap.Logger) {
	if notifications == nil {
		if logger != nil {
			logger.Warn("notification service not configured, outbound email disabled")
		}
		return
	}
	notifications.RegisterHandlers()
	if logger != nil {
		logger.Info("notification handlers registered")
	}
}

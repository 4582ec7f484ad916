package worker

import (
	"github.com/spec-kit/auth-service/internal/service"
)

// StartSessionWorker registers session cleanup handlers.
func StartSessionWorker(cleanup *service.SessionCleanupService) {
	if cleanup == nil {
		return
	}
	cleanup.RegisterHandlers()
}

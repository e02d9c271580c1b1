package hostcert

import (
	"context"
	"log/slog"

	rip_db "github.com/caasmo/restinpieces/db"
)

// FetchAllHandler runs the pending-certificate retrieval sweep as a queue
// job, for deployments that embed the tool in a restinpieces app and retry
// retrieval on a schedule instead of invoking GETALL by hand.
type FetchAllHandler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewFetchAllHandler creates a new handler instance.
func NewFetchAllHandler(manager *Manager, logger *slog.Logger) *FetchAllHandler {
	if manager == nil || logger == nil {
		panic("NewFetchAllHandler: received nil manager or logger")
	}
	return &FetchAllHandler{
		manager: manager,
		logger:  logger.With("job_handler", "hostcert_fetch_all"),
	}
}

// Handle executes one retrieval sweep. Per-host retrieval failures do not
// fail the job; only being unable to enumerate the cache does.
func (h *FetchAllHandler) Handle(ctx context.Context, job rip_db.Job) error {
	h.logger.Info("executing retrieval sweep job", "job_id", job.ID)
	return h.manager.FetchAll(ctx)
}

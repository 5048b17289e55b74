package jobs

import (
	"context"

	"splicer/internal/locks"
	"splicer/internal/queue"
	"splicer/internal/transfer"
	"splicer/internal/workflow"
)

// TransferHandler moves a rendered artifact to remote storage. Record status
// updates live in transfer.Worker so direct callers get the same semantics.
type TransferHandler struct {
	worker *transfer.Worker
}

// NewTransferHandler constructs a TransferHandler.
func NewTransferHandler(worker *transfer.Worker) *TransferHandler {
	return &TransferHandler{worker: worker}
}

func (h *TransferHandler) LockKeys(job *queue.Job) ([]string, error) {
	var payload queue.TransferPayload
	if err := decode(job, "transfer", &payload); err != nil {
		return nil, err
	}
	return []string{locks.ArtifactKey(payload.ArtifactID)}, nil
}

func (h *TransferHandler) Handle(ctx context.Context, job *queue.Job, progress workflow.ProgressFunc) (any, error) {
	var payload queue.TransferPayload
	if err := decode(job, "transfer", &payload); err != nil {
		return nil, err
	}
	return h.worker.Transfer(ctx, payload, progress)
}

func (h *TransferHandler) HealthCheck(context.Context) workflow.Health {
	return workflow.Healthy("transfer")
}

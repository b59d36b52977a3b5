package engine

import (
	"context"
	"fmt"

	"cadence/internal/model"
)

// Gateway is the narrow seam to the remote store. The engine is agnostic to
// its transport and encoding. All operations are safe to retry except
// CreateEntity, which the engine guarantees is called at most once per
// local id at a time.
type Gateway interface {
	CreateEntity(ctx context.Context, fields model.RecurringTask) (model.RecurringTask, error)
	PatchEntity(ctx context.Context, id model.TaskID, patch model.TaskPatch) (model.RecurringTask, error)
	DeleteEntity(ctx context.Context, id model.TaskID) error
	BulkDeleteEntities(ctx context.Context, ids []model.TaskID) (BulkDeleteResult, error)
	ToggleActive(ctx context.Context, id model.TaskID) (bool, error)
	RegisterAttachment(ctx context.Context, id model.TaskID, meta model.Attachment) (model.Attachment, error)
	RemoveAttachment(ctx context.Context, id model.TaskID, attachmentID string) error
}

// Uploader hands file bytes to the blob-upload collaborator and returns the
// stored URL. Registration with the task is a separate Gateway call.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// BulkDeleteResult reports a bulk delete per id; partial success is normal.
type BulkDeleteResult struct {
	Succeeded []model.TaskID `json:"succeeded"`
	Failed    []model.TaskID `json:"failed"`
}

// ValidationError rejects a local edit before any commit is scheduled. It
// never reaches the Gateway.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NetworkError wraps a transient transport failure; the affected field group
// stays dirty so a later commit resends it.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ConflictError means the server rejected a stale value. The field group
// stays dirty and the failure is surfaced to the UI.
type ConflictError struct {
	Op      string
	Message string
}

func (e *ConflictError) Error() string { return fmt.Sprintf("%s: conflict: %s", e.Op, e.Message) }

package interfaces

import (
	"context"

	"github.com/meirborowski/veriflow/pkg/domain/model"
)

// BugReporter files bug records from failed executions. The real
// implementation lives in the surrounding application; the coordinator only
// forwards the payload after the execution is durably finalized.
type BugReporter interface {
	FileBug(ctx context.Context, report *model.BugReport) error
}

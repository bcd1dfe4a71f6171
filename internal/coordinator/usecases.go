package coordinator

import (
	"context"

	"github.com/devrev/agentmesh/internal/model"
	"golang.org/x/sync/errgroup"
)

// Use cases wrap the coordinator behind stable application entry points.
// Every call returns a discriminated result; batch variants settle all
// requests, converting individual failures into structured error results
// of the same shape as successes.

// RouteMessageUseCase routes single messages and batches.
type RouteMessageUseCase struct {
	coordinator *Coordinator
	// batchParallelism bounds concurrent sends within one batch.
	batchParallelism int
}

// NewRouteMessageUseCase creates the message routing use case.
func NewRouteMessageUseCase(c *Coordinator) *RouteMessageUseCase {
	return &RouteMessageUseCase{coordinator: c, batchParallelism: 8}
}

// Execute routes one message.
func (uc *RouteMessageUseCase) Execute(ctx context.Context, msg model.UnifiedMessage) model.RouteResult {
	return uc.coordinator.SendMessage(ctx, msg)
}

// ExecuteBatch routes every message, settling all of them: one failed
// send never aborts the rest. Results are returned in request order.
func (uc *RouteMessageUseCase) ExecuteBatch(ctx context.Context, msgs []model.UnifiedMessage) []model.RouteResult {
	results := make([]model.RouteResult, len(msgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.batchParallelism)
	for i, msg := range msgs {
		i, msg := i, msg
		g.Go(func() error {
			results[i] = uc.coordinator.SendMessage(gctx, msg)
			return nil
		})
	}
	// Workers never return errors; failures live in the result slots.
	_ = g.Wait()

	return results
}

// ExecuteOperationUseCase starts single operations and batches.
type ExecuteOperationUseCase struct {
	coordinator      *Coordinator
	batchParallelism int
}

// NewExecuteOperationUseCase creates the operation execution use case.
func NewExecuteOperationUseCase(c *Coordinator) *ExecuteOperationUseCase {
	return &ExecuteOperationUseCase{coordinator: c, batchParallelism: 8}
}

// Execute starts one operation. Malformed requests surface as a
// structured failure here; the error return is reserved for the
// coordinator's invariant violations.
func (uc *ExecuteOperationUseCase) Execute(ctx context.Context, op model.Operation, force bool) model.ExecuteResult {
	result, err := uc.coordinator.StartOperation(ctx, op, force)
	if err != nil {
		return model.ExecuteResult{OperationID: op.ID, Error: err.Error()}
	}
	return result
}

// ExecuteBatch starts every operation with settle-all semantics.
func (uc *ExecuteOperationUseCase) ExecuteBatch(ctx context.Context, ops []model.Operation, force bool) []model.ExecuteResult {
	results := make([]model.ExecuteResult, len(ops))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.batchParallelism)
	for i, op := range ops {
		i, op := i, op
		g.Go(func() error {
			results[i] = uc.Execute(gctx, op, force)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ValidateSystemUseCase reports aggregate system validity.
type ValidateSystemUseCase struct {
	coordinator *Coordinator
}

// NewValidateSystemUseCase creates the validation use case.
func NewValidateSystemUseCase(c *Coordinator) *ValidateSystemUseCase {
	return &ValidateSystemUseCase{coordinator: c}
}

// Execute runs a full system validation pass.
func (uc *ValidateSystemUseCase) Execute(ctx context.Context) model.ValidationResult {
	_ = ctx
	return uc.coordinator.ValidateSystem()
}

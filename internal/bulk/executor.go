// Package bulk applies one action to every member of a resolved group
// and folds per-member outcomes into a partial-failure-aware result.
package bulk

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nc-warden.io/warden/internal/controller"
	apperrors "nc-warden.io/warden/internal/pkg/errors"
	"nc-warden.io/warden/internal/pkg/logger"
	"nc-warden.io/warden/internal/pkg/worker"
)

// Action is one of the client actions a bulk operation can apply.
type Action string

const (
	ActionBlock   Action = "block"
	ActionUnblock Action = "unblock"
	ActionKick    Action = "kick"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionBlock, ActionUnblock, ActionKick:
		return a, nil
	default:
		return "", apperrors.ErrInvalidOperationf("unknown action: " + s)
	}
}

// Outcome classifies one member action.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeAlready
	OutcomeFailed
)

// MemberOutcome is the typed result of one member action.
type MemberOutcome struct {
	MAC     string
	Outcome Outcome
	Err     error
}

// Result aggregates a bulk operation. Succeeded, Already, and Failed
// always sum to Total; per-member errors are data here, never
// propagated as call failures.
type Result struct {
	OperationID string            `json:"operation_id"`
	Action      Action            `json:"action"`
	Total       int               `json:"total"`
	Succeeded   int               `json:"succeeded"`
	Already     int               `json:"already_in_target_state"`
	Failed      int               `json:"failed"`
	Failures    map[string]string `json:"failures,omitempty"`
}

// Ok reports whether every member landed in the target state.
func (r *Result) Ok() bool {
	return r.Failed == 0
}

// Executor drives member actions through the controller with bounded
// concurrency. No rollback: members already acted on stay acted on
// when a later member fails.
type Executor struct {
	ctrl controller.Controller
	pool *worker.Pool
}

// NewExecutor creates an executor over the given controller and pool.
func NewExecutor(ctrl controller.Controller, pool *worker.Pool) *Executor {
	return &Executor{ctrl: ctrl, pool: pool}
}

// Apply runs one action against every member. The snapshot supplies
// each member's prior state for idempotency classification: blocking a
// blocked client or kicking an offline one counts as
// already-in-target-state, not as a new success. Members missing from
// the snapshot are confirmed against the controller before being
// failed. An empty member set yields a zero-count result.
func (e *Executor) Apply(ctx context.Context, action Action, members []string, snapshot []controller.Client) (*Result, error) {
	if _, err := ParseAction(string(action)); err != nil {
		return nil, err
	}

	opID := newOperationID()
	log := logger.With(
		zap.String("operation_id", opID),
		zap.String("action", string(action)),
		zap.Int("members", len(members)),
	)
	log.Debug("Bulk operation started")

	if len(members) == 0 {
		return fold(opID, action, nil, nil), nil
	}

	prior := make(map[string]*controller.Client, len(snapshot))
	for i := range snapshot {
		prior[controller.NormalizeMAC(snapshot[i].MAC)] = &snapshot[i]
	}

	results := make(chan MemberOutcome, len(members))
	for _, member := range members {
		mac := controller.NormalizeMAC(member)
		before := prior[mac]
		err := e.pool.Submit(ctx, func(taskCtx context.Context) {
			results <- e.applyOne(taskCtx, action, mac, before)
		})
		if err != nil {
			results <- MemberOutcome{MAC: mac, Outcome: OutcomeFailed, Err: err}
		}
	}

	outcomes := make([]MemberOutcome, 0, len(members))
	for range members {
		select {
		case r := <-results:
			outcomes = append(outcomes, r)
		case <-ctx.Done():
			outcomes = drainCancelled(ctx, members, outcomes, results)
			res := fold(opID, action, members, outcomes)
			log.Warn("Bulk operation cancelled",
				zap.Int("completed", res.Succeeded+res.Already),
				zap.Int("failed", res.Failed),
			)
			return res, nil
		}
	}

	res := fold(opID, action, members, outcomes)
	log.Info("Bulk operation finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("already_in_target_state", res.Already),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// drainCancelled collects outcomes that finished concurrently with the
// cancellation and fails every member still outstanding. Queued tasks
// may never run after cancellation, so waiting on them would hang.
func drainCancelled(ctx context.Context, members []string, outcomes []MemberOutcome, results chan MemberOutcome) []MemberOutcome {
	for {
		select {
		case r := <-results:
			outcomes = append(outcomes, r)
			continue
		default:
		}
		break
	}

	done := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		done[o.MAC] = true
	}
	for _, member := range members {
		mac := controller.NormalizeMAC(member)
		if !done[mac] {
			done[mac] = true
			outcomes = append(outcomes, MemberOutcome{MAC: mac, Outcome: OutcomeFailed, Err: ctx.Err()})
		}
	}
	return outcomes
}

// applyOne performs one member action and classifies the outcome.
func (e *Executor) applyOne(ctx context.Context, action Action, mac string, prior *controller.Client) MemberOutcome {
	if prior == nil {
		// Clients can vanish between resolution and action; confirm
		// against the controller before failing the member. A client
		// the controller still knows but the snapshot missed was not
		// in the active listing, so it counts as offline.
		found, err := e.ctrl.GetClient(ctx, mac)
		if err != nil {
			return MemberOutcome{MAC: mac, Outcome: OutcomeFailed, Err: err}
		}
		prior = found
	}

	var err error
	switch action {
	case ActionBlock:
		if prior.Blocked {
			return MemberOutcome{MAC: mac, Outcome: OutcomeAlready}
		}
		err = e.ctrl.BlockClient(ctx, mac)
	case ActionUnblock:
		if !prior.Blocked {
			return MemberOutcome{MAC: mac, Outcome: OutcomeAlready}
		}
		err = e.ctrl.UnblockClient(ctx, mac)
	case ActionKick:
		// An offline client is already off the network; kicking it is
		// a no-op, not a failure.
		if !prior.Online {
			return MemberOutcome{MAC: mac, Outcome: OutcomeAlready}
		}
		err = e.ctrl.KickClient(ctx, mac)
	}
	if err != nil {
		return MemberOutcome{MAC: mac, Outcome: OutcomeFailed, Err: err}
	}
	return MemberOutcome{MAC: mac, Outcome: OutcomeSucceeded}
}

// fold reduces per-member outcomes into the aggregate result. Pure and
// commutative over the outcome list, so completion order never shows
// in the counts.
func fold(opID string, action Action, members []string, outcomes []MemberOutcome) *Result {
	res := &Result{
		OperationID: opID,
		Action:      action,
		Total:       len(members),
	}
	for _, o := range outcomes {
		switch o.Outcome {
		case OutcomeSucceeded:
			res.Succeeded++
		case OutcomeAlready:
			res.Already++
		case OutcomeFailed:
			res.Failed++
			if res.Failures == nil {
				res.Failures = make(map[string]string)
			}
			reason := "unknown error"
			if o.Err != nil {
				reason = o.Err.Error()
			}
			res.Failures[o.MAC] = reason
		}
	}
	return res
}

func newOperationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

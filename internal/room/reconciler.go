package room

import (
	"context"
	"errors"
	"time"

	"rooms-platform/internal/provider"
	"rooms-platform/pkg/logger"
)

// Reconciler cross-checks stored "active" rooms against live provider state.
//
// Webhooks can be lost (delivery failure, process restart), so listing
// self-heals on every request: any room the provider no longer backs gets
// terminated here through the same idempotent primitive the webhook path uses.
type Reconciler struct {
	repo     Repository
	provider provider.CallProvider
	svc      *Service

	// inactivity is the staleness window after which a room is considered dead.
	inactivity time.Duration
	clock      func() time.Time
}

func NewReconciler(repo Repository, p provider.CallProvider, svc *Service, inactivity time.Duration) *Reconciler {
	if inactivity <= 0 {
		inactivity = 5 * time.Minute
	}
	return &Reconciler{repo: repo, provider: p, svc: svc, inactivity: inactivity, clock: time.Now}
}

// WithClock overrides the reconciler clock. Test use only.
func (r *Reconciler) WithClock(clock func() time.Time) *Reconciler {
	r.clock = clock
	return r
}

// ListActiveRooms returns the rooms that are genuinely joinable right now,
// terminating any room found to be stale.
func (r *Reconciler) ListActiveRooms(ctx context.Context) ([]ActiveRoom, error) {
	log := logger.From(ctx)

	candidates, err := r.repo.FindActiveRooms(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []ActiveRoom{}, nil
	}

	callIDs := make([]string, 0, len(candidates))
	for _, room := range candidates {
		callIDs = append(callIDs, room.CallID)
	}

	states, err := r.provider.QueryCalls(ctx, callIDs)
	if err != nil {
		// Provider unavailable: skip the correction this pass and list the
		// stored view as-is. Drift heals on the next request.
		log.Warn("provider query failed, listing without reconciliation", "err", err)
		out := make([]ActiveRoom, 0, len(candidates))
		for _, room := range candidates {
			out = append(out, ActiveRoom{
				CallID: room.CallID,
				Name:   room.Name,
				Kind:   room.Kind,
				HostID: room.HostID,
			})
		}
		return out, nil
	}

	byCall := make(map[string]provider.CallState, len(states))
	for _, s := range states {
		byCall[s.CallID] = s
	}

	now := r.clock().UTC()
	out := make([]ActiveRoom, 0, len(candidates))
	for _, room := range candidates {
		// Re-check the store first: a concurrent webhook may have already
		// terminated this room between the candidate query and now.
		current, ok, err := r.repo.FindRoomByCallID(ctx, room.CallID)
		if err != nil {
			log.Warn("room re-check failed", "call_id", room.CallID, "err", err)
			continue
		}
		if !ok || current.Ended {
			continue
		}

		state, known := byCall[room.CallID]
		if !known || state.Ended() {
			r.terminate(ctx, room.CallID, EndReasonProviderEnded)
			continue
		}
		if len(state.Members) == 0 {
			r.terminate(ctx, room.CallID, EndReasonEmpty)
			continue
		}
		if !state.HasMember(room.HostID) {
			r.terminate(ctx, room.CallID, EndReasonHostLeft)
			continue
		}

		// Full rooms stay alive; they just do not get listed until a seat opens.
		if room.MaxParticipants > 0 && len(state.Members) >= room.MaxParticipants {
			continue
		}

		if now.Sub(state.UpdatedAt) > r.inactivity {
			r.terminate(ctx, room.CallID, EndReasonInactive)
			continue
		}

		out = append(out, ActiveRoom{
			CallID:      room.CallID,
			Name:        room.Name,
			Kind:        room.Kind,
			HostID:      room.HostID,
			MemberCount: len(state.Members),
			Members:     state.MemberImages(),
		})
	}
	return out, nil
}

func (r *Reconciler) terminate(ctx context.Context, callID string, reason EndReason) {
	applied, err := r.svc.EndRoom(ctx, callID, reason)
	if err != nil {
		logger.From(ctx).Error("reconciler termination failed", "call_id", callID, "reason", reason, "err", err)
		return
	}
	if !applied || reason == EndReasonProviderEnded {
		return
	}
	// The call is still live on the provider; end it there so lingering
	// members get dropped instead of talking into a dead room.
	if err := r.provider.EndCall(ctx, callID); err != nil && !errors.Is(err, provider.ErrCallNotFound) {
		logger.From(ctx).Warn("provider call end failed", "call_id", callID, "err", err)
	}
}

package webhook

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rooms-platform/internal/provider"
	"rooms-platform/internal/room"
	"rooms-platform/internal/study"
	"rooms-platform/pkg/logger"
)

// Ingestor applies provider lifecycle events to the room store.
//
// Events arrive at-least-once, possibly duplicated and out of order, so every
// transition here is idempotent. The provider is the source of truth for
// presence; this service is the source of truth for "is this room terminated"
// once a termination is recorded. Side effects never block on provider
// confirmation.
type Ingestor struct {
	rooms     room.Repository
	lifecycle *room.Service
	tracker   *study.Service
	provider  provider.CallProvider
	clock     func() time.Time
}

func NewIngestor(rooms room.Repository, lifecycle *room.Service, tracker *study.Service, p provider.CallProvider) *Ingestor {
	return &Ingestor{
		rooms:     rooms,
		lifecycle: lifecycle,
		tracker:   tracker,
		provider:  p,
		clock:     time.Now,
	}
}

// WithClock overrides the ingestor clock. Test use only.
func (in *Ingestor) WithClock(clock func() time.Time) *Ingestor {
	in.clock = clock
	return in
}

// Handle dispatches one event envelope.
//
// Unknown types and events without a call id are dropped with a log line:
// surfacing them as errors would only trigger provider re-delivery storms.
// A store failure on the primary transition is returned so the endpoint can
// answer 500 for that single delivery.
func (in *Ingestor) Handle(ctx context.Context, ev Event) error {
	log := logger.From(ctx).With("event_type", ev.Type)

	callID := ev.CallID()
	if callID == "" {
		log.Warn("webhook event missing call id, dropped")
		return nil
	}
	log = log.With("call_id", callID)

	switch ev.Type {
	case "session_started", "call.session_started":
		return in.rooms.UpsertCallSession(ctx, callID, in.clock().UTC())

	case "participant_joined", "call.session_participant_joined":
		userID := ev.UserID()
		if userID == "" {
			log.Warn("join event missing user id, dropped")
			return nil
		}
		// Open the study clock first; a failed tracker start must not lose
		// the presence record.
		if _, err := in.tracker.Start(ctx, userID, callID); err != nil {
			log.Warn("study session start failed", "user_id", userID, "err", err)
		}
		return in.rooms.UpsertParticipant(ctx, callID, userID, in.clock().UTC())

	case "participant_left", "call.session_participant_left":
		return in.handleParticipantLeft(ctx, callID, ev.UserID(), log)

	case "session_ended", "call.session_ended", "call_ended", "call.ended":
		return in.handleCallEnded(ctx, callID, log)

	default:
		log.Debug("unknown webhook type ignored")
		return nil
	}
}

func (in *Ingestor) handleParticipantLeft(ctx context.Context, callID, userID string, log *slog.Logger) error {
	now := in.clock().UTC()

	if userID != "" {
		p, ok, err := in.rooms.MarkParticipantLeft(ctx, callID, userID, now)
		if err != nil {
			return err
		}
		if ok {
			// Local fallback measured from the latest join of this cycle.
			elapsed := int(now.Sub(p.JoinedAt).Seconds())
			if _, err := in.tracker.EndWithFallback(ctx, userID, callID, elapsed); err != nil {
				if !errors.Is(err, study.ErrNoOpenSession) {
					log.Warn("study session end failed", "user_id", userID, "err", err)
				}
			}
		} else {
			// Leave delivered before the join was persisted; tolerated, the
			// emptiness check below still runs.
			log.Debug("no active participant row for leave event", "user_id", userID)
		}
	}

	in.roomEmptinessCheck(ctx, callID, userID, log)
	return nil
}

// roomEmptinessCheck decides whether a departure killed the room.
//
// Active -> Ended fires when the post-departure membership is empty; the
// host-left case is the same trigger with the departing host excluded from the
// remaining set. A host who merely rejoins within the window keeps the room
// alive since membership never reaches zero.
func (in *Ingestor) roomEmptinessCheck(ctx context.Context, callID, leftUserID string, log *slog.Logger) {
	r, ok, err := in.rooms.FindRoomByCallID(ctx, callID)
	if err != nil {
		log.Warn("room lookup failed during emptiness check", "err", err)
		return
	}
	if !ok || r.Ended {
		return
	}

	state, err := in.provider.GetCall(ctx, callID)
	if err != nil {
		if errors.Is(err, provider.ErrCallNotFound) {
			in.terminate(ctx, callID, room.EndReasonProviderEnded, log)
			return
		}
		// Provider unreachable: leave the decision to the next
		// reconciliation pass.
		log.Warn("provider lookup failed during emptiness check", "err", err)
		return
	}
	if state.Ended() {
		in.terminate(ctx, callID, room.EndReasonProviderEnded, log)
		return
	}

	remaining := 0
	for _, m := range state.Members {
		if m.UserID == leftUserID {
			// The provider can still list the leaver for a beat.
			continue
		}
		remaining++
	}
	if remaining > 0 {
		return
	}

	reason := room.EndReasonEmpty
	if leftUserID != "" && leftUserID == r.HostID {
		reason = room.EndReasonHostLeft
	}
	in.terminate(ctx, callID, reason, log)
}

func (in *Ingestor) handleCallEnded(ctx context.Context, callID string, log *slog.Logger) error {
	if _, err := in.lifecycle.EndRoom(ctx, callID, room.EndReasonProviderEnded); err != nil {
		return err
	}
	if err := in.rooms.EndCallSession(ctx, callID, in.clock().UTC()); err != nil {
		return err
	}
	if err := in.tracker.EndAllForCall(ctx, callID); err != nil {
		log.Warn("closing study sessions failed", "err", err)
	}
	return nil
}

func (in *Ingestor) terminate(ctx context.Context, callID string, reason room.EndReason, log *slog.Logger) {
	if _, err := in.lifecycle.EndRoom(ctx, callID, reason); err != nil {
		log.Error("room termination failed", "reason", reason, "err", err)
	}
}

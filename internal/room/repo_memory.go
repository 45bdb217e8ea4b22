package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository useful for tests and early development.
//
// NOTE: This is not intended for production; replace with Postgres implementation.
type MemoryRepo struct {
	mu           sync.Mutex
	sessions     map[string]CallSession
	rooms        []Room
	participants []CallParticipant
	bans         []RoomBan
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{sessions: map[string]CallSession{}}
}

func (r *MemoryRepo) UpsertCallSession(ctx context.Context, callID string, startedAt time.Time) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[callID]; ok {
		s.SessionStartedAt = startedAt
		s.IsActive = s.SessionEndedAt == nil
		r.sessions[callID] = s
		return nil
	}
	r.sessions[callID] = CallSession{CallID: callID, SessionStartedAt: startedAt, IsActive: true}
	return nil
}

func (r *MemoryRepo) FindCallSession(ctx context.Context, callID string) (CallSession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	return s, ok, nil
}

func (r *MemoryRepo) EndCallSession(ctx context.Context, callID string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.participants {
		p := &r.participants[i]
		if p.CallID == callID && p.IsActive {
			t := endedAt
			p.LeftAt = &t
			p.IsActive = false
		}
	}
	s, ok := r.sessions[callID]
	if !ok || !s.IsActive {
		return nil
	}
	t := endedAt
	s.SessionEndedAt = &t
	s.IsActive = false
	r.sessions[callID] = s
	return nil
}

func (r *MemoryRepo) CreateRoom(ctx context.Context, room Room) error {
	if room.CallID == "" || room.HostID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rooms {
		if existing.CallID == room.CallID && existing.Kind == room.Kind {
			return ErrAlreadyExists
		}
	}
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	r.rooms = append(r.rooms, room)
	return nil
}

func (r *MemoryRepo) FindRoomByCallID(ctx context.Context, callID string) (Room, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, room := range r.rooms {
		if room.CallID == callID {
			return room, true, nil
		}
	}
	return Room{}, false, nil
}

func (r *MemoryRepo) FindActiveRooms(ctx context.Context) ([]Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Room
	for _, room := range r.rooms {
		if !room.Ended {
			out = append(out, room)
		}
	}
	return out, nil
}

func (r *MemoryRepo) EndRoom(ctx context.Context, callID string, reason EndReason, endedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	applied := false
	for i := range r.rooms {
		if r.rooms[i].CallID != callID || r.rooms[i].Ended {
			continue
		}
		t := endedAt
		r.rooms[i].Ended = true
		r.rooms[i].EndedReason = reason
		r.rooms[i].EndedAt = &t
		applied = true
	}
	return applied, nil
}

func (r *MemoryRepo) UpsertParticipant(ctx context.Context, callID, userID string, joinedAt time.Time) error {
	if callID == "" || userID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.participants {
		p := &r.participants[i]
		if p.CallID == callID && p.UserID == userID && p.IsActive {
			p.JoinedAt = joinedAt
			p.LeftAt = nil
			return nil
		}
	}
	r.participants = append(r.participants, CallParticipant{
		ID:       uuid.NewString(),
		CallID:   callID,
		UserID:   userID,
		JoinedAt: joinedAt,
		IsActive: true,
	})
	return nil
}

func (r *MemoryRepo) MarkParticipantLeft(ctx context.Context, callID, userID string, leftAt time.Time) (CallParticipant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	best := -1
	for i := range r.participants {
		p := r.participants[i]
		if p.CallID != callID || p.UserID != userID || !p.IsActive {
			continue
		}
		if best < 0 || p.JoinedAt.After(r.participants[best].JoinedAt) {
			best = i
		}
	}
	if best < 0 {
		return CallParticipant{}, false, nil
	}
	t := leftAt
	r.participants[best].LeftAt = &t
	r.participants[best].IsActive = false
	return r.participants[best], true, nil
}

func (r *MemoryRepo) FindActiveParticipants(ctx context.Context, callID string) ([]CallParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallParticipant
	for _, p := range r.participants {
		if p.CallID == callID && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryRepo) CreateBan(ctx context.Context, b RoomBan) (bool, error) {
	if b.CallID == "" || b.UserID == "" {
		return false, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.bans {
		if existing.CallID == b.CallID && existing.UserID == b.UserID {
			return false, nil
		}
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	r.bans = append(r.bans, b)
	return true, nil
}

func (r *MemoryRepo) FindBan(ctx context.Context, callID, userID string) (RoomBan, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bans {
		if b.CallID == callID && b.UserID == userID {
			return b, true, nil
		}
	}
	return RoomBan{}, false, nil
}

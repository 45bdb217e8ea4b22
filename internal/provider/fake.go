package provider

import (
	"context"
	"sync"
)

// Fake is an in-memory CallProvider useful for tests.
// It is not intended for production use.
type Fake struct {
	mu    sync.Mutex
	calls map[string]CallState

	// Errs, when set, are returned by the corresponding method.
	GetCallErr       error
	QueryCallsErr    error
	RemoveMembersErr error
	BlockUserErr     error
	UpdateCustomErr  error
	EndCallErr       error

	// RemoveSticky keeps removed members in the member list, simulating
	// provider-side removal lag.
	RemoveSticky bool

	Removed []string // "callID/userID"
	Blocked []string // "callID/userID"
	Customs []map[string]any
	Ended   []string
}

func NewFake() *Fake {
	return &Fake{calls: map[string]CallState{}}
}

// SetCall installs or replaces a call snapshot.
func (f *Fake) SetCall(s CallState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[s.CallID] = s
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) HealthCheck(ctx context.Context) error { return nil }

func (f *Fake) GetCall(ctx context.Context, callID string) (CallState, error) {
	if f.GetCallErr != nil {
		return CallState{}, f.GetCallErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.calls[callID]
	if !ok {
		return CallState{}, ErrCallNotFound
	}
	return s, nil
}

func (f *Fake) QueryCalls(ctx context.Context, callIDs []string) ([]CallState, error) {
	if f.QueryCallsErr != nil {
		return nil, f.QueryCallsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CallState, 0, len(callIDs))
	for _, id := range callIDs {
		if s, ok := f.calls[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *Fake) RemoveMembers(ctx context.Context, callID string, userIDs []string) error {
	if f.RemoveMembersErr != nil {
		return f.RemoveMembersErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, uid := range userIDs {
		f.Removed = append(f.Removed, callID+"/"+uid)
	}
	if f.RemoveSticky {
		return nil
	}
	s, ok := f.calls[callID]
	if !ok {
		return nil
	}
	kept := s.Members[:0]
	for _, m := range s.Members {
		drop := false
		for _, uid := range userIDs {
			if m.UserID == uid {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, m)
		}
	}
	s.Members = kept
	f.calls[callID] = s
	return nil
}

func (f *Fake) BlockUser(ctx context.Context, callID, userID string) error {
	if f.BlockUserErr != nil {
		return f.BlockUserErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Blocked = append(f.Blocked, callID+"/"+userID)
	return nil
}

func (f *Fake) UpdateCallCustom(ctx context.Context, callID string, custom map[string]any) error {
	if f.UpdateCustomErr != nil {
		return f.UpdateCustomErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Customs = append(f.Customs, custom)
	return nil
}

func (f *Fake) EndCall(ctx context.Context, callID string) error {
	if f.EndCallErr != nil {
		return f.EndCallErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ended = append(f.Ended, callID)
	return nil
}

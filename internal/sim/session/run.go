package session

import (
	"context"
	"errors"
	"time"

	"waterchores.dev/internal/persistence/snapshot"
)

var ErrStopped = errors.New("session stopped")

type importReq struct {
	snap snapshot.SnapshotV1
	resp chan error
}

// Run steps the session at the tuning tick rate until ctx is done or Stop is
// called. Inputs submitted between two ticks are merged into one frame.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var pending Input
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case in := <-s.inbox:
			pending.Merge(in)
		case resp := <-s.resets:
			pending = Input{}
			id := s.Reset()
			s.publishReset()
			resp <- id
		case resp := <-s.statusCh:
			resp <- s.Status()
		case req := <-s.imports:
			req.resp <- s.ImportSnapshot(req.snap)
		case <-ticker.C:
			s.Step(pending)
			pending = Input{}
		}
	}
}

func (s *Session) Stop() { close(s.stop) }

func (s *Session) publishReset() {
	ev := Event{Type: EventReset, SessionID: s.id}
	if s.cfg.TickLogger != nil {
		if err := s.cfg.TickLogger.WriteTick(TickLogEntry{SessionID: s.id, Events: []Event{ev}}); err != nil {
			s.log.Printf("tick log: %v", err)
		}
	}
	if s.cfg.Publish != nil {
		s.cfg.Publish(StepResult{SessionID: s.id, Events: []Event{ev}, Summary: s.ledger.Summary()})
	}
}

// Submit queues input for the next tick. It reports false when the inbox is
// full and the input was dropped.
func (s *Session) Submit(in Input) bool {
	select {
	case s.inbox <- in:
		return true
	default:
		return false
	}
}

// RequestReset resets the running session and returns the new session ID.
func (s *Session) RequestReset(ctx context.Context) (string, error) {
	resp := make(chan string, 1)
	select {
	case s.resets <- resp:
	case <-s.stop:
		return "", ErrStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case id := <-resp:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Session) RequestStatus(ctx context.Context) (Status, error) {
	resp := make(chan Status, 1)
	select {
	case s.statusCh <- resp:
	case <-s.stop:
		return Status{}, ErrStopped
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case st := <-resp:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (s *Session) RequestImport(ctx context.Context, snap snapshot.SnapshotV1) error {
	req := importReq{snap: snap, resp: make(chan error, 1)}
	select {
	case s.imports <- req:
	case <-s.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"waterchores.dev/internal/protocol"
	"waterchores.dev/internal/sim/session"
)

type client struct {
	name    string
	out     chan []byte
	effects bool
	visuals bool
}

// Hub fans session output out to connected clients. Slow clients only ever
// see the most recent frames.
type Hub struct {
	log *log.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{log: logger, clients: map[*client]struct{}{}}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish pushes the STATE for one step, plus ENDED or RESET when the step
// carries one. It runs on the session goroutine and never blocks.
func (h *Hub) Publish(res session.StepResult, vessels []session.VesselStatus) {
	if h.Clients() == 0 {
		return
	}
	h.broadcast(StateMsg(res, vessels), nil)
	for _, e := range res.Events {
		switch e.Type {
		case session.EventEnded:
			sum := res.Summary
			if e.Summary != nil {
				sum = *e.Summary
			}
			h.broadcast(protocol.EndedMsg{
				Type:            protocol.TypeEnded,
				ProtocolVersion: protocol.Version,
				SessionID:       res.SessionID,
				Tick:            res.Tick,
				Summary:         SummaryObs(sum),
			}, nil)
		case session.EventReset:
			h.broadcast(protocol.ResetMsg{
				Type:            protocol.TypeReset,
				ProtocolVersion: protocol.Version,
				SessionID:       e.SessionID,
			}, nil)
		}
	}
}

func (h *Hub) SetVesselState(vesselID string, state string) {
	h.broadcast(protocol.VisualMsg{
		Type:            protocol.TypeVisual,
		ProtocolVersion: protocol.Version,
		Target:          vesselID,
		TargetKind:      protocol.VisualVessel,
		State:           state,
	}, func(c *client) bool { return c.visuals })
}

func (h *Hub) SetSiteState(siteID string, state string) {
	h.broadcast(protocol.VisualMsg{
		Type:            protocol.TypeVisual,
		ProtocolVersion: protocol.Version,
		Target:          siteID,
		TargetKind:      protocol.VisualSite,
		State:           state,
	}, func(c *client) bool { return c.visuals })
}

func (h *Hub) StartEffect(id string, duration time.Duration) {
	ms := int64(-1)
	if duration >= 0 {
		ms = duration.Milliseconds()
	}
	h.broadcast(protocol.EffectMsg{
		Type:            protocol.TypeEffect,
		ProtocolVersion: protocol.Version,
		Target:          id,
		Action:          protocol.EffectStart,
		DurationMS:      ms,
	}, func(c *client) bool { return c.effects })
}

func (h *Hub) StopEffect(id string) {
	h.broadcast(protocol.EffectMsg{
		Type:            protocol.TypeEffect,
		ProtocolVersion: protocol.Version,
		Target:          id,
		Action:          protocol.EffectStop,
	}, func(c *client) bool { return c.effects })
}

func (h *Hub) broadcast(v any, want func(*client) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Printf("marshal push: %v", err)
		return
	}
	for c := range h.clients {
		if want != nil && !want(c) {
			continue
		}
		sendLatest(c.out, b)
	}
}

// sendLatest never blocks: when the queue is full the oldest frame is
// dropped to make room.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

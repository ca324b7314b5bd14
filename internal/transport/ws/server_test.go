package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"waterchores.dev/internal/protocol"
	"waterchores.dev/internal/sim/session"
	"waterchores.dev/internal/sim/tuning"
	"waterchores.dev/schemas"
)

func startServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	hub := NewHub(logger)
	tune := tuning.Defaults()
	tune.TickRateHz = 100

	var sess *session.Session
	sess, err := session.New(session.Config{
		Tuning:  tune,
		Visual:  hub,
		Effects: hub,
		Publish: func(res session.StepResult) { hub.Publish(res, sess.VesselStatuses()) },
	})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = sess.Run(ctx) }()

	v, err := schemas.Load()
	if err != nil {
		t.Fatalf("schemas: %v", err)
	}
	ts := httptest.NewServer(NewServer(sess, hub, v, logger).Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts, hub
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil reads frames until match accepts one, and returns it.
func readUntil(t *testing.T, conn *websocket.Conn, what string, match func(typ string, raw []byte) bool) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if match(base.Type, raw) {
			return raw
		}
	}
}

func TestServer_HandshakeInputAndReset(t *testing.T) {
	ts, hub := startServer(t)
	conn := dial(t, ts)

	send(t, conn, `{"type":"HELLO","protocol_version":"1.0","client_name":"headset","capabilities":{"visuals":true}}`)
	var welcome protocol.WelcomeMsg
	raw := readUntil(t, conn, "WELCOME", func(typ string, _ []byte) bool { return typ == protocol.TypeWelcome })
	if err := json.Unmarshal(raw, &welcome); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if welcome.SessionID == "" || welcome.TickRateHz != 100 || welcome.MaxTasks != 5 {
		t.Fatalf("welcome: %+v", welcome)
	}
	if len(welcome.Vessels) != 2 || len(welcome.Sites) != 5 || len(welcome.Transfers) != 1 {
		t.Fatalf("scene: %+v", welcome)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	send(t, conn, `{"type":"INPUT","protocol_version":"1.0","seq":1,"buttons":["trigger"],"overlaps":[{"kind":"ENTER","volume":"tap","vessel":"bucket"}]}`)
	sawVisual := false
	readUntil(t, conn, "filled STATE", func(typ string, raw []byte) bool {
		if typ == protocol.TypeVisual {
			sawVisual = true
			return false
		}
		if typ != protocol.TypeState {
			return false
		}
		var st protocol.StateMsg
		if err := json.Unmarshal(raw, &st); err != nil {
			t.Fatalf("state: %v", err)
		}
		return st.Summary.History.DrawCount == 1 && len(st.Vessels) > 0 && st.Vessels[0].Amount == 80
	})
	if !sawVisual {
		t.Fatalf("expected a VISUAL push before the filled state")
	}

	send(t, conn, `{"type":"INPUT","protocol_version":"1.0","overlaps":[{"kind":"HOVER","volume":"tap","vessel":"bucket"}]}`)
	raw = readUntil(t, conn, "ERROR", func(typ string, _ []byte) bool { return typ == protocol.TypeError })
	var em protocol.ErrorMsg
	_ = json.Unmarshal(raw, &em)
	if em.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("error code: %+v", em)
	}

	send(t, conn, `{"type":"PING","protocol_version":"1.0"}`)
	raw = readUntil(t, conn, "ERROR", func(typ string, _ []byte) bool { return typ == protocol.TypeError })
	_ = json.Unmarshal(raw, &em)
	if em.Code != protocol.ErrProtoUnknownType {
		t.Fatalf("error code: %+v", em)
	}

	send(t, conn, `{"type":"RESET","protocol_version":"1.0"}`)
	raw = readUntil(t, conn, "RESET", func(typ string, _ []byte) bool { return typ == protocol.TypeReset })
	var rm protocol.ResetMsg
	_ = json.Unmarshal(raw, &rm)
	if rm.SessionID == "" || rm.SessionID == welcome.SessionID {
		t.Fatalf("reset id %q (was %q)", rm.SessionID, welcome.SessionID)
	}
}

func TestServer_RejectsBadHandshake(t *testing.T) {
	ts, _ := startServer(t)

	for _, hello := range []string{
		`{"type":"INPUT","protocol_version":"1.0"}`,
		`{"type":"HELLO","protocol_version":"0.1","client_name":"old"}`,
	} {
		conn := dial(t, ts)
		send(t, conn, hello)
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, _, err := conn.ReadMessage()
		if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			t.Fatalf("%s: expected policy close, got %v", hello, err)
		}
	}
}

func TestHub_CapabilityFilterAndDropOldest(t *testing.T) {
	hub := NewHub(log.New(io.Discard, "", 0))
	fx := &client{name: "fx", out: make(chan []byte, 2), effects: true}
	plain := &client{name: "plain", out: make(chan []byte, 2)}
	hub.add(fx)
	hub.add(plain)

	hub.SetVesselState("bucket", "full")
	hub.StartEffect("tap", -1)
	if len(plain.out) != 0 {
		t.Fatalf("plain client got %d pushes", len(plain.out))
	}
	var em protocol.EffectMsg
	if err := json.Unmarshal(<-fx.out, &em); err != nil {
		t.Fatalf("effect: %v", err)
	}
	if em.Target != "tap" || em.Action != protocol.EffectStart || em.DurationMS != -1 {
		t.Fatalf("effect: %+v", em)
	}

	hub.StartEffect("a", time.Second)
	hub.StartEffect("b", time.Second)
	hub.StopEffect("c")
	_ = json.Unmarshal(<-fx.out, &em)
	if em.Target != "b" {
		t.Fatalf("oldest frame not dropped: %+v", em)
	}
	_ = json.Unmarshal(<-fx.out, &em)
	if em.Target != "c" || em.Action != protocol.EffectStop {
		t.Fatalf("latest frame: %+v", em)
	}

	hub.remove(plain)
	hub.remove(fx)
	if hub.Clients() != 0 {
		t.Fatalf("clients left: %d", hub.Clients())
	}
}

func TestInputFromMsg(t *testing.T) {
	in, err := InputFromMsg(protocol.InputMsg{
		Poses:    map[string]protocol.Pose{"cup": {Pitch: 91, Roll: 2, Yaw: 40}},
		Buttons:  []string{"trigger"},
		Overlaps: []protocol.OverlapMsg{{Kind: "STAY", Volume: "well", Vessel: "cup"}},
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if in.Poses["cup"].Pitch != 91 || in.Overlaps[0].Kind != session.OverlapStay || len(in.Buttons) != 1 {
		t.Fatalf("input: %+v", in)
	}

	if _, err := InputFromMsg(protocol.InputMsg{Overlaps: []protocol.OverlapMsg{{Kind: "HOVER", Volume: "well", Vessel: "cup"}}}); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if _, err := InputFromMsg(protocol.InputMsg{Overlaps: []protocol.OverlapMsg{{Kind: "ENTER", Volume: "well"}}}); err == nil {
		t.Fatalf("expected missing vessel error")
	}
}

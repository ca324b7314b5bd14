package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"waterchores.dev/internal/protocol"
	"waterchores.dev/internal/sim/session"
	"waterchores.dev/schemas"
)

// Controller is the part of a running session the transport drives.
type Controller interface {
	Submit(in session.Input) bool
	RequestReset(ctx context.Context) (string, error)
	RequestStatus(ctx context.Context) (session.Status, error)
}

type Server struct {
	sess      Controller
	hub       *Hub
	validator *schemas.Validator
	log       *log.Logger

	upgrader websocket.Upgrader
}

// NewServer serves the VR client protocol. validator may be nil, in which
// case frames are only checked by decoding.
func NewServer(sess Controller, hub *Hub, validator *schemas.Validator, logger *log.Logger) *Server {
	return &Server{
		sess:      sess,
		hub:       hub,
		validator: validator,
		log:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := s.handshake(r.Context(), conn)
		if c == nil {
			return
		}
		s.hub.add(c)
		defer s.hub.remove(c)
		s.log.Printf("client connected name=%s", c.name)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.handle(ctx, c, msg)
		}
		s.log.Printf("client disconnected name=%s", c.name)
	}
}

func (s *Server) handle(ctx context.Context, c *client, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.reply(c, protocol.Error(protocol.ErrProtoBadRequest, "malformed json"))
		return
	}
	if !protocol.SupportedVersion(base.ProtocolVersion) {
		s.reply(c, protocol.Error(protocol.ErrProtoVersion, "unsupported protocol_version "+base.ProtocolVersion))
		return
	}
	if err := s.validate(base.Type, msg); err != nil {
		s.reply(c, protocol.Error(protocol.ErrProtoBadRequest, err.Error()))
		return
	}

	switch base.Type {
	case protocol.TypeInput:
		var m protocol.InputMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			s.reply(c, protocol.Error(protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		in, err := InputFromMsg(m)
		if err != nil {
			s.reply(c, protocol.Error(protocol.ErrBadRequest, err.Error()))
			return
		}
		if !s.sess.Submit(in) {
			s.reply(c, protocol.Error(protocol.ErrSessionBusy, "input queue full"))
		}
	case protocol.TypeReset:
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := s.sess.RequestReset(rctx); err != nil {
			s.reply(c, sessionError(err))
		}
		// The RESET answer reaches every client through the hub.
	default:
		s.reply(c, protocol.Error(protocol.ErrProtoUnknownType, "unknown type "+base.Type))
	}
}

func (s *Server) validate(typ string, msg []byte) error {
	if s.validator == nil {
		return nil
	}
	return s.validator.Validate(typ, msg)
}

func (s *Server) reply(c *client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	sendLatest(c.out, b)
}

func sessionError(err error) protocol.ErrorMsg {
	if errors.Is(err, session.ErrStopped) {
		return protocol.Error(protocol.ErrSessionStopped, err.Error())
	}
	return protocol.Error(protocol.ErrInternal, err.Error())
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) *client {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return nil
	}
	if !protocol.SupportedVersion(base.ProtocolVersion) {
		closePolicy(conn, "bad protocol_version")
		return nil
	}
	if err := s.validate(protocol.TypeHello, msg); err != nil {
		closePolicy(conn, "bad HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	st, err := s.sess.RequestStatus(sctx)
	if err != nil {
		_ = writeJSON(conn, sessionError(err))
		return nil
	}
	if err := writeJSON(conn, WelcomeMsg(st)); err != nil {
		return nil
	}

	return &client{
		name:    hello.ClientName,
		out:     make(chan []byte, 32),
		effects: hello.Capabilities.Effects,
		visuals: hello.Capabilities.Visuals,
	}
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

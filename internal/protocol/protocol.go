// Package protocol defines the JSON messages exchanged with the VR client:
// the client streams INPUT frames, the server pushes STATE, EFFECT and ENDED.
package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeInput   = "INPUT"
	TypeState   = "STATE"
	TypeEffect  = "EFFECT"
	TypeVisual  = "VISUAL"
	TypeEnded   = "ENDED"
	TypeReset   = "RESET"
	TypeError   = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// SupportedVersion reports whether a client-announced version can be served.
// An empty version is taken as the current one.
func SupportedVersion(v string) bool { return v == "" || v == Version }

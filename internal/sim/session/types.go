package session

import (
	"time"

	"waterchores.dev/internal/sim/diag"
	"waterchores.dev/internal/sim/ledger"
	"waterchores.dev/internal/sim/transfer"
	"waterchores.dev/internal/sim/vessel"
)

type OverlapKind string

const (
	OverlapEnter OverlapKind = "ENTER"
	OverlapStay  OverlapKind = "STAY"
	OverlapExit  OverlapKind = "EXIT"
)

// Overlap reports a vessel entering, staying in or leaving a volume. Volume
// is a site ID or a transfer ID.
type Overlap struct {
	Kind   OverlapKind `json:"kind"`
	Volume string      `json:"volume"`
	Vessel string      `json:"vessel"`
}

// Input is everything the rig reported for one tick.
type Input struct {
	Poses    map[string]vessel.Pose `json:"poses,omitempty"`
	Buttons  []string               `json:"buttons,omitempty"`
	Overlaps []Overlap              `json:"overlaps,omitempty"`
}

// Merge folds a later input into in: poses are replaced, buttons and
// overlaps accumulate in arrival order.
func (in *Input) Merge(next Input) {
	if len(next.Poses) > 0 && in.Poses == nil {
		in.Poses = make(map[string]vessel.Pose, len(next.Poses))
	}
	for id, p := range next.Poses {
		in.Poses[id] = p
	}
	in.Buttons = append(in.Buttons, next.Buttons...)
	in.Overlaps = append(in.Overlaps, next.Overlaps...)
}

func (in Input) Empty() bool {
	return len(in.Poses) == 0 && len(in.Buttons) == 0 && len(in.Overlaps) == 0
}

type EventType string

const (
	EventTask       EventType = "TASK"
	EventTransfer   EventType = "TRANSFER"
	EventSpill      EventType = "SPILL"
	EventPour       EventType = "POUR"
	EventEnded      EventType = "ENDED"
	EventReset      EventType = "RESET"
	EventDiagnostic EventType = "DIAGNOSTIC"
)

type Spill struct {
	Vessel  string  `json:"vessel"`
	Amount  float64 `json:"amount"`
	Quality float64 `json:"quality"`
	// Disposed is set when the spill was booked as waste.
	Disposed bool `json:"disposed,omitempty"`
}

type Pour struct {
	Vessel     string  `json:"vessel"`
	Amount     float64 `json:"amount"`
	Quality    float64 `json:"quality"`
	ExecutedBy string  `json:"executed_by,omitempty"`
}

type Event struct {
	Tick uint64    `json:"tick"`
	Type EventType `json:"type"`

	Entry      *ledger.Entry    `json:"entry,omitempty"`
	Transfer   *transfer.Result `json:"transfer,omitempty"`
	Pour       *Pour            `json:"pour,omitempty"`
	Spill      *Spill           `json:"spill,omitempty"`
	Summary    *ledger.Summary  `json:"summary,omitempty"`
	Diagnostic *diag.Entry      `json:"diagnostic,omitempty"`
	SessionID  string           `json:"session_id,omitempty"`
}

// StepResult is what one tick produced.
type StepResult struct {
	SessionID string         `json:"session_id"`
	Tick      uint64         `json:"tick"`
	Elapsed   time.Duration  `json:"elapsed"`
	Events    []Event        `json:"events,omitempty"`
	Summary   ledger.Summary `json:"summary"`
}

// Ended reports whether this tick moved the session to Ended.
func (r StepResult) Ended() bool {
	for _, e := range r.Events {
		if e.Type == EventEnded {
			return true
		}
	}
	return false
}

// TickLogEntry is the record written per tick; replaying the inputs in order
// rebuilds the ledger.
type TickLogEntry struct {
	SessionID string  `json:"session_id"`
	Tick      uint64  `json:"tick"`
	Input     Input   `json:"input"`
	Events    []Event `json:"events,omitempty"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type VesselStatus struct {
	ID       string      `json:"id"`
	Kind     vessel.Kind `json:"kind"`
	Capacity float64     `json:"capacity"`
	Amount   float64     `json:"amount"`
	Quality  float64     `json:"quality"`
}

type SiteStatus struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	State     string  `json:"state"`
	Completed bool    `json:"completed"`
	Target    string  `json:"target,omitempty"`
	Dirt      float64 `json:"dirt,omitempty"`
	Flowing   bool    `json:"flowing,omitempty"`
}

// Status is a read-only view of the session.
type Status struct {
	SessionID            string         `json:"session_id"`
	Tick                 uint64         `json:"tick"`
	TickRateHz           int            `json:"tick_rate_hz"`
	SafeQualityThreshold float64        `json:"safe_quality_threshold"`
	Summary              ledger.Summary `json:"summary"`
	Vessels              []VesselStatus `json:"vessels"`
	Sites                []SiteStatus   `json:"sites"`
	Transfers            []string       `json:"transfers,omitempty"`
	Diagnostics          []diag.Entry   `json:"diagnostics,omitempty"`
}

package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	// Effects and Visuals ask for EFFECT / VISUAL pushes; a headless client
	// only needs STATE.
	Effects bool `json:"effects,omitempty"`
	Visuals bool `json:"visuals,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type                 string      `json:"type"`
	ProtocolVersion      string      `json:"protocol_version"`
	SessionID            string      `json:"session_id"`
	TickRateHz           int         `json:"tick_rate_hz"`
	MaxTasks             int         `json:"max_tasks"`
	SafeQualityThreshold float64     `json:"safe_quality_threshold"`
	Vessels              []VesselRef `json:"vessels"`
	Sites                []SiteRef   `json:"sites"`
	Transfers            []string    `json:"transfers,omitempty"`
}

type VesselRef struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	Capacity float64 `json:"capacity"`
}

type SiteRef struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// INPUT (client -> server): one rig sample. Frames arriving between two
// ticks are merged in arrival order.
type InputMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Seq             uint64          `json:"seq,omitempty"`
	Poses           map[string]Pose `json:"poses,omitempty"`
	Buttons         []string        `json:"buttons,omitempty"`
	Overlaps        []OverlapMsg    `json:"overlaps,omitempty"`
}

// Pose is a vessel orientation in euler degrees.
type Pose struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw,omitempty"`
}

type OverlapMsg struct {
	Kind   string `json:"kind"` // ENTER | STAY | EXIT
	Volume string `json:"volume"`
	Vessel string `json:"vessel"`
}

// STATE (server -> client), one per tick.
type StateMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	Tick            uint64      `json:"tick"`
	ElapsedMS       int64       `json:"elapsed_ms"`
	Summary         SummaryObs  `json:"summary"`
	Events          []EventObs  `json:"events,omitempty"`
	Vessels         []VesselObs `json:"vessels,omitempty"`
}

// SummaryObs is the HUD readout: task progress, gauges and scores.
type SummaryObs struct {
	State        string     `json:"state"`
	Tasks        int        `json:"tasks"`
	MaxTasks     int        `json:"max_tasks"`
	WaterVolume  float64    `json:"water_volume"`
	WaterQuality float64    `json:"water_quality"`
	Stamina      float64    `json:"stamina"`
	Hygiene      float64    `json:"hygiene"`
	Efficiency   float64    `json:"efficiency"`
	History      HistoryObs `json:"history"`
}

type HistoryObs struct {
	WaterDrawn           float64 `json:"water_drawn"`
	WaterUsedForFarming  float64 `json:"water_used_for_farming"`
	WaterUsedForDrinking float64 `json:"water_used_for_drinking"`
	WaterUsedForWashing  float64 `json:"water_used_for_washing"`
	WaterWasted          float64 `json:"water_wasted"`
	WaterPolluted        float64 `json:"water_polluted"`
	UnsafeDrinking       float64 `json:"unsafe_drinking"`
	StaminaSpent         float64 `json:"stamina_spent"`
	StaminaRecovered     float64 `json:"stamina_recovered"`
	DrawCount            int     `json:"draw_count"`
	FarmCount            int     `json:"farm_count"`
	DrinkCount           int     `json:"drink_count"`
	WashCount            int     `json:"wash_count"`
	WasteCount           int     `json:"waste_count"`
}

type VesselObs struct {
	ID      string  `json:"id"`
	Amount  float64 `json:"amount"`
	Quality float64 `json:"quality"`
}

// EventObs flattens a session event for the wire. Fields not relevant to the
// event type are omitted.
type EventObs struct {
	Tick    uint64  `json:"tick"`
	Type    string  `json:"type"`
	Kind    string  `json:"kind,omitempty"`
	Site    string  `json:"site,omitempty"`
	Vessel  string  `json:"vessel,omitempty"`
	From    string  `json:"from,omitempty"`
	To      string  `json:"to,omitempty"`
	Amount  float64 `json:"amount,omitempty"`
	Quality float64 `json:"quality,omitempty"`
	Message string  `json:"message,omitempty"`
}

// EFFECT (server -> client): start or stop a water effect.
type EffectMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Target          string `json:"target"`
	Action          string `json:"action"` // START | STOP
	// DurationMS is -1 for an effect that runs until stopped.
	DurationMS int64 `json:"duration_ms,omitempty"`
}

const (
	EffectStart = "START"
	EffectStop  = "STOP"
)

// VISUAL (server -> client): vessel fill or site before/after state.
type VisualMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Target          string `json:"target"`
	TargetKind      string `json:"target_kind"` // VESSEL | SITE
	State           string `json:"state"`
}

const (
	VisualVessel = "VESSEL"
	VisualSite   = "SITE"
)

// ENDED (server -> client), sent once when the task limit is reached.
type EndedMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	Tick            uint64     `json:"tick"`
	Summary         SummaryObs `json:"summary"`
}

// RESET (both directions). The client sends it to start over; the server
// answers with the new session id.
type ResetMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

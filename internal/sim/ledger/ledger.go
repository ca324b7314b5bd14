package ledger

import "math"

type State string

const (
	StateActive State = "ACTIVE"
	StateEnded  State = "ENDED"
)

const (
	DefaultMaxTasks             = 5
	DefaultSafeQualityThreshold = 80.0
	gaugeMax                    = 100.0
)

type Config struct {
	MaxTasks int
}

// History is the cumulative action record of one session.
type History struct {
	WaterDrawn           float64 `json:"water_drawn"`
	WaterUsedForFarming  float64 `json:"water_used_for_farming"`
	WaterUsedForDrinking float64 `json:"water_used_for_drinking"`
	WaterUsedForWashing  float64 `json:"water_used_for_washing"`
	WaterWasted          float64 `json:"water_wasted"`
	WaterPolluted        float64 `json:"water_polluted"`
	UnsafeDrinking       float64 `json:"unsafe_drinking"`

	StaminaSpent     float64 `json:"stamina_spent"`
	StaminaRecovered float64 `json:"stamina_recovered"`

	DrawCount  int `json:"draw_count"`
	FarmCount  int `json:"farm_count"`
	DrinkCount int `json:"drink_count"`
	WashCount  int `json:"wash_count"`
	WasteCount int `json:"waste_count"`
}

func (h History) TotalTasksCompleted() int {
	return h.DrawCount + h.FarmCount + h.DrinkCount + h.WashCount + h.WasteCount
}

// Gauges are the session's headline meters, each kept in [0,100].
type Gauges struct {
	WaterVolume  float64 `json:"water_volume"`
	WaterQuality float64 `json:"water_quality"`
	Stamina      float64 `json:"stamina"`
}

func initialGauges() Gauges {
	return Gauges{WaterVolume: 0, WaterQuality: gaugeMax, Stamina: gaugeMax}
}

func (g *Gauges) clamp() {
	g.WaterVolume = clamp100(g.WaterVolume)
	g.WaterQuality = clamp100(g.WaterQuality)
	g.Stamina = clamp100(g.Stamina)
}

// Hygiene is 100 minus the unsafe share of water used for drinking, farming
// and disposal.
func Hygiene(h History) float64 {
	totalUsed := h.WaterUsedForDrinking + h.WaterUsedForFarming + h.WaterWasted
	if totalUsed == 0 {
		return 100
	}
	return (1 - h.UnsafeDrinking/totalUsed) * 100
}

// Efficiency is the share of drawn water that went into tasks (disposal
// excluded).
func Efficiency(h History) float64 {
	if h.WaterDrawn == 0 {
		return 0
	}
	used := h.WaterUsedForDrinking + h.WaterUsedForFarming + h.WaterUsedForWashing
	return used / h.WaterDrawn * 100
}

func clamp100(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > gaugeMax {
		return gaugeMax
	}
	return v
}

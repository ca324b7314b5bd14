package ledger

import "math"

type EntryKind string

const (
	EntryDraw  EntryKind = "DRAW"
	EntryFarm  EntryKind = "FARM"
	EntryDrink EntryKind = "DRINK"
	EntryWash  EntryKind = "WASH"
	EntryWaste EntryKind = "WASTE"
)

// Source identifies where a record came from.
type Source struct {
	Tick   uint64 `json:"tick"`
	SiteID string `json:"site_id,omitempty"`
	Vessel string `json:"vessel_id,omitempty"`
}

// Entry is one ledger mutation, emitted to the observer after it applied.
type Entry struct {
	Seq          uint64    `json:"seq"`
	Tick         uint64    `json:"tick"`
	Kind         EntryKind `json:"kind"`
	SiteID       string    `json:"site_id,omitempty"`
	VesselID     string    `json:"vessel_id,omitempty"`
	Amount       float64   `json:"amount"`
	Quality      float64   `json:"quality"`
	StaminaDelta float64   `json:"stamina_delta"`
	QualityDelta float64   `json:"quality_delta,omitempty"`
	Unsafe       bool      `json:"unsafe,omitempty"`
	TotalTasks   int       `json:"total_tasks"`
	Ended        bool      `json:"ended,omitempty"`
}

type Ledger struct {
	cfg     Config
	gauges  Gauges
	history History
	state   State

	seq      uint64
	observer func(Entry)
	onEnd    []func(Summary)
}

func New(cfg Config) *Ledger {
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = DefaultMaxTasks
	}
	return &Ledger{cfg: cfg, gauges: initialGauges(), state: StateActive}
}

func (l *Ledger) MaxTasks() int       { return l.cfg.MaxTasks }
func (l *Ledger) State() State        { return l.state }
func (l *Ledger) Ended() bool         { return l.state == StateEnded }
func (l *Ledger) History() History    { return l.history }
func (l *Ledger) Gauges() Gauges      { return l.gauges }
func (l *Ledger) Hygiene() float64    { return Hygiene(l.history) }
func (l *Ledger) Efficiency() float64 { return Efficiency(l.history) }

// SetObserver installs the per-entry callback (tick log, index).
func (l *Ledger) SetObserver(fn func(Entry)) { l.observer = fn }

// OnEnd registers a callback for the single end-of-session notification.
func (l *Ledger) OnEnd(fn func(Summary)) {
	if fn != nil {
		l.onEnd = append(l.onEnd, fn)
	}
}

// Reset starts a new session: gauges and counters return to their initial
// values and the end notification is re-armed.
func (l *Ledger) Reset() {
	l.gauges = initialGauges()
	l.history = History{}
	l.state = StateActive
	l.seq = 0
}

// Restore loads persisted state without emitting entries or notifications.
func (l *Ledger) Restore(g Gauges, h History, st State, seq uint64) {
	l.gauges = g
	l.gauges.clamp()
	l.history = h
	l.state = st
	if l.state == "" {
		l.state = StateActive
	}
	l.seq = seq
}

func (l *Ledger) Seq() uint64 { return l.seq }

func (l *Ledger) RecordDraw(src Source, amount, quality, staminaCost float64) {
	if amount < 0 {
		amount = 0
	}
	l.gauges.WaterVolume += amount
	if quality > l.gauges.WaterQuality {
		l.gauges.WaterQuality = quality
	}
	l.spend(staminaCost)
	l.history.WaterDrawn += amount
	l.history.DrawCount++
	l.commit(Entry{Kind: EntryDraw, Amount: amount, Quality: quality, StaminaDelta: -staminaCost}, src)
}

func (l *Ledger) RecordFarm(src Source, amount, qualityDecrease, staminaCost float64) {
	if amount < 0 {
		amount = 0
	}
	l.gauges.WaterVolume -= amount
	l.gauges.WaterQuality -= qualityDecrease
	l.spend(staminaCost)
	l.history.WaterUsedForFarming += amount
	l.history.WaterPolluted += amount
	l.history.FarmCount++
	l.commit(Entry{Kind: EntryFarm, Amount: amount, StaminaDelta: -staminaCost, QualityDelta: -qualityDecrease}, src)
}

// RecordDrink applies +gain for safe water and -loss otherwise; unsafe
// volume is tracked separately for the hygiene score.
func (l *Ledger) RecordDrink(src Source, amount, quality float64, safe bool, gain, loss float64) {
	if amount < 0 {
		amount = 0
	}
	gain, loss = math.Max(gain, 0), math.Max(loss, 0)
	l.gauges.WaterVolume -= amount
	delta := gain
	if safe {
		l.gauges.Stamina += gain
		l.history.StaminaRecovered += gain
	} else {
		delta = -loss
		l.spend(loss)
		l.history.UnsafeDrinking += amount
	}
	l.history.WaterUsedForDrinking += amount
	l.history.DrinkCount++
	l.commit(Entry{Kind: EntryDrink, Amount: amount, Quality: quality, StaminaDelta: delta, Unsafe: !safe}, src)
}

func (l *Ledger) RecordLaundry(src Source, amount, qualityDecrease, staminaCost float64) {
	if amount < 0 {
		amount = 0
	}
	l.gauges.WaterVolume -= amount
	l.gauges.WaterQuality -= qualityDecrease
	l.spend(staminaCost)
	l.history.WaterUsedForWashing += amount
	l.history.WaterPolluted += amount
	l.history.WashCount++
	l.commit(Entry{Kind: EntryWash, Amount: amount, StaminaDelta: -staminaCost, QualityDelta: -qualityDecrease}, src)
}

func (l *Ledger) RecordWaste(src Source, amount, quality, qualityDecrease, staminaCost float64) {
	if amount < 0 {
		amount = 0
	}
	l.gauges.WaterVolume -= amount
	l.gauges.WaterQuality -= qualityDecrease
	l.spend(staminaCost)
	l.history.WaterWasted += amount
	l.history.WaterPolluted += amount
	l.history.WasteCount++
	l.commit(Entry{Kind: EntryWaste, Amount: amount, Quality: quality, StaminaDelta: -staminaCost, QualityDelta: -qualityDecrease}, src)
}

func (l *Ledger) spend(cost float64) {
	if cost <= 0 {
		return
	}
	l.gauges.Stamina -= cost
	l.history.StaminaSpent += cost
}

func (l *Ledger) commit(e Entry, src Source) {
	l.gauges.clamp()
	l.seq++
	e.Seq = l.seq
	e.Tick = src.Tick
	e.SiteID = src.SiteID
	e.VesselID = src.Vessel
	e.TotalTasks = l.history.TotalTasksCompleted()

	crossed := l.state != StateEnded && e.TotalTasks >= l.cfg.MaxTasks
	if crossed {
		l.state = StateEnded
		e.Ended = true
	}
	if l.observer != nil {
		l.observer(e)
	}
	if crossed {
		sum := l.Summary()
		for _, fn := range l.onEnd {
			fn(sum)
		}
	}
}

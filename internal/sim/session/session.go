// Package session owns one running chores scene: its vessels, sites and
// transfers, the ledger, and the fixed order in which a tick is evaluated.
// A Session is single-threaded; Run serializes outside access over channels.
package session

import (
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"waterchores.dev/internal/persistence/snapshot"
	"waterchores.dev/internal/sim/diag"
	"waterchores.dev/internal/sim/effects"
	"waterchores.dev/internal/sim/gate"
	"waterchores.dev/internal/sim/ledger"
	"waterchores.dev/internal/sim/receiver"
	"waterchores.dev/internal/sim/sites"
	"waterchores.dev/internal/sim/tickctx"
	"waterchores.dev/internal/sim/tilt"
	"waterchores.dev/internal/sim/transfer"
	"waterchores.dev/internal/sim/tuning"
	"waterchores.dev/internal/sim/vessel"
)

type Config struct {
	// ID names the session; a random one is generated when empty.
	ID     string
	Tuning tuning.Tuning

	Visual  effects.VisualSink
	Effects effects.EffectSink
	Logger  *log.Logger

	// Optional persistence hooks (may be nil).
	TickLogger   TickLogger
	SnapshotSink chan<- snapshot.SnapshotV1
	// Publish receives every step result on the Run goroutine.
	Publish func(StepResult)
}

type vesselSlot struct {
	v        *vessel.Vessel
	reg      *receiver.Registry
	detector *tilt.Detector
}

type Session struct {
	cfg  Config
	tune tuning.Tuning
	log  *log.Logger
	id   string

	tick     uint64
	now      time.Duration
	interval time.Duration

	guard  *vessel.Guard
	ledger *ledger.Ledger
	sched  *effects.Scheduler
	diags  *diag.Log

	vessels   []*vesselSlot
	vesselIdx map[string]*vesselSlot
	sites     []sites.Site
	transfers []*transfer.Transfer
	volumes   map[string]gate.Volume
	// transferIDs names the guard owners that are vessel transfers.
	transferIDs map[string]bool

	// Events collected during the current step.
	events []Event

	inbox    chan Input
	resets   chan chan string
	statusCh chan chan Status
	imports  chan importReq
	stop     chan struct{}
}

// New builds the scene described by cfg.Tuning. Components with a
// configuration problem are left out and reported via Diagnostics; only an
// invalid session-wide setting fails New.
func New(cfg Config) (*Session, error) {
	tune := cfg.Tuning
	if tune.TickRateHz == 0 {
		tune = tuning.Defaults()
	}
	if err := tune.Validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	if cfg.Visual == nil {
		cfg.Visual = effects.Nop{}
	}
	if cfg.Effects == nil {
		cfg.Effects = effects.Nop{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}

	s := &Session{
		cfg:         cfg,
		tune:        tune,
		log:         logger,
		id:          id,
		interval:    time.Second / time.Duration(tune.TickRateHz),
		guard:       vessel.NewGuard(),
		ledger:      ledger.New(ledger.Config{MaxTasks: tune.MaxTasks}),
		sched:       effects.NewScheduler(),
		diags:       diag.NewLog(tune.DiagnosticsMax),
		vesselIdx:   map[string]*vesselSlot{},
		volumes:     map[string]gate.Volume{},
		transferIDs: map[string]bool{},
		inbox:       make(chan Input, 1024),
		resets:      make(chan chan string),
		statusCh:    make(chan chan Status),
		imports:     make(chan importReq),
		stop:        make(chan struct{}),
	}
	s.ledger.SetObserver(s.onEntry)
	s.ledger.OnEnd(s.onEnd)
	s.buildScene()
	return s, nil
}

func (s *Session) buildScene() {
	for _, spec := range s.tune.Vessels {
		kind, capacity, err := spec.Resolve()
		if err != nil {
			s.configError(err)
			continue
		}
		if _, dup := s.vesselIdx[spec.ID]; dup {
			s.configError(diag.Configf(spec.ID, "duplicate vessel id"))
			continue
		}
		v := vessel.New(spec.ID, kind, capacity)
		v.SetStateListener(s.cfg.Visual.SetVesselState)
		slot := &vesselSlot{
			v:        v,
			reg:      receiver.NewRegistry(v),
			detector: tilt.NewDetector(s.tune.Tilt.ThresholdDeg, s.tune.TiltCooldown()),
		}
		slot.reg.SetSpillHandler(s.onSpill)
		s.vessels = append(s.vessels, slot)
		s.vesselIdx[v.ID] = slot
	}

	env := sites.Env{
		Ledger:    s.ledger,
		Visual:    s.cfg.Visual,
		Effects:   s.cfg.Effects,
		Scheduler: s.sched,
		Registry:  s.registryFor,
		Logger:    s.log,
	}
	for _, spec := range s.tune.Sites {
		cfg, err := s.tune.SiteConfig(spec)
		if err != nil {
			s.configError(err)
			continue
		}
		if _, dup := s.volumes[cfg.ID]; dup {
			s.configError(diag.Configf(cfg.ID, "duplicate volume id"))
			continue
		}
		site, err := sites.New(cfg, env)
		if err != nil {
			s.configError(err)
			continue
		}
		s.sites = append(s.sites, site)
		s.volumes[site.ID()] = site.Volume()
	}

	for _, spec := range s.tune.Vessels {
		slot := s.vesselIdx[spec.ID]
		if slot == nil || spec.Transfer == nil {
			continue
		}
		id := TransferID(spec.ID)
		cfg, err := spec.Transfer.Config(id)
		if err == nil && s.volumes[id] != nil {
			err = diag.Configf(id, "duplicate volume id")
		}
		if err != nil {
			s.configError(err)
			continue
		}
		tr, err := transfer.New(cfg, slot.v, transfer.Env{
			Effects:    s.cfg.Effects,
			Scheduler:  s.sched,
			Logger:     s.log,
			OnTransfer: s.onTransfer,
		})
		if err != nil {
			s.configError(err)
			continue
		}
		s.transfers = append(s.transfers, tr)
		s.volumes[id] = tr.Gate()
		s.transferIDs[id] = true
	}
	s.log.Printf("session %s: %d vessels, %d sites, %d transfers", s.id, len(s.vessels), len(s.sites), len(s.transfers))
}

// TransferID is the overlap volume name of a vessel's transfer.
func TransferID(vesselID string) string { return vesselID + ":transfer" }

func (s *Session) configError(err error) {
	s.log.Printf("disabled component: %v", err)
	s.diags.AddError(s.tick, err)
}

func (s *Session) diagnostic(component, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.diags.Add(s.tick, component, msg)
	s.events = append(s.events, Event{Tick: s.tick, Type: EventDiagnostic, Diagnostic: &diag.Entry{Tick: s.tick, Component: component, Message: msg}})
}

func (s *Session) registryFor(v *vessel.Vessel) *receiver.Registry {
	if slot := s.vesselIdx[v.ID]; slot != nil && slot.v == v {
		return slot.reg
	}
	return nil
}

func (s *Session) ID() string                    { return s.id }
func (s *Session) Tick() uint64                  { return s.tick }
func (s *Session) Elapsed() time.Duration        { return s.now }
func (s *Session) TickRateHz() int               { return s.tune.TickRateHz }
func (s *Session) Ledger() *ledger.Ledger        { return s.ledger }
func (s *Session) Diagnostics() []diag.Entry     { return s.diags.Entries() }
func (s *Session) Summary() ledger.Summary       { return s.ledger.Summary() }
func (s *Session) Tuning() tuning.Tuning         { return s.tune }
func (s *Session) Interval() time.Duration       { return s.interval }
func (s *Session) Scheduler() *effects.Scheduler { return s.sched }

func (s *Session) Vessel(id string) *vessel.Vessel {
	if slot := s.vesselIdx[id]; slot != nil {
		return slot.v
	}
	return nil
}

func (s *Session) Site(id string) sites.Site {
	for _, site := range s.sites {
		if site.ID() == id {
			return site
		}
	}
	return nil
}

func (s *Session) Transfer(id string) *transfer.Transfer {
	for _, tr := range s.transfers {
		if tr.ID() == id {
			return tr
		}
	}
	return nil
}

// RemoveSite takes a site out of the scene. Registries drop it lazily.
func (s *Session) RemoveSite(id string) bool {
	for i, site := range s.sites {
		if site.ID() != id {
			continue
		}
		site.Remove()
		s.sites = append(s.sites[:i], s.sites[i+1:]...)
		delete(s.volumes, id)
		return true
	}
	return false
}

// Status reports the current state. Not safe to call while Run is active;
// use RequestStatus instead.
func (s *Session) Status() Status {
	st := Status{
		SessionID:            s.id,
		Tick:                 s.tick,
		TickRateHz:           s.tune.TickRateHz,
		SafeQualityThreshold: s.tune.SafeQualityThreshold,
		Summary:              s.ledger.Summary(),
		Vessels:              s.VesselStatuses(),
		Diagnostics:          s.diags.Entries(),
	}
	for _, tr := range s.transfers {
		st.Transfers = append(st.Transfers, tr.ID())
	}
	for _, site := range s.sites {
		g := site.Gate()
		ss := SiteStatus{ID: site.ID(), Kind: string(site.Kind()), State: g.State().String(), Completed: g.Completed()}
		if tgt := g.Target(); tgt != nil {
			ss.Target = tgt.ID
		}
		switch x := site.(type) {
		case *sites.Laundry:
			ss.Dirt = x.Dirt()
		case *sites.Tap:
			ss.Flowing = x.Flowing()
		case *sites.DisposalZone:
			if m := x.Members(); len(m) > 0 {
				ss.State = gate.Armed.String()
				ss.Target = strings.Join(m, ",")
			}
		}
		st.Sites = append(st.Sites, ss)
	}
	return st
}

// VesselStatuses reports the vessel contents in scene order.
func (s *Session) VesselStatuses() []VesselStatus {
	out := make([]VesselStatus, 0, len(s.vessels))
	for _, slot := range s.vessels {
		v := slot.v
		out = append(out, VesselStatus{ID: v.ID, Kind: v.Kind, Capacity: v.MaxCapacity(), Amount: v.Amount(), Quality: v.Quality()})
	}
	return out
}

func (s *Session) frame(buttons map[string]bool) tickctx.Frame {
	return tickctx.Frame{Tick: s.tick, Now: s.now, Guard: s.guard, Buttons: buttons}
}

package ledger

// Summary is the readout consumed by the HUD and result screen.
type Summary struct {
	State      State   `json:"state"`
	Tasks      int     `json:"tasks"`
	MaxTasks   int     `json:"max_tasks"`
	Gauges     Gauges  `json:"gauges"`
	History    History `json:"history"`
	Hygiene    float64 `json:"hygiene"`
	Efficiency float64 `json:"efficiency"`
}

func (l *Ledger) Summary() Summary {
	return Summary{
		State:      l.state,
		Tasks:      l.history.TotalTasksCompleted(),
		MaxTasks:   l.cfg.MaxTasks,
		Gauges:     l.gauges,
		History:    l.history,
		Hygiene:    Hygiene(l.history),
		Efficiency: Efficiency(l.history),
	}
}

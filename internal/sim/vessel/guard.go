package vessel

// Guard enforces at most one fill/drain pass per vessel per tick. Components
// claim every vessel they are about to mutate; a second claim in the same tick
// is refused and the caller must skip the mutation.
type Guard struct {
	tick    uint64
	claimed map[string]string
}

func NewGuard() *Guard {
	return &Guard{claimed: map[string]string{}}
}

// Begin starts a new tick and forgets every claim of the previous one.
func (g *Guard) Begin(tick uint64) {
	g.tick = tick
	for k := range g.claimed {
		delete(g.claimed, k)
	}
}

func (g *Guard) Tick() uint64 { return g.tick }

// Claim is all-or-nothing: either every vessel is free and becomes owned by
// owner, or nothing changes and false is returned.
func (g *Guard) Claim(owner string, vs ...*Vessel) bool {
	if g == nil {
		return true
	}
	for _, v := range vs {
		if v == nil {
			return false
		}
		if _, ok := g.claimed[v.ID]; ok {
			return false
		}
	}
	for _, v := range vs {
		g.claimed[v.ID] = owner
	}
	return true
}

func (g *Guard) Claimed(v *Vessel) bool {
	if g == nil || v == nil {
		return false
	}
	_, ok := g.claimed[v.ID]
	return ok
}

// Owner reports which component claimed v this tick.
func (g *Guard) Owner(v *Vessel) string {
	if g == nil || v == nil {
		return ""
	}
	return g.claimed[v.ID]
}

package protocol

import (
	"fmt"
	"sort"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// Options carries the credentials that change how individual strategies
// behave. Empty fields select the unauthenticated path.
type Options struct {
	FactorioUsername string
	FactorioToken    string
}

// Registry holds one shared strategy instance per protocol name.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds the full strategy set.
func NewRegistry(opts Options) *Registry {
	strategies := []Strategy{
		sourceStrategy{},
		wonStrategy{},
		gamespy1Strategy{},
		gamespy2Strategy{},
		gamespy3Strategy{},
		ut3Strategy{},
		quake1Strategy{},
		quake2Strategy{},
		quake3Strategy{},
		hexen2Strategy{},
		aseStrategy{},
		doom3Strategy{},
		unreal2Strategy{},
		sampStrategy{},
		vcmpStrategy{},
		raknetStrategy{},
		minecraftStrategy{},
		teamspeak3Strategy{},
		terrariaStrategy{},
		fivemStrategy{},
		discordStrategy{},
		assettocorsaStrategy{},
		battlefieldStrategy{},
		ecoStrategy{},
		gportalStrategy{},
		scumStrategy{},
		beammpStrategy{},
		palworldStrategy{},
		scpslStrategy{},
		satisfactoryStrategy{},
		&frontStrategy{},
		&asaStrategy{},
		newFactorioStrategy(opts.FactorioUsername, opts.FactorioToken),
	}

	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Name()] = s
	}
	return r
}

// Find returns the strategy for a protocol name.
func (r *Registry) Find(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("protocol %q: %w", name, probe.ErrInvalidGame)
	}
	return s, nil
}

// PreQueryStrategies returns the strategies whose shared state must be
// refreshed before a probe cycle.
func (r *Registry) PreQueryStrategies() []Strategy {
	var out []Strategy
	for _, s := range r.strategies {
		if s.PreQueryRequired() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns every registered protocol name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Package protocol implements the per-game query strategies: one adapter per
// wire protocol, each turning (endpoint, extras) into a normalized
// probe.Probe. Strategies are registered once in a Registry and shared by
// every probe of the tick; the few that need process-wide state (master
// server snapshots, OAuth tokens) refresh it through PreQuery.
package protocol

import (
	"context"
	"net"
	"strconv"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// Endpoint is the target of one probe.
type Endpoint struct {
	Host string
	Port int
}

// Addr returns the endpoint in host:port form.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String implements fmt.Stringer.
func (e Endpoint) String() string { return e.Addr() }

// Strategy is one protocol adapter. Query must honor the context deadline and
// report failures through the probe error taxonomy.
//
// PreQuery refreshes strategy-shared state. The scheduler invokes it at most
// once per tick for the whole process, only when PreQueryRequired reports
// true; implementations still guard their state with a mutex because probes
// read it concurrently.
type Strategy interface {
	Name() string
	PreQueryRequired() bool
	PreQuery(ctx context.Context) error
	Query(ctx context.Context, ep Endpoint, extra map[string]string) (*probe.Probe, error)
}

// noPreQuery is embedded by strategies without shared state.
type noPreQuery struct{}

func (noPreQuery) PreQueryRequired() bool           { return false }
func (noPreQuery) PreQuery(_ context.Context) error { return nil }

package executor

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/makolon/og-vlm/logging"
	"github.com/makolon/og-vlm/sim"
)

// Kind names an execution strategy.
type Kind string

// Known execution strategies.
const (
	// KindPrimitives executes through physically simulated primitive actions.
	KindPrimitives Kind = "primitives"
	// KindTeleport approximates execution by setting final poses directly.
	KindTeleport Kind = "teleport"
)

// Availability is the outcome of constructing a strategy: either a ready Executor or the reason it
// cannot run in this environment.
type Availability struct {
	Executor Executor
	Reason   string
}

// Ready wraps a constructed executor.
func Ready(ex Executor) Availability {
	return Availability{Executor: ex}
}

// Unavailable reports why a strategy cannot be constructed.
func Unavailable(reason string) Availability {
	return Availability{Reason: reason}
}

// Available reports whether an executor was constructed.
func (a Availability) Available() bool {
	return a.Executor != nil
}

// A Constructor builds a strategy for an environment.
type Constructor func(ctx context.Context, env sim.Environment, logger logging.Logger) Availability

var registry = map[Kind]Constructor{}

// Register registers an execution strategy.
func Register(kind Kind, constructor Constructor) {
	if _, old := registry[kind]; old {
		panic(errors.Errorf("trying to register two executors with same kind %s", kind))
	}
	if constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for executor %s", kind))
	}
	registry[kind] = constructor
}

// Lookup looks up a strategy constructor by kind. nil is returned if there is no strategy
// registered.
func Lookup(kind Kind) Constructor {
	return registry[kind]
}

// Kinds returns the registered strategies, sorted.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Construct builds the strategy of the given kind. An unregistered kind is reported as
// unavailable.
func Construct(ctx context.Context, kind Kind, env sim.Environment, logger logging.Logger) Availability {
	constructor := Lookup(kind)
	if constructor == nil {
		return Unavailable("no executor registered for kind " + string(kind))
	}
	return constructor(ctx, env, logger)
}

// Build constructs the requested strategy, falling back to teleport with a warning when the
// requested one is unavailable. The kind that will actually run is returned.
func Build(ctx context.Context, requested Kind, env sim.Environment, logger logging.Logger) (Executor, Kind, error) {
	avail := Construct(ctx, requested, env, logger)
	if avail.Available() {
		return avail.Executor, requested, nil
	}
	if requested == KindTeleport {
		return nil, "", errors.Errorf("executor %s unavailable: %s", requested, avail.Reason)
	}
	logger.Warnw("falling back to teleport executor", "requested", requested, "reason", avail.Reason)
	fallback := Construct(ctx, KindTeleport, env, logger)
	if !fallback.Available() {
		return nil, "", errors.Errorf("executor %s unavailable (%s) and fallback failed: %s",
			requested, avail.Reason, fallback.Reason)
	}
	return fallback.Executor, KindTeleport, nil
}

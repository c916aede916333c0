package workflow

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/flowkit/types"
)

// RouteFunc selects a route name for an invocation from the input and the
// workflow Context.
type RouteFunc func(input any, wc *Context) (string, error)

// RouterPrimitive dispatches each invocation to one of several named
// primitives chosen by a routing function. An unknown route falls back to the
// default route; with no default either, the invocation fails as unroutable.
//
// The router keeps per-route invocation counters and, when a cost table is
// supplied, an accumulated-savings figure (cost of the default route minus
// cost of the chosen cheaper route). Both are observability only and never
// influence routing decisions.
type RouterPrimitive struct {
	name         string
	routes       map[string]Primitive
	routeFn      RouteFunc
	defaultRoute string
	costs        map[string]float64
	observer     *Observer
	logger       *zap.Logger

	mu      sync.Mutex
	counts  map[string]int64
	savings float64
}

// RouterOption configures a RouterPrimitive.
type RouterOption func(*RouterPrimitive)

// WithDefaultRoute sets the route used when the routing function returns a
// name absent from the route table.
func WithDefaultRoute(route string) RouterOption {
	return func(p *RouterPrimitive) { p.defaultRoute = route }
}

// WithRouteCosts supplies a per-route cost table for the savings metric.
func WithRouteCosts(costs map[string]float64) RouterOption {
	return func(p *RouterPrimitive) { p.costs = costs }
}

// WithRouterObserver attaches an event observer.
func WithRouterObserver(obs *Observer) RouterOption {
	return func(p *RouterPrimitive) { p.observer = obs }
}

// WithRouterLogger attaches a logger.
func WithRouterLogger(logger *zap.Logger) RouterOption {
	return func(p *RouterPrimitive) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewRouter creates a router over the given route table.
func NewRouter(name string, routes map[string]Primitive, routeFn RouteFunc, opts ...RouterOption) *RouterPrimitive {
	p := &RouterPrimitive{
		name:    name,
		routes:  routes,
		routeFn: routeFn,
		counts:  make(map[string]int64),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RouterPrimitive) Name() string { return p.name }

func (p *RouterPrimitive) Execute(ctx context.Context, input any) (any, error) {
	ctx, wc := EnsureContext(ctx)

	route, err := p.routeFn(input, wc)
	if err != nil {
		return nil, types.NewPermanent(types.ErrUnroutableInput, "routing function failed").WithCause(err)
	}

	target, ok := p.routes[route]
	if !ok {
		if p.defaultRoute == "" {
			return nil, types.NewPermanent(types.ErrUnroutableInput,
				fmt.Sprintf("no route %q and no default route", route))
		}
		target, ok = p.routes[p.defaultRoute]
		if !ok {
			return nil, types.NewPermanent(types.ErrUnroutableInput,
				fmt.Sprintf("default route %q not registered", p.defaultRoute))
		}
		route = p.defaultRoute
	}

	p.recordRoute(route)
	p.observer.route(p.name, route)
	p.logger.Debug("route selected",
		zap.String("primitive", p.name),
		zap.String("correlation_id", wc.CorrelationID()),
		zap.String("route", route))

	return safeExecute(ctx, target, input)
}

func (p *RouterPrimitive) recordRoute(route string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[route]++
	if p.costs == nil || p.defaultRoute == "" || route == p.defaultRoute {
		return
	}
	defaultCost, haveDefault := p.costs[p.defaultRoute]
	routeCost, haveRoute := p.costs[route]
	if haveDefault && haveRoute && routeCost < defaultCost {
		p.savings += defaultCost - routeCost
	}
}

// RouterStats is a snapshot of the router's observability counters.
type RouterStats struct {
	Counts  map[string]int64 `json:"counts"`
	Savings float64          `json:"savings"`
}

// Stats returns a copy of the per-route counters and accumulated savings.
func (p *RouterPrimitive) Stats() RouterStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	counts := make(map[string]int64, len(p.counts))
	for route, n := range p.counts {
		counts[route] = n
	}
	return RouterStats{Counts: counts, Savings: p.savings}
}

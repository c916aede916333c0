package workflow

import "time"

// Observer receives one-way structured events from workflow primitives.
// Every field is optional; a nil Observer or nil callback is a no-op, never
// an error.
type Observer struct {
	// OnRetry fires before each backoff wait of a retry primitive.
	OnRetry func(primitive string, attempt int, err error, delay time.Duration)

	// OnFallback fires when a fallback candidate is about to be tried after
	// a failure.
	OnFallback func(primitive string, candidate string, err error)

	// OnCacheHit and OnCacheMiss fire per cache lookup.
	OnCacheHit  func(primitive string, key string)
	OnCacheMiss func(primitive string, key string)

	// OnCompensation fires after a compensating action runs. err is nil when
	// the compensation succeeded.
	OnCompensation func(primitive string, err error)

	// OnRoute fires after a router selects a route.
	OnRoute func(primitive string, route string)
}

func (o *Observer) retry(primitive string, attempt int, err error, delay time.Duration) {
	if o != nil && o.OnRetry != nil {
		o.OnRetry(primitive, attempt, err, delay)
	}
}

func (o *Observer) fallback(primitive, candidate string, err error) {
	if o != nil && o.OnFallback != nil {
		o.OnFallback(primitive, candidate, err)
	}
}

func (o *Observer) cacheHit(primitive, key string) {
	if o != nil && o.OnCacheHit != nil {
		o.OnCacheHit(primitive, key)
	}
}

func (o *Observer) cacheMiss(primitive, key string) {
	if o != nil && o.OnCacheMiss != nil {
		o.OnCacheMiss(primitive, key)
	}
}

func (o *Observer) compensation(primitive string, err error) {
	if o != nil && o.OnCompensation != nil {
		o.OnCompensation(primitive, err)
	}
}

func (o *Observer) route(primitive, route string) {
	if o != nil && o.OnRoute != nil {
		o.OnRoute(primitive, route)
	}
}

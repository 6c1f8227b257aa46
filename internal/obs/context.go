package obs

import "context"

type routeKey struct{}

// WithRoutePattern pins the route label for handlers served outside a chi
// router, such as handlers mounted directly in tests.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routeKey{}, pattern)
}

// RoutePatternFromContext returns the pinned route or "".
func RoutePatternFromContext(ctx context.Context) string {
	p, _ := ctx.Value(routeKey{}).(string)
	return p
}

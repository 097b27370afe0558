package tenantctx

import "context"

type tenantKey struct{}

// Tenant identifies one logged-in entity bound to one server origin.
type Tenant struct {
	EntityID     string
	ServerOrigin string
}

// WithTenant stores the active tenant in the context.
func WithTenant(ctx context.Context, tenant Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// FromContext returns the active tenant from context, if set.
func FromContext(ctx context.Context) (Tenant, bool) {
	if ctx == nil {
		return Tenant{}, false
	}
	tenant, ok := ctx.Value(tenantKey{}).(Tenant)
	if !ok || tenant.EntityID == "" {
		return Tenant{}, false
	}
	return tenant, true
}

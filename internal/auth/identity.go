package auth

import "context"

// Method names how a request was authenticated.
type Method string

const (
	MethodSession Method = "session"
	MethodAPIKey  Method = "api_key"
	MethodBasic   Method = "basic"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID      int64
	Username    string
	Permissions Permissions
	Method      Method
	APIKeyID    int64
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored in ctx, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}

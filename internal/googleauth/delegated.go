package googleauth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// ErrNoBearerToken is returned when a delegated-auth deployment receives a
// request that carries no usable Authorization header.
var ErrNoBearerToken = errors.New("no bearer token in request context")

type bearerTokenKey struct{}

// WithBearerToken stores a request's access token in the context.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey{}, token)
}

// BearerFromContext retrieves the access token stored by WithBearerToken.
func BearerFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerTokenKey{}).(string)
	return token, ok && token != ""
}

// BearerFromRequest lifts the Authorization header of an incoming HTTP or SSE
// request into the context, in the shape the mcp-go context funcs expect.
// Requests without a bearer token pass through unchanged; the failure is
// surfaced later, when a tool call needs the credential.
func BearerFromRequest(ctx context.Context, r *http.Request) context.Context {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
		return WithBearerToken(ctx, token)
	}
	return ctx
}

// DelegatedResolver implements the provider-delegated variant: the OAuth
// exchange happened upstream, so resolution just wraps the request's access
// token. The credential has no local refresh capability.
type DelegatedResolver struct{}

// NewDelegatedResolver returns the provider-delegated resolver.
func NewDelegatedResolver() *DelegatedResolver {
	return &DelegatedResolver{}
}

// Resolve wraps the bearer token of the current request as a credential.
func (d *DelegatedResolver) Resolve(ctx context.Context) (*Credential, error) {
	token, ok := BearerFromContext(ctx)
	if !ok {
		return nil, ErrNoBearerToken
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Credential{
		Source:  "oauth-provider",
		Options: []option.ClientOption{option.WithTokenSource(ts)},
	}, nil
}

// Package backend constructs the Google API clients behind a single
// process-wide access point.
package backend

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/sheetkit/gsheets-mcp/internal/googleauth"
)

// CredentialResolver yields the credential used to build the API clients.
// Satisfied by both googleauth.Resolver and googleauth.DelegatedResolver.
type CredentialResolver interface {
	Resolve(ctx context.Context) (*googleauth.Credential, error)
}

// Handle is the connected pair of Google services shared by all tool
// handlers, plus the optional Drive working folder. Immutable once built.
type Handle struct {
	Sheets   *sheets.Service
	Drive    *drive.Service
	FolderID string
}

// Provider builds the Handle lazily and at most once per process, even under
// concurrent first calls. A later auth rejection by the backend does not
// trigger re-resolution within the same process; restart to re-authenticate.
type Provider struct {
	resolver CredentialResolver
	folderID string
	extra    []option.ClientOption // test seam for endpoint overrides

	once   sync.Once
	handle *Handle
	err    error
}

// NewProvider wires a resolver and the configured working folder.
func NewProvider(resolver CredentialResolver, folderID string, extra ...option.ClientOption) *Provider {
	return &Provider{resolver: resolver, folderID: folderID, extra: extra}
}

// ExtraOptions exposes the provider's endpoint overrides for the rare client
// that must be built per request instead of from the shared handle.
func (p *Provider) ExtraOptions() []option.ClientOption {
	return p.extra
}

// Services returns the shared Handle, resolving credentials and constructing
// both clients on first use. The first call's outcome, success or failure, is
// what every later call observes.
func (p *Provider) Services(ctx context.Context) (*Handle, error) {
	p.once.Do(func() {
		p.handle, p.err = p.build(ctx)
	})
	return p.handle, p.err
}

func (p *Provider) build(ctx context.Context) (*Handle, error) {
	cred, err := p.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	opts := append(cred.Options, p.extra...)

	sheetsSvc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}

	return &Handle{
		Sheets:   sheetsSvc,
		Drive:    driveSvc,
		FolderID: p.folderID,
	}, nil
}

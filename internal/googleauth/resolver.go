// Package googleauth produces an authenticated credential for the Google
// Sheets and Drive APIs.
//
// Two mutually exclusive resolver variants exist. The default Resolver walks
// an ordered fallback chain of local strategies (inline service account key,
// key file, cached/interactive user OAuth, application default credentials).
// The DelegatedResolver instead trusts an OAuth provider in front of the
// transport and wraps the bearer token of the current request. Exactly one
// variant is active per process, chosen from configuration at startup.
package googleauth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/sheetkit/gsheets-mcp/internal/config"
)

const (
	SheetsScope = "https://www.googleapis.com/auth/spreadsheets"
	DriveScope  = "https://www.googleapis.com/auth/drive"
)

// RequiredScopes is the scope set every credential must carry.
var RequiredScopes = []string{SheetsScope, DriveScope}

// ErrNotConfigured marks a strategy whose inputs are simply absent, as
// opposed to present but unusable. Both cases advance the chain; only the
// distinction matters for logging.
var ErrNotConfigured = errors.New("not configured")

// Credential is an authenticated identity for the Google backend, expressed
// as the client options needed to construct API services with it.
type Credential struct {
	// Source names the strategy that produced the credential.
	Source string
	// Options configure sheets.NewService / drive.NewService.
	Options []option.ClientOption
}

// Strategy is one step of the resolution chain. Probe either yields a
// credential or an error; an error moves the chain to the next strategy.
type Strategy struct {
	Name  string
	Probe func(ctx context.Context) (*Credential, error)
}

// Resolver walks the strategy chain in order and memoizes the first success
// for the process lifetime. Resolution is never re-run after a success, even
// if the backend later rejects calls made with the credential.
type Resolver struct {
	strategies []Strategy
	scopes     []string
	logger     *slog.Logger

	mu   sync.Mutex
	cred *Credential
}

// NewResolver builds the default chain from configuration. Strategy order is
// part of the contract: inline key, key file, user OAuth, ADC. Every strategy
// requests the Sheets and Drive scopes plus any extra scopes configured via
// OAUTH_SCOPES.
func NewResolver(cfg *config.Config, logger *slog.Logger) *Resolver {
	r := &Resolver{
		scopes: append(slices.Clone(RequiredScopes), cfg.OAuthScopes...),
		logger: logger,
	}
	r.strategies = []Strategy{
		{Name: "inline-service-account", Probe: r.probeInlineKey(cfg.CredentialsConfig)},
		{Name: "service-account-file", Probe: r.probeKeyFile(cfg.ServiceAccountPath)},
		{Name: "user-oauth", Probe: r.probeUserOAuth(cfg.CredentialsPath, cfg.TokenPath)},
		{Name: "application-default", Probe: r.probeADC()},
	}
	return r
}

// NewResolverWithStrategies builds a resolver over an explicit chain.
func NewResolverWithStrategies(logger *slog.Logger, strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies, scopes: RequiredScopes, logger: logger}
}

// Resolve returns the process credential, running the chain on first call.
// Each strategy failure is swallowed and the next strategy is tried; if the
// whole chain is exhausted the aggregated error is returned. Callers must
// not retry a failed resolution.
func (r *Resolver) Resolve(ctx context.Context) (*Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cred != nil {
		return r.cred, nil
	}

	var failures []error
	for _, s := range r.strategies {
		cred, err := s.Probe(ctx)
		if err != nil {
			if errors.Is(err, ErrNotConfigured) {
				r.logger.Debug("credential strategy skipped", "strategy", s.Name)
			} else {
				r.logger.Warn("credential strategy failed", "strategy", s.Name, "error", err)
			}
			failures = append(failures, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		r.logger.Info("authenticated with Google", "strategy", s.Name)
		r.cred = cred
		return cred, nil
	}

	return nil, fmt.Errorf("all authentication methods failed: %w", errors.Join(failures...))
}

// probeInlineKey decodes a base64 service account key supplied directly in
// the environment.
func (r *Resolver) probeInlineKey(encoded string) func(context.Context) (*Credential, error) {
	return func(ctx context.Context) (*Credential, error) {
		if encoded == "" {
			return nil, ErrNotConfigured
		}
		keyJSON, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decoding CREDENTIALS_CONFIG: %w", err)
		}
		return credentialFromJSON(ctx, "inline-service-account", keyJSON, r.scopes)
	}
}

// probeKeyFile reads a service account key file. GOOGLE_APPLICATION_CREDENTIALS
// is honored as a fallback path so that an explicitly pointed key file wins
// over the broader ADC discovery in the last strategy.
func (r *Resolver) probeKeyFile(path string) func(context.Context) (*Credential, error) {
	return func(ctx context.Context) (*Credential, error) {
		if path == "" {
			path = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
		}
		if path == "" {
			return nil, ErrNotConfigured
		}
		keyJSON, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNotConfigured
			}
			return nil, fmt.Errorf("reading service account file: %w", err)
		}
		return credentialFromJSON(ctx, "service-account-file", keyJSON, r.scopes)
	}
}

// probeUserOAuth uses a cached token when one is valid or refreshable, and
// otherwise falls back to the interactive out-of-band code exchange.
func (r *Resolver) probeUserOAuth(credentialsPath, tokenPath string) func(context.Context) (*Credential, error) {
	return func(ctx context.Context) (*Credential, error) {
		clientJSON, err := os.ReadFile(credentialsPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNotConfigured
			}
			return nil, fmt.Errorf("reading OAuth client file: %w", err)
		}

		conf, err := google.ConfigFromJSON(clientJSON, r.scopes...)
		if err != nil {
			return nil, fmt.Errorf("parsing OAuth client file: %w", err)
		}

		if tok, err := tokenFromFile(tokenPath); err == nil {
			if tok.Valid() {
				return credentialFromToken(ctx, conf, tok), nil
			}
			if tok.RefreshToken != "" {
				refreshed, err := conf.TokenSource(ctx, tok).Token()
				if err == nil {
					if err := saveToken(tokenPath, refreshed); err != nil {
						r.logger.Warn("could not persist refreshed token", "path", tokenPath, "error", err)
					}
					return credentialFromToken(ctx, conf, refreshed), nil
				}
				r.logger.Warn("token refresh failed, starting interactive flow", "error", err)
			}
		}

		tok, err := exchangeInteractive(ctx, conf)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenPath, tok); err != nil {
			r.logger.Warn("could not persist token", "path", tokenPath, "error", err)
		}
		return credentialFromToken(ctx, conf, tok), nil
	}
}

// probeADC discovers ambient platform credentials: the environment-pointed
// key file, gcloud login state, or the metadata service.
func (r *Resolver) probeADC() func(context.Context) (*Credential, error) {
	return func(ctx context.Context) (*Credential, error) {
		creds, err := google.FindDefaultCredentials(ctx, r.scopes...)
		if err != nil {
			return nil, fmt.Errorf("application default credentials: %w", err)
		}
		return &Credential{
			Source:  "application-default",
			Options: []option.ClientOption{option.WithCredentials(creds)},
		}, nil
	}
}

func credentialFromJSON(ctx context.Context, source string, keyJSON []byte, scopes []string) (*Credential, error) {
	creds, err := google.CredentialsFromJSON(ctx, keyJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials JSON: %w", err)
	}
	return &Credential{
		Source:  source,
		Options: []option.ClientOption{option.WithCredentials(creds)},
	}, nil
}

func credentialFromToken(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) *Credential {
	return &Credential{
		Source:  "user-oauth",
		Options: []option.ClientOption{option.WithTokenSource(conf.TokenSource(ctx, tok))},
	}
}

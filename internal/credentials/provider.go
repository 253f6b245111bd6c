// Package credentials supplies short-lived OAuth bearer tokens for the FCM
// HTTP v1 API from a Google service-account key.
package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/oauth2/google"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

const (
	// MessagingScope is the OAuth scope required by messages:send.
	MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"
	// PathEnvVar locates the service-account key file.
	PathEnvVar = "GOOGLE_APPLICATION_CREDENTIALS"
	// DefaultPath is used when neither config nor environment name a file.
	DefaultPath = "firebase-service-account.json"
)

// ResolvePath picks the service-account file: explicit config first, then
// the environment, then the conventional default.
func ResolvePath(configured string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv(PathEnvVar); env != "" {
		return env
	}
	return DefaultPath
}

// Provider lazily loads the signing identity on first use. A missing or
// malformed key only disables the FCM v1 channel; it never stops the process.
type Provider struct {
	path      string
	projectID string
	logger    *slog.Logger
	readFile  func(string) ([]byte, error)

	mu    sync.Mutex
	creds *google.Credentials
}

// NewProvider creates a provider reading the key at path. projectID overrides
// the project embedded in the key when non-empty.
func NewProvider(path, projectID string, logger *slog.Logger) *Provider {
	return &Provider{
		path:      path,
		projectID: projectID,
		logger:    logger.With("component", "CredentialProvider"),
		readFile:  os.ReadFile,
	}
}

// Init loads the identity. Calling it again after a successful load returns
// the existing credentials; a failed load is retried on the next call.
func (p *Provider) Init(ctx context.Context) (*google.Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.creds != nil {
		return p.creds, nil
	}

	raw, err := p.readFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading service account %q: %v", dispatch.ErrNotConfigured, p.path, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, MessagingScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing service account %q: %v", dispatch.ErrNotConfigured, p.path, err)
	}

	p.creds = creds
	p.logger.Info("Service account loaded", "path", p.path, "project_id", p.resolveProject(creds))
	return creds, nil
}

// AccessToken returns a bearer token for one outbound batch. Callers must
// not keep it beyond the dispatch that requested it.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	creds, err := p.Init(ctx)
	if err != nil {
		return "", err
	}
	tok, err := creds.TokenSource.Token()
	if err != nil {
		return "", fmt.Errorf("fetching access token: %w", err)
	}
	return tok.AccessToken, nil
}

// ProjectID returns the Firebase project addressed by the v1 endpoint.
func (p *Provider) ProjectID(ctx context.Context) (string, error) {
	if p.projectID != "" {
		return p.projectID, nil
	}
	creds, err := p.Init(ctx)
	if err != nil {
		return "", err
	}
	project := p.resolveProject(creds)
	if project == "" {
		return "", fmt.Errorf("%w: service account %q has no project_id", dispatch.ErrNotConfigured, p.path)
	}
	return project, nil
}

func (p *Provider) resolveProject(creds *google.Credentials) string {
	if p.projectID != "" {
		return p.projectID
	}
	return creds.ProjectID
}

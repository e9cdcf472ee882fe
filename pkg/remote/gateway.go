package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openfroyo/froyo-git/pkg/telemetry"
)

// DefaultTimeout bounds a single API request when no client is supplied.
const DefaultTimeout = 30 * time.Second

// Gateway talks to the REST API of a hosting platform.
type Gateway interface {
	Kind() Kind

	// BaseURL returns the API base URL the gateway talks to.
	BaseURL() string

	// Connect prepares the authenticated client. It makes no request.
	Connect(ctx context.Context) error

	// CheckConnection fetches the authenticated user.
	CheckConnection(ctx context.Context) error

	// CheckRepositoryExists reports whether namespace/name exists. A 404 is
	// a definite false; any other non-200 status is an error.
	CheckRepositoryExists(ctx context.Context, name, namespace string) (bool, error)

	// CreateRepository creates an empty repository in namespace.
	CreateRepository(ctx context.Context, name, namespace, description string, private bool) (*RepositoryInfo, error)

	// CreateRepositoryIfNotExists creates the repository url points to unless
	// it exists. A nil info means the repository was already there.
	CreateRepositoryIfNotExists(ctx context.Context, url, description string, private bool) (*RepositoryInfo, error)

	ParseRepositoryURL(url string) (RepositoryRef, error)
}

// RepositoryInfo describes a repository a platform created.
type RepositoryInfo struct {
	ID       int64  `json:"id"`
	FullPath string `json:"full_path"`
	WebURL   string `json:"web_url,omitempty"`
	CloneURL string `json:"clone_url,omitempty"`
}

// Options configure a gateway.
type Options struct {
	Kind    Kind
	BaseURL string
	Token   string

	// HTTPClient is used for every request. Its Timeout is kept.
	HTTPClient *http.Client
	Logger     *telemetry.Logger
}

// Factory builds a gateway. It is swapped out in tests.
type Factory func(opts Options) (Gateway, error)

// New builds the gateway for opts.Kind.
func New(opts Options) (Gateway, error) {
	switch opts.Kind {
	case KindGitHub:
		return NewGitHub(opts)
	case KindGitLab:
		return NewGitLab(opts)
	default:
		return nil, fmt.Errorf("unknown remote type %q", opts.Kind)
	}
}

func (o *Options) normalize() error {
	if o.Token == "" {
		return ErrTokenRequired
	}
	if o.BaseURL == "" {
		return fmt.Errorf("%s: base URL is required", o.Kind)
	}
	o.BaseURL = strings.TrimSuffix(o.BaseURL, "/")
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if o.Logger == nil {
		o.Logger = telemetry.NewNopLogger()
	}
	o.Logger = o.Logger.WithGateway(string(o.Kind))
	return nil
}

// createIfNotExists is the check-then-create sequence shared by gateways.
func createIfNotExists(ctx context.Context, g Gateway, url, description string, private bool) (*RepositoryInfo, error) {
	ref, err := g.ParseRepositoryURL(url)
	if err != nil {
		return nil, err
	}

	exists, err := g.CheckRepositoryExists(ctx, ref.Name, ref.Namespace)
	if err != nil || exists {
		return nil, err
	}

	info, err := g.CreateRepository(ctx, ref.Name, ref.Namespace, description, private)
	if errors.Is(err, ErrRepositoryExists) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

func instrument(ctx context.Context, kind Kind, call string, fn func(context.Context) error) error {
	return telemetry.InstrumentGatewayCall(ctx, string(kind), call, fn)
}

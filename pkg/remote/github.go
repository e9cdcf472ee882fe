package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

// GitHub is the gateway for github.com and GitHub Enterprise.
type GitHub struct {
	opts Options

	mu     sync.Mutex
	client *github.Client
	login  string
}

var _ Gateway = (*GitHub)(nil)

// NewGitHub builds a GitHub gateway. The client is created on Connect.
func NewGitHub(opts Options) (*GitHub, error) {
	opts.Kind = KindGitHub
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if _, err := url.Parse(opts.BaseURL + "/"); err != nil {
		return nil, fmt.Errorf("github: invalid base URL %q: %w", opts.BaseURL, err)
	}
	return &GitHub{opts: opts}, nil
}

func (g *GitHub) Kind() Kind      { return KindGitHub }
func (g *GitHub) BaseURL() string { return g.opts.BaseURL }

func (g *GitHub) ParseRepositoryURL(url string) (RepositoryRef, error) {
	return ParseRepositoryURL(url)
}

// Connect builds the token-authenticated client.
func (g *GitHub) Connect(ctx context.Context) error {
	_, err := g.connect(ctx)
	return err
}

func (g *GitHub) connect(ctx context.Context) (*github.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	base, err := url.Parse(g.opts.BaseURL + "/")
	if err != nil {
		return nil, fmt.Errorf("github: invalid base URL %q: %w", g.opts.BaseURL, err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.opts.HTTPClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: g.opts.Token}))
	hc.Timeout = g.opts.HTTPClient.Timeout

	client := github.NewClient(hc)
	client.BaseURL = base
	g.client = client
	g.opts.Logger.Debugf("connected to %s", g.opts.BaseURL)
	return client, nil
}

// CheckConnection fetches the authenticated user.
func (g *GitHub) CheckConnection(ctx context.Context) error {
	_, err := g.currentLogin(ctx)
	return err
}

func (g *GitHub) currentLogin(ctx context.Context) (string, error) {
	client, err := g.connect(ctx)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	login := g.login
	g.mu.Unlock()
	if login != "" {
		return login, nil
	}

	err = instrument(ctx, KindGitHub, "current_user", func(ctx context.Context) error {
		user, resp, err := client.Users.Get(ctx, "")
		if resp == nil {
			return requestError(KindGitHub, "current_user", err)
		}
		if resp.StatusCode != http.StatusOK {
			return githubStatusError("current_user", resp, err, http.StatusOK)
		}
		login = user.GetLogin()
		return nil
	})
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	g.login = login
	g.mu.Unlock()
	return login, nil
}

// CheckRepositoryExists looks namespace/name up. An empty namespace is the
// authenticated user, as in CreateRepository.
func (g *GitHub) CheckRepositoryExists(ctx context.Context, name, namespace string) (bool, error) {
	client, err := g.connect(ctx)
	if err != nil {
		return false, err
	}
	if namespace == "" {
		if namespace, err = g.currentLogin(ctx); err != nil {
			return false, err
		}
	}

	var exists bool
	err = instrument(ctx, KindGitHub, "check_repository", func(ctx context.Context) error {
		_, resp, err := client.Repositories.Get(ctx, namespace, name)
		if resp == nil {
			return requestError(KindGitHub, "check_repository", err)
		}
		switch resp.StatusCode {
		case http.StatusOK:
			exists = true
			return nil
		case http.StatusNotFound:
			return nil
		}
		return githubStatusError("check_repository", resp, err, http.StatusOK, http.StatusNotFound)
	})
	if err != nil {
		return false, err
	}

	g.opts.Logger.Debugf("repository %s/%s exists: %v", namespace, name, exists)
	return exists, nil
}

// CreateRepository creates namespace/name with an initial commit. A
// namespace equal to the authenticated login creates a user repository;
// anything else is treated as an organization.
func (g *GitHub) CreateRepository(ctx context.Context, name, namespace, description string, private bool) (*RepositoryInfo, error) {
	client, err := g.connect(ctx)
	if err != nil {
		return nil, err
	}

	org := namespace
	if namespace != "" {
		login, err := g.currentLogin(ctx)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(login, namespace) {
			org = ""
		}
	}

	repo := &github.Repository{
		Name:        github.Ptr(name),
		Description: github.Ptr(description),
		Private:     github.Ptr(private),
		AutoInit:    github.Ptr(true),
	}

	var created *github.Repository
	err = instrument(ctx, KindGitHub, "create_repository", func(ctx context.Context) error {
		r, resp, err := client.Repositories.Create(ctx, org, repo)
		if resp == nil {
			return requestError(KindGitHub, "create_repository", err)
		}
		if resp.StatusCode == http.StatusCreated {
			created = r
			return nil
		}
		if resp.StatusCode == http.StatusUnprocessableEntity && err != nil &&
			strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("github: %s/%s: %w", namespace, name, ErrRepositoryExists)
		}
		return githubStatusError("create_repository", resp, err, http.StatusCreated)
	})
	if err != nil {
		return nil, err
	}

	info := &RepositoryInfo{
		ID:       created.GetID(),
		FullPath: created.GetFullName(),
		WebURL:   created.GetHTMLURL(),
		CloneURL: created.GetCloneURL(),
	}
	if info.FullPath == "" {
		info.FullPath = RepositoryRef{Name: name, Namespace: namespace}.FullPath()
	}
	g.opts.Logger.Infof("created repository %s", info.FullPath)
	return info, nil
}

func (g *GitHub) CreateRepositoryIfNotExists(ctx context.Context, url, description string, private bool) (*RepositoryInfo, error) {
	return createIfNotExists(ctx, g, url, description, private)
}

func githubStatusError(call string, resp *github.Response, err error, expected ...int) error {
	statusErr := &UnexpectedStatusError{
		Gateway:    KindGitHub,
		Call:       call,
		StatusCode: resp.StatusCode,
		Expected:   expected,
	}
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) {
		statusErr.Message = errResp.Message
	}
	return statusErr
}

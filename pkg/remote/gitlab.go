package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLab is the gateway for gitlab.com and self-hosted GitLab.
type GitLab struct {
	opts Options

	mu     sync.Mutex
	client *gitlab.Client
}

var _ Gateway = (*GitLab)(nil)

// NewGitLab builds a GitLab gateway. The client is created on Connect.
func NewGitLab(opts Options) (*GitLab, error) {
	opts.Kind = KindGitLab
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	return &GitLab{opts: opts}, nil
}

func (g *GitLab) Kind() Kind      { return KindGitLab }
func (g *GitLab) BaseURL() string { return g.opts.BaseURL }

func (g *GitLab) ParseRepositoryURL(url string) (RepositoryRef, error) {
	return ParseRepositoryURL(url)
}

func (g *GitLab) Connect(ctx context.Context) error {
	_, err := g.connect()
	return err
}

func (g *GitLab) connect() (*gitlab.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	client, err := gitlab.NewClient(g.opts.Token,
		gitlab.WithBaseURL(g.opts.BaseURL),
		gitlab.WithHTTPClient(g.opts.HTTPClient),
		gitlab.WithCustomRetryMax(0),
	)
	if err != nil {
		return nil, fmt.Errorf("gitlab: creating client: %w", err)
	}
	g.client = client
	g.opts.Logger.Debugf("connected to %s", g.opts.BaseURL)
	return client, nil
}

// CheckConnection fetches the authenticated user.
func (g *GitLab) CheckConnection(ctx context.Context) error {
	client, err := g.connect()
	if err != nil {
		return err
	}

	return instrument(ctx, KindGitLab, "current_user", func(ctx context.Context) error {
		_, resp, err := client.Users.CurrentUser(gitlab.WithContext(ctx))
		if resp == nil {
			return requestError(KindGitLab, "current_user", err)
		}
		if resp.StatusCode != http.StatusOK {
			return gitlabStatusError("current_user", resp, err, http.StatusOK)
		}
		return nil
	})
}

func (g *GitLab) CheckRepositoryExists(ctx context.Context, name, namespace string) (bool, error) {
	client, err := g.connect()
	if err != nil {
		return false, err
	}

	pid := RepositoryRef{Name: name, Namespace: namespace}.FullPath()

	var exists bool
	err = instrument(ctx, KindGitLab, "check_repository", func(ctx context.Context) error {
		_, resp, err := client.Projects.GetProject(pid, nil, gitlab.WithContext(ctx))
		if resp == nil {
			return requestError(KindGitLab, "check_repository", err)
		}
		switch resp.StatusCode {
		case http.StatusOK:
			exists = true
			return nil
		case http.StatusNotFound:
			return nil
		}
		return gitlabStatusError("check_repository", resp, err, http.StatusOK, http.StatusNotFound)
	})
	if err != nil {
		return false, err
	}

	g.opts.Logger.Debugf("project %s exists: %v", pid, exists)
	return exists, nil
}

// CreateRepository creates an empty project. A namespace is resolved to its
// id first. An empty or unknown namespace creates the project under the
// token's user.
func (g *GitLab) CreateRepository(ctx context.Context, name, namespace, description string, private bool) (*RepositoryInfo, error) {
	client, err := g.connect()
	if err != nil {
		return nil, err
	}

	visibility := gitlab.PublicVisibility
	if private {
		visibility = gitlab.PrivateVisibility
	}
	opt := &gitlab.CreateProjectOptions{
		Name:                 gitlab.Ptr(name),
		Path:                 gitlab.Ptr(name),
		Description:          gitlab.Ptr(description),
		Visibility:           gitlab.Ptr(visibility),
		InitializeWithReadme: gitlab.Ptr(false),
	}

	if namespace != "" {
		ns, err := g.findNamespace(ctx, client, namespace)
		if err != nil {
			return nil, err
		}
		if ns != nil {
			opt.NamespaceID = gitlab.Ptr(ns.ID)
		} else {
			g.opts.Logger.Warnf("namespace %s not found, creating %s under the current user", namespace, name)
		}
	}

	var project *gitlab.Project
	err = instrument(ctx, KindGitLab, "create_repository", func(ctx context.Context) error {
		p, resp, err := client.Projects.CreateProject(opt, gitlab.WithContext(ctx))
		if resp == nil {
			return requestError(KindGitLab, "create_repository", err)
		}
		if resp.StatusCode == http.StatusCreated {
			project = p
			return nil
		}
		if resp.StatusCode == http.StatusBadRequest && err != nil &&
			strings.Contains(err.Error(), "has already been taken") {
			return fmt.Errorf("gitlab: %s/%s: %w", namespace, name, ErrRepositoryExists)
		}
		return gitlabStatusError("create_repository", resp, err, http.StatusCreated)
	})
	if err != nil {
		return nil, err
	}

	info := &RepositoryInfo{FullPath: RepositoryRef{Name: name, Namespace: namespace}.FullPath()}
	if project != nil {
		info.ID = int64(project.ID)
		info.WebURL = project.WebURL
		info.CloneURL = project.HTTPURLToRepo
		if project.PathWithNamespace != "" {
			info.FullPath = project.PathWithNamespace
		}
	}
	g.opts.Logger.Infof("created project %s", info.FullPath)
	return info, nil
}

// findNamespace returns nil when no namespace matches.
func (g *GitLab) findNamespace(ctx context.Context, client *gitlab.Client, namespace string) (*gitlab.Namespace, error) {
	var found *gitlab.Namespace
	err := instrument(ctx, KindGitLab, "find_namespace", func(ctx context.Context) error {
		namespaces, resp, err := client.Namespaces.ListNamespaces(
			&gitlab.ListNamespacesOptions{Search: gitlab.Ptr(namespace)},
			gitlab.WithContext(ctx),
		)
		if resp == nil {
			return requestError(KindGitLab, "find_namespace", err)
		}
		if resp.StatusCode != http.StatusOK {
			return gitlabStatusError("find_namespace", resp, err, http.StatusOK)
		}
		for _, ns := range namespaces {
			if ns.FullPath == namespace || ns.Path == namespace {
				found = ns
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (g *GitLab) CreateRepositoryIfNotExists(ctx context.Context, url, description string, private bool) (*RepositoryInfo, error) {
	return createIfNotExists(ctx, g, url, description, private)
}

func gitlabStatusError(call string, resp *gitlab.Response, err error, expected ...int) error {
	statusErr := &UnexpectedStatusError{
		Gateway:    KindGitLab,
		Call:       call,
		StatusCode: resp.StatusCode,
		Expected:   expected,
	}
	var errResp *gitlab.ErrorResponse
	if errors.As(err, &errResp) {
		statusErr.Message = errResp.Message
	}
	return statusErr
}

package gitrepo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// ErrBranchNameEmpty is returned when a branch operation gets no name.
var ErrBranchNameEmpty = errors.New("branch name cannot be empty")

// MetadataPath returns the repository metadata directory under path.
func MetadataPath(path string) string {
	return filepath.Join(path, git.GitDirName)
}

// IsValid reports whether path holds a repository that can be opened. A
// metadata directory without a HEAD reference, such as an empty .git folder,
// is not a repository.
func IsValid(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}

// Repository is an opened working tree repository.
type Repository struct {
	path string
	repo *git.Repository
}

// Open opens the repository at path. It returns git.ErrRepositoryNotExists
// when path holds no valid repository.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}
	return &Repository{path: path, repo: repo}, nil
}

// Init creates an empty repository at path. An invalid metadata directory
// already present at path is replaced. Init reports whether a metadata
// directory was replaced.
func Init(path string) (*Repository, bool, error) {
	replaced := false
	meta := MetadataPath(path)
	if _, err := os.Stat(meta); err == nil && !IsValid(path) {
		if err := os.RemoveAll(meta); err != nil {
			return nil, false, fmt.Errorf("removing invalid metadata at %s: %w", meta, err)
		}
		replaced = true
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, replaced, fmt.Errorf("initializing repository at %s: %w", path, err)
	}
	return &Repository{path: path, repo: repo}, replaced, nil
}

// Path returns the working tree path.
func (r *Repository) Path() string {
	return r.path
}

// Git returns the underlying go-git repository.
func (r *Repository) Git() *git.Repository {
	return r.repo
}

// Branches returns the local branch names, sorted. While HEAD is unborn the
// branch it points to is included, since the first commit will create it.
func (r *Repository) Branches() ([]string, error) {
	seen := make(map[string]bool)

	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		seen[ref.Name().Short()] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}

	if name, unborn, err := r.unbornHead(); err != nil {
		return nil, err
	} else if unborn {
		seen[name.Short()] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// HasBranch reports whether name is a local branch.
func (r *Repository) HasBranch(name string) (bool, error) {
	branches, err := r.Branches()
	if err != nil {
		return false, err
	}
	for _, b := range branches {
		if b == name {
			return true, nil
		}
	}
	return false, nil
}

// CreateBranch creates the local branch name at the commit HEAD points to.
// When HEAD is unborn there is no commit to branch from, so HEAD is pointed
// at the new branch instead, and the unborn branch it pointed at before is
// returned: Branches no longer reports it. No other branch is touched.
func (r *Repository) CreateBranch(name string) (string, error) {
	if name == "" {
		return "", ErrBranchNameEmpty
	}

	refName := plumbing.NewBranchReferenceName(name)
	if err := refName.Validate(); err != nil {
		return "", fmt.Errorf("invalid branch name %q: %w", name, err)
	}

	head, err := r.repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		previous, _, err := r.unbornHead()
		if err != nil {
			return "", err
		}
		ref := plumbing.NewSymbolicReference(plumbing.HEAD, refName)
		if err := r.repo.Storer.SetReference(ref); err != nil {
			return "", fmt.Errorf("pointing HEAD at %s: %w", name, err)
		}
		if previous == refName {
			return "", nil
		}
		return previous.Short(), nil
	case err != nil:
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}

	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(refName, head.Hash())); err != nil {
		return "", fmt.Errorf("setting branch reference: %w", err)
	}
	return "", nil
}

// unbornHead returns the branch HEAD points to when that branch does not
// exist yet.
func (r *Repository) unbornHead() (plumbing.ReferenceName, bool, error) {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", false, fmt.Errorf("reading HEAD: %w", err)
	}
	if head.Type() != plumbing.SymbolicReference {
		return "", false, nil
	}

	_, err = storer.ResolveReference(r.repo.Storer, head.Target())
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return head.Target(), true, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolving HEAD: %w", err)
	}
	return "", false, nil
}

// Remotes returns the configured remotes as name -> first URL.
func (r *Repository) Remotes() (map[string]string, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return nil, fmt.Errorf("reading repository config: %w", err)
	}

	remotes := make(map[string]string, len(cfg.Remotes))
	for name, rc := range cfg.Remotes {
		url := ""
		if len(rc.URLs) > 0 {
			url = rc.URLs[0]
		}
		remotes[name] = url
	}
	return remotes, nil
}

// RemoteURL returns the first URL of the named remote.
func (r *Repository) RemoteURL(name string) (string, bool, error) {
	remotes, err := r.Remotes()
	if err != nil {
		return "", false, err
	}
	url, ok := remotes[name]
	return url, ok, nil
}

// SetRemote points the named remote at url, creating it when missing. It
// reports whether the remote was created.
func (r *Repository) SetRemote(name, url string) (bool, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return false, fmt.Errorf("reading repository config: %w", err)
	}

	if rc, ok := cfg.Remotes[name]; ok {
		rc.URLs = []string{url}
		if err := r.repo.SetConfig(cfg); err != nil {
			return false, fmt.Errorf("updating remote %s: %w", name, err)
		}
		return false, nil
	}

	_, err = r.repo.CreateRemote(&gitconfig.RemoteConfig{Name: name, URLs: []string{url}})
	if errors.Is(err, git.ErrRemoteExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating remote %s: %w", name, err)
	}
	return true, nil
}

// DeleteRemote removes the named remote. A missing remote is not an error.
func (r *Repository) DeleteRemote(name string) error {
	err := r.repo.DeleteRemote(name)
	if err != nil && !errors.Is(err, git.ErrRemoteNotFound) {
		return fmt.Errorf("deleting remote %s: %w", name, err)
	}
	return nil
}

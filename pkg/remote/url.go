package remote

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind names a hosting platform.
type Kind string

const (
	KindGitHub Kind = "github"
	KindGitLab Kind = "gitlab"
)

// Public API endpoints of the SaaS platforms.
const (
	GitHubPublicAPI = "https://api.github.com"
	GitLabPublicAPI = "https://gitlab.com/api/v4"
)

// Kinds returns the known platforms in detection order.
func Kinds() []Kind {
	return []Kind{KindGitHub, KindGitLab}
}

var detectors = map[Kind]*regexp.Regexp{
	KindGitHub: regexp.MustCompile(`github\.com[:/]`),
	KindGitLab: regexp.MustCompile(`gitlab\.[a-zA-Z0-9.-]+[:/]`),
}

// ParseKind maps an explicit type name onto a Kind, ignoring case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := detectors[k]; !ok {
		return "", fmt.Errorf("unknown remote type %q (want one of github, gitlab)", s)
	}
	return k, nil
}

// Matches reports whether url looks like a repository URL of platform k.
func (k Kind) Matches(url string) bool {
	re, ok := detectors[k]
	return ok && re.MatchString(url)
}

// TokenKey returns the env parameter holding the API token for k, e.g.
// GITHUB_API_TOKEN.
func (k Kind) TokenKey() string {
	return strings.ToUpper(string(k)) + "_API_TOKEN"
}

// DetectRemoteType resolves the platform of a remote. An explicit type wins;
// otherwise the URL is tested against each platform in Kinds order. The
// second result is false when nothing matched.
func DetectRemoteType(explicit, url string) (Kind, bool, error) {
	if explicit != "" {
		k, err := ParseKind(explicit)
		if err != nil {
			return "", false, err
		}
		return k, true, nil
	}

	for _, k := range Kinds() {
		if k.Matches(url) {
			return k, true, nil
		}
	}
	return "", false, nil
}

var (
	schemeHostPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://(?:[^@/]+@)?([^/:]+)(?::\d+)?/`)
	scpHostPattern    = regexp.MustCompile(`^(?:[^@/]+@)?([^/:]+):`)
)

// Host returns the host part of an https, ssh:// or scp-like (git@host:path)
// repository URL.
func Host(url string) (string, bool) {
	if m := schemeHostPattern.FindStringSubmatch(url); m != nil {
		return m[1], true
	}
	if strings.Contains(url, "://") {
		return "", false
	}
	if m := scpHostPattern.FindStringSubmatch(url); m != nil {
		return m[1], true
	}
	return "", false
}

// RepositoryRef locates a repository on a platform.
type RepositoryRef struct {
	Name      string
	Namespace string
}

// FullPath returns namespace/name, or name without namespace.
func (r RepositoryRef) FullPath() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + "/" + r.Name
}

// ParseRepositoryURL extracts the repository name and its direct namespace
// from a remote URL. The last path segment is the name; the one before it,
// if any, is the namespace.
func ParseRepositoryURL(url string) (RepositoryRef, error) {
	path := url
	if m := schemeHostPattern.FindStringIndex(url); m != nil {
		path = url[m[1]:]
	} else if !strings.Contains(url, "://") {
		if m := scpHostPattern.FindStringIndex(url); m != nil {
			path = url[m[1]:]
		}
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")

	if path == "" || strings.Contains(path, "://") {
		return RepositoryRef{}, fmt.Errorf("cannot parse repository URL %q", url)
	}

	parts := strings.Split(path, "/")
	ref := RepositoryRef{Name: parts[len(parts)-1]}
	if len(parts) >= 2 {
		ref.Namespace = parts[len(parts)-2]
	}
	if ref.Name == "" {
		return RepositoryRef{}, fmt.Errorf("repository URL %q has no name", url)
	}
	return ref, nil
}

// BuildRemoteAPIURL derives the REST API base URL of platform k from a
// repository URL: the public API for the SaaS host, otherwise the
// self-hosted API path on the same host.
func BuildRemoteAPIURL(k Kind, url string) (string, error) {
	host, ok := Host(url)
	if !ok {
		return "", fmt.Errorf("cannot find host in repository URL %q", url)
	}

	switch k {
	case KindGitHub:
		if host == "github.com" {
			return GitHubPublicAPI, nil
		}
		return "https://" + host + "/api/v3", nil
	case KindGitLab:
		if host == "gitlab.com" {
			return GitLabPublicAPI, nil
		}
		return "https://" + host + "/api/v4", nil
	default:
		return "", fmt.Errorf("unknown remote type %q", k)
	}
}

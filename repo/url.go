package repo

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Ref identifies a repository.
type Ref struct {
	Host  string `json:"host"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// FullName returns "owner/name".
func (r Ref) FullName() string { return r.Owner + "/" + r.Name }

// HTTPSURL returns the canonical https clone URL without the .git suffix.
func (r Ref) HTTPSURL() string {
	return fmt.Sprintf("https://%s/%s/%s", r.Host, r.Owner, r.Name)
}

var (
	segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	scpPattern     = regexp.MustCompile(`^git@([A-Za-z0-9.-]+):([^/]+)/([^/]+?)(\.git)?$`)
)

// ParseURL accepts https://host/owner/repo[.git] and git@host:owner/repo.git.
func ParseURL(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, fmt.Errorf("repository url is empty")
	}

	if m := scpPattern.FindStringSubmatch(raw); m != nil {
		return validRef(m[1], m[2], m[3])
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid repository url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return Ref{}, fmt.Errorf("unsupported repository url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return Ref{}, fmt.Errorf("repository url has no host")
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 {
		return Ref{}, fmt.Errorf("repository url must have the form https://host/owner/repo")
	}
	return validRef(u.Host, parts[0], strings.TrimSuffix(parts[1], ".git"))
}

func validRef(host, owner, name string) (Ref, error) {
	if !segmentPattern.MatchString(owner) || !segmentPattern.MatchString(name) {
		return Ref{}, fmt.Errorf("repository owner/name contains invalid characters")
	}
	return Ref{Host: strings.ToLower(host), Owner: owner, Name: name}, nil
}

// Package repository loads source files from code hosting providers (GitHub,
// GitLab) so they can be analyzed without copying them into the editor by
// hand. It defines common file and repository metadata plus a generic Client
// interface implemented by provider-specific clients.
package repository

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAFile is returned when a path names a directory or other non-file
// entry.
var ErrNotAFile = errors.New("path is not a file")

// FileInfo describes a file in a repository tree.
type FileInfo struct {
	Path string // Full path to the file in the repository
	Name string // Base name of the file
	Size int64  // Size in bytes, when the host reports it
	SHA  string // Blob SHA
}

// Info contains metadata about a repository.
type Info struct {
	Name          string
	FullName      string // owner/repo, or group/sub/repo on GitLab
	DefaultBranch string
	URL           string // Web URL to the repository
}

// Client defines the interface for reading from git repository providers
type Client interface {
	// GetRepositoryInfo retrieves metadata about a repository
	GetRepositoryInfo(ctx context.Context, owner, repo string) (*Info, error)

	// ListFilesRecursive retrieves all files (not directories) in a repository
	// at ref. An empty ref uses the default branch.
	ListFilesRecursive(ctx context.Context, owner, repo, ref string) ([]FileInfo, error)

	// GetFileContent retrieves the content of a specific file. An empty ref
	// uses the default branch.
	GetFileContent(ctx context.Context, owner, repo, ref, path string) (string, error)
}

// Config holds common configuration for repository clients
type Config struct {
	// Token is the authentication token for accessing private repositories
	// For GitHub: Personal Access Token
	// For GitLab: Personal Access Token or OAuth token
	Token string

	// BaseURL is the base URL for the API endpoint
	// For GitHub Enterprise or GitLab self-hosted instances
	// Leave empty for public GitHub (github.com) or GitLab (gitlab.com)
	BaseURL string
}

// resolveRef returns ref, or the repository's default branch when ref is
// empty.
func resolveRef(ctx context.Context, c Client, owner, repo, ref string) (string, error) {
	if ref != "" {
		return ref, nil
	}
	info, err := c.GetRepositoryInfo(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("failed to get default branch: %w", err)
	}
	if info.DefaultBranch == "" {
		return "", fmt.Errorf("%s/%s has no default branch", owner, repo)
	}
	return info.DefaultBranch, nil
}

package repository

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubClient implements the Client interface for GitHub repositories
type GitHubClient struct {
	host githubHost
}

// NewGitHubClient creates a new GitHub client with the provided configuration
// If no token is provided, the client will only have access to public repositories
// If a custom BaseURL is provided, it will be used for GitHub Enterprise instances
func NewGitHubClient(config Config) (*GitHubClient, error) {
	var client *github.Client

	if config.Token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: config.Token},
		)
		client = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		client = github.NewClient(nil)
	}

	if config.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(config.BaseURL, config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to set GitHub Enterprise URL: %w", err)
		}
	}

	return &GitHubClient{host: githubSDK{client: client}}, nil
}

// GetRepositoryInfo retrieves metadata about a GitHub repository
func (g *GitHubClient) GetRepositoryInfo(ctx context.Context, owner, repo string) (*Info, error) {
	r, err := g.host.repository(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository info from GitHub: %w", err)
	}
	return &Info{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		DefaultBranch: r.GetDefaultBranch(),
		URL:           r.GetHTMLURL(),
	}, nil
}

// ListFilesRecursive returns every blob in the tree at ref.
func (g *GitHubClient) ListFilesRecursive(ctx context.Context, owner, repo, ref string) ([]FileInfo, error) {
	ref, err := resolveRef(ctx, g, owner, repo, ref)
	if err != nil {
		return nil, err
	}

	tree, err := g.host.tree(ctx, owner, repo, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository tree from GitHub: %w", err)
	}
	if tree.GetTruncated() {
		// TODO: fall back to walking subtrees when GitHub truncates the listing.
		slog.Warn("GitHub truncated the repository tree", "owner", owner, "repo", repo, "ref", ref)
	}

	files := make([]FileInfo, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		files = append(files, FileInfo{
			Path: entry.GetPath(),
			Name: path.Base(entry.GetPath()),
			Size: int64(entry.GetSize()),
			SHA:  entry.GetSHA(),
		})
	}
	return files, nil
}

// GetFileContent returns the decoded content of the file at p. GitHub picks
// the default branch itself when ref is empty.
func (g *GitHubClient) GetFileContent(ctx context.Context, owner, repo, ref, p string) (string, error) {
	file, err := g.host.contents(ctx, owner, repo, ref, p)
	if err != nil {
		return "", fmt.Errorf("failed to get file content from GitHub: %w", err)
	}
	if file.GetType() != "" && file.GetType() != "file" {
		return "", fmt.Errorf("%w: %s is a %s", ErrNotAFile, p, file.GetType())
	}

	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode file content: %w", err)
	}
	return content, nil
}

package repository

// Adapters over the GitHub and GitLab SDKs. Each host interface carries only
// the calls the clients make, already unwrapped from the SDK response, so
// clients and their tests deal in SDK models alone.

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v57/github"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

const treePageSize = 100

// githubHost is the part of the GitHub REST API used by GitHubClient.
type githubHost interface {
	repository(ctx context.Context, owner, repo string) (*github.Repository, error)
	tree(ctx context.Context, owner, repo, ref string) (*github.Tree, error)
	// contents fails with ErrNotAFile for directories.
	contents(ctx context.Context, owner, repo, ref, path string) (*github.RepositoryContent, error)
}

// gitlabHost is the part of the GitLab REST API used by GitLabClient.
// Projects are addressed by their full path.
type gitlabHost interface {
	project(ctx context.Context, pid string) (*gitlab.Project, error)
	// tree walks every page of the recursive tree listing.
	tree(ctx context.Context, pid, ref string) ([]*gitlab.TreeNode, error)
	file(ctx context.Context, pid, ref, path string) (*gitlab.File, error)
}

type githubSDK struct {
	client *github.Client
}

func (s githubSDK) repository(ctx context.Context, owner, repo string) (*github.Repository, error) {
	r, resp, err := s.client.Repositories.Get(ctx, owner, repo)
	if resp != nil {
		closeResponse(resp.Response)
	}
	return r, err
}

func (s githubSDK) tree(ctx context.Context, owner, repo, ref string) (*github.Tree, error) {
	t, resp, err := s.client.Git.GetTree(ctx, owner, repo, ref, true)
	if resp != nil {
		closeResponse(resp.Response)
	}
	return t, err
}

func (s githubSDK) contents(ctx context.Context, owner, repo, ref, path string) (*github.RepositoryContent, error) {
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	file, dir, resp, err := s.client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if resp != nil {
		closeResponse(resp.Response)
	}
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("%w: %s is a directory with %d entries", ErrNotAFile, path, len(dir))
	}
	return file, nil
}

type gitlabSDK struct {
	client *gitlab.Client
}

func (s gitlabSDK) project(ctx context.Context, pid string) (*gitlab.Project, error) {
	p, resp, err := s.client.Projects.GetProject(pid, nil, gitlab.WithContext(ctx))
	if resp != nil {
		closeResponse(resp.Response)
	}
	return p, err
}

func (s gitlabSDK) tree(ctx context.Context, pid, ref string) ([]*gitlab.TreeNode, error) {
	opts := &gitlab.ListTreeOptions{
		Recursive:   gitlab.Ptr(true),
		Ref:         gitlab.Ptr(ref),
		ListOptions: gitlab.ListOptions{PerPage: treePageSize, Page: 1},
	}

	var nodes []*gitlab.TreeNode
	for {
		page, resp, err := s.client.Repositories.ListTree(pid, opts, gitlab.WithContext(ctx))
		if resp != nil {
			closeResponse(resp.Response)
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, page...)
		if resp == nil || resp.NextPage == 0 {
			return nodes, nil
		}
		opts.Page = resp.NextPage
	}
}

func (s gitlabSDK) file(ctx context.Context, pid, ref, path string) (*gitlab.File, error) {
	f, resp, err := s.client.RepositoryFiles.GetFile(pid, path, &gitlab.GetFileOptions{Ref: gitlab.Ptr(ref)}, gitlab.WithContext(ctx))
	if resp != nil {
		closeResponse(resp.Response)
	}
	return f, err
}

func closeResponse(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	if err := resp.Body.Close(); err != nil {
		slog.Warn("Failed to close response body", "error", err)
	}
}

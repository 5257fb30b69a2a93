package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var ErrNotRepository = errors.New("NOT_A_REPOSITORY")

const fixtureDirBase = "/tmp/rgrun-fixtures"

// FindRoot returns the top-level directory of the git work tree containing
// start, walking up through parent directories.
func FindRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", fmt.Errorf("%w: %s", ErrNotRepository, abs)
		}
		return "", fmt.Errorf("failed to open repository at %s: %w", abs, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no work tree to search.
		return "", fmt.Errorf("%w: %s has no work tree", ErrNotRepository, abs)
	}
	return wt.Filesystem.Root(), nil
}

// CreateRepo creates a git repository containing files (relative path to
// content) in one initial commit. Paths listed in a ".gitignore" entry of
// files are written but stay untracked. If KEEP_TEST_REPOS=true, the repo
// is created under a fixed base directory and persists; otherwise the
// caller is responsible for Cleanup.
func CreateRepo(files map[string]string) (string, *git.Repository, error) {
	var dir string
	var err error

	if os.Getenv("KEEP_TEST_REPOS") == "true" {
		err = os.MkdirAll(fixtureDirBase, 0755)
		if err != nil {
			return "", nil, fmt.Errorf("failed to create base directory: %w", err)
		}
		dir, err = os.MkdirTemp(fixtureDirBase, "repo-")
	} else {
		dir, err = os.MkdirTemp("", "rgrun-repo-")
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to create repo directory: %w", err)
	}

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return "", nil, fmt.Errorf("failed to initialize git repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", nil, fmt.Errorf("failed to create directory for %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(files[name]), 0644); err != nil {
			return "", nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	// Staging from the status honours .gitignore, so ignored fixtures stay
	// untracked.
	if len(names) > 0 {
		if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
			return "", nil, fmt.Errorf("failed to stage files: %w", err)
		}
	}

	_, err = wt.Commit("Initial commit", &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  "rgrun",
			Email: "rgrun@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to create initial commit: %w", err)
	}

	return dir, repo, nil
}

// Cleanup removes a repository created by CreateRepo.
func Cleanup(dir string) error {
	return os.RemoveAll(dir)
}

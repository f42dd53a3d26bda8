package client

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// SubmissionFromGit returns the HEAD commit hash of the repository checked
// out in repoFS, for use as a submission ID.
func SubmissionFromGit(repoFS billy.Filesystem) (string, error) {
	dot, err := repoFS.Chroot(git.GitDirName)
	if err != nil {
		return "", fmt.Errorf("failed to access .git directory: %w", err)
	}

	r, err := git.Open(filesystem.NewStorage(dot, cache.NewObjectLRUDefault()), repoFS)
	if err != nil {
		return "", fmt.Errorf("failed to open git repo: %w", err)
	}
	ref, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

package sandbox

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/computerscienceiscool/rgrun/pkg/config"
)

// ContainerPath maps a host search target to its location inside the
// sandbox, where repositoryRoot is mounted at config.SandboxWorkdir.
// Relative paths are taken relative to repositoryRoot. Targets outside the
// repository cannot be reached from the container and are rejected.
func ContainerPath(requestedPath string, repositoryRoot string) (string, error) {
	// Clean the path to resolve . and .. and remove redundant separators
	cleanPath := filepath.Clean(requestedPath)

	// Build absolute path
	var absPath string
	if filepath.IsAbs(cleanPath) {
		absPath = cleanPath
	} else {
		absPath = filepath.Join(repositoryRoot, cleanPath)
	}
	absPath = filepath.Clean(absPath)
	root := filepath.Clean(repositoryRoot)

	if absPath == root {
		return config.SandboxWorkdir, nil
	}
	if !strings.HasPrefix(absPath, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path is not within repository: %s", requestedPath)
	}

	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		return "", fmt.Errorf("path is not within repository: %s", requestedPath)
	}
	return path.Join(config.SandboxWorkdir, filepath.ToSlash(rel)), nil
}

// ContainerPaths maps every target with ContainerPath.
func ContainerPaths(requested []string, repositoryRoot string) ([]string, error) {
	out := make([]string, 0, len(requested))
	for _, p := range requested {
		mapped, err := ContainerPath(p, repositoryRoot)
		if err != nil {
			return nil, err
		}
		out = append(out, mapped)
	}
	return out, nil
}

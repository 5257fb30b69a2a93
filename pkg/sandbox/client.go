package sandbox

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"
)

// CheckDockerAvailability verifies Docker is installed and accessible
func CheckDockerAvailability(ctx context.Context) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("Docker not available: %w", err)
	}
	defer cli.Close()

	_, err = cli.Ping(ctx)
	if err != nil {
		return fmt.Errorf("Docker not available: %w", err)
	}

	return nil
}

// PullDockerImage ensures the sandbox image is available locally
func PullDockerImage(ctx context.Context, image string) error {
	if image == "" {
		return fmt.Errorf("container image cannot be empty")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("failed to create Docker client: %w", err)
	}
	defer cli.Close()

	// Check if image exists locally first
	_, _, err = cli.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return nil
	}

	log.Debug().Str("image", image).Msg("pulling image")
	reader, err := cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull Docker image: %w", err)
	}
	defer reader.Close()

	// Discard the pull progress
	_, err = io.Copy(io.Discard, reader)
	if err != nil {
		return fmt.Errorf("failed to pull Docker image: %w", err)
	}

	return nil
}

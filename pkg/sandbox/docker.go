package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

const containerWorkdir = "/workspace"

// CheckDocker verifies that the Docker daemon is available and responsive.
func CheckDocker() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "ps", "-q")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker is not available or not running: %w", err)
	}
	return nil
}

// DockerRunner runs each snippet in an ephemeral container with the scratch
// directory mounted at /workspace.
type DockerRunner struct {
	config Config
}

// NewDockerRunner creates a new docker runner
func NewDockerRunner(config Config) (*DockerRunner, error) {
	config.Backend = BackendDocker
	defaults := DefaultConfig()
	if config.Image == "" {
		config.Image = defaults.Image
	}
	if config.PidsLimit == 0 {
		config.PidsLimit = defaults.PidsLimit
	}
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &DockerRunner{config: config}, nil
}

// Backend returns BackendDocker.
func (d *DockerRunner) Backend() Backend {
	return BackendDocker
}

// Run executes the snippet inside a fresh container.
func (d *DockerRunner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if strings.TrimSpace(req.Code) == "" {
		return RunResult{}, ErrEmptyCode
	}

	dir, err := newScratchDir(req.Code)
	if err != nil {
		return RunResult{}, err
	}
	defer os.RemoveAll(dir)

	id, err := gonanoid.Generate("abcdefghijklmnopqrstuvwxyz0123456789", 12)
	if err != nil {
		return RunResult{}, fmt.Errorf("failed to generate container name: %w", err)
	}
	name := "reactor-" + id

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = d.config.Timeout
	}

	args := d.buildRunArgs(dir, name, req)
	result, err := runProcess(ctx, timeout, dir, "docker", args...)
	if err != nil {
		return RunResult{}, err
	}

	if result.TimedOut {
		// Killing the docker client leaves the container running.
		d.killContainer(name)
	}

	log.Debug().
		Str("backend", string(BackendDocker)).
		Str("container", name).
		Int("exit_code", result.ExitCode).
		Bool("timed_out", result.TimedOut).
		Dur("duration", result.Duration).
		Msg("Snippet executed")

	return result, nil
}

func (d *DockerRunner) buildRunArgs(hostDir, name string, req RunRequest) []string {
	image := firstNonEmpty(req.Image, d.config.Image)
	memory := firstNonEmpty(req.Memory, d.config.Memory)
	cpus := firstNonEmpty(req.CPUs, d.config.CPUs)

	args := []string{
		"run", "--rm",
		"--name", name,
		"--volume", fmt.Sprintf("%s:%s:rw", filepath.Clean(hostDir), containerWorkdir),
		"--workdir", containerWorkdir,
	}
	if memory != "" {
		args = append(args, "--memory", memory)
	}
	if cpus != "" {
		args = append(args, "--cpus", cpus)
	}
	if d.config.PidsLimit > 0 {
		args = append(args, "--pids-limit", strconv.Itoa(d.config.PidsLimit))
	}
	if !req.Network {
		args = append(args, "--network=none")
	}

	return append(args, image, "python", scriptName)
}

func (d *DockerRunner) killContainer(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := exec.CommandContext(ctx, "docker", "kill", name).Run(); err != nil {
		log.Warn().Err(err).Str("container", name).Msg("Failed to kill timed out container")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// ExecResult is the captured output of one command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs a command inside the sandbox.
type Executor interface {
	Exec(ctx context.Context, cmd []string) (ExecResult, error)
}

// DockerExecutor runs commands in an existing container through the Docker
// SDK.
type DockerExecutor struct {
	client    *client.Client
	container string
}

var _ Executor = (*DockerExecutor)(nil)

// NewDockerExecutor connects to the Docker daemon from the environment and
// checks that the target container exists.
func NewDockerExecutor(ctx context.Context, containerName string) (*DockerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client init failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}
	info, err := cli.ContainerInspect(ctx, containerName)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("sandbox container %q: %w", containerName, err)
	}
	if info.State == nil || !info.State.Running {
		cli.Close()
		return nil, fmt.Errorf("sandbox container %q is not running", containerName)
	}
	return &DockerExecutor{client: cli, container: info.ID}, nil
}

func (d *DockerExecutor) Exec(ctx context.Context, cmd []string) (ExecResult, error) {
	execResp, err := d.client.ContainerExecCreate(ctx, d.container, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec create failed: %w", err)
	}

	attachResp, err := d.client.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec attach failed: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader); err != nil {
		return ExecResult{}, fmt.Errorf("reading exec output: %w", err)
	}

	inspectResp, err := d.client.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec inspect failed: %w", err)
	}
	return ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspectResp.ExitCode,
	}, nil
}

// Close releases the Docker client.
func (d *DockerExecutor) Close() error {
	return d.client.Close()
}

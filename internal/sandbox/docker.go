package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

// DockerBackend runs execution units as Docker containers through the Engine API.
type DockerBackend struct {
	cli *client.Client
}

// NewDockerBackend connects to the Docker daemon. An empty host uses DOCKER_HOST and friends.
func NewDockerBackend(host string) (*DockerBackend, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &DockerBackend{cli: cli}, nil
}

// Close releases the client's connections.
func (d *DockerBackend) Close() error {
	return d.cli.Close()
}

func (d *DockerBackend) ImageTags(ctx context.Context) ([]string, error) {
	images, err := d.cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, err
	}
	var tags []string
	for _, img := range images {
		tags = append(tags, img.RepoTags...)
	}
	return tags, nil
}

func (d *DockerBackend) Create(ctx context.Context, spec UnitSpec) (string, error) {
	cfg := &container.Config{
		Image:           spec.Image,
		Cmd:             spec.Cmd,
		AttachStdout:    true,
		AttachStderr:    true,
		Tty:             false,
		OpenStdin:       false,
		NetworkDisabled: !spec.Network,
		Labels:          spec.Labels,
	}

	hostCfg := &container.HostConfig{
		AutoRemove: spec.AutoRemove,
		Resources: container.Resources{
			Memory:   spec.Memory,
			NanoCPUs: spec.NanoCPUs,
		},
	}
	if !spec.Network {
		hostCfg.NetworkMode = "none"
	}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (d *DockerBackend) Attach(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := d.cli.ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return nil, err
	}
	return &attachedStream{Reader: resp.Reader, close: resp.Close}, nil
}

func (d *DockerBackend) Wait(ctx context.Context, id string) <-chan ExitStatus {
	out := make(chan ExitStatus, 1)
	statusCh, errCh := d.cli.ContainerWait(ctx, id, container.WaitConditionNextExit)

	go func() {
		select {
		case st := <-statusCh:
			if st.Error != nil && st.Error.Message != "" {
				out <- ExitStatus{Code: st.StatusCode, Err: errors.New(st.Error.Message)}
				return
			}
			out <- ExitStatus{Code: st.StatusCode}
		case err := <-errCh:
			out <- ExitStatus{Code: -1, Err: err}
		}
	}()
	return out
}

func (d *DockerBackend) Start(ctx context.Context, id string) error {
	return d.cli.ContainerStart(ctx, id, container.StartOptions{})
}

func (d *DockerBackend) Stop(ctx context.Context, id string) error {
	timeout := 0
	err := d.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
	if errdefs.IsNotFound(err) {
		return nil
	}
	return err
}

func (d *DockerBackend) Remove(ctx context.Context, id string) error {
	err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	// AutoRemove may have beaten us to it, or still be in progress.
	if errdefs.IsNotFound(err) || errdefs.IsConflict(err) {
		return nil
	}
	return err
}

// attachedStream adapts a hijacked connection to io.ReadCloser.
type attachedStream struct {
	io.Reader
	close func()
}

func (s *attachedStream) Close() error {
	s.close()
	return nil
}

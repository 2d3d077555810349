// Package browser hosts headless Chrome instances in Docker containers
// for the control plane. Each open session gets its own container with
// the DevTools port published on an ephemeral host port.
package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"go.uber.org/zap"
)

const devtoolsPort = "9222/tcp"

// Instance is one running browser container.
type Instance struct {
	ContainerID string
	SessionID   string
	DebugAddr   string // host:port of the published DevTools endpoint
	Port        string
	UserDataDir string
}

// LaunchOptions parameterize one container launch.
type LaunchOptions struct {
	SessionID   string
	UserDataDir string
	ProxyServer string // forwarded as --proxy-server when set
}

// Pool launches and stops browser containers for one kernel image.
type Pool struct {
	client *client.Client
	kernel string
	image  string
	log    *zap.SugaredLogger
}

// NewPool creates a pool bound to a specific browser kernel image.
func NewPool(kernel, imageRef string, log *zap.SugaredLogger) (*Pool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Pool{
		client: cli,
		kernel: kernel,
		image:  imageRef,
		log:    log,
	}, nil
}

// Launch starts a browser container and blocks until its DevTools
// endpoint answers /json/version.
func (p *Pool) Launch(ctx context.Context, opts LaunchOptions) (*Instance, error) {
	userDataDir := opts.UserDataDir
	if userDataDir == "" {
		userDataDir = filepath.Join(os.TempDir(), "orbiter-profiles", opts.SessionID)
		if err := os.MkdirAll(userDataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create user data directory: %w", err)
		}
	}

	cmd := []string{
		"--remote-debugging-address=0.0.0.0",
		"--remote-debugging-port=9222",
		"--disable-gpu",
		"--user-data-dir=/data",
	}
	if opts.ProxyServer != "" {
		cmd = append(cmd, "--proxy-server="+opts.ProxyServer)
	}

	containerConfig := &container.Config{
		Image: p.image,
		Cmd:   cmd,
		Labels: map[string]string{
			"session-id": opts.SessionID,
			"kernel":     p.kernel,
			"managed-by": "orbiter-controld",
		},
		ExposedPorts: nat.PortSet{
			devtoolsPort: struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			devtoolsPort: []nat.PortBinding{
				{
					HostIP:   "0.0.0.0",
					HostPort: "0",
				},
			},
		},
		AutoRemove: false,
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: userDataDir,
				Target: "/data",
			},
		},
	}

	resp, err := p.client.ContainerCreate(
		ctx,
		containerConfig,
		hostConfig,
		nil,
		nil,
		fmt.Sprintf("orbiter-%s", shortID(opts.SessionID)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	inspect, err := p.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}

	bindings := inspect.NetworkSettings.Ports[devtoolsPort]
	if len(bindings) == 0 {
		return nil, fmt.Errorf("container %s has no published devtools port", resp.ID)
	}
	port := bindings[0].HostPort

	if err := p.waitForBrowserReady(port); err != nil {
		return nil, fmt.Errorf("browser failed to become ready: %w", err)
	}

	p.log.Infow("browser container ready", "session", opts.SessionID, "kernel", p.kernel, "port", port)

	return &Instance{
		ContainerID: resp.ID,
		SessionID:   opts.SessionID,
		DebugAddr:   "127.0.0.1:" + port,
		Port:        port,
		UserDataDir: userDataDir,
	}, nil
}

// Stop halts and removes a browser container.
func (p *Pool) Stop(ctx context.Context, containerID string) error {
	timeout := 10
	stopOptions := container.StopOptions{
		Timeout: &timeout,
	}

	if err := p.client.ContainerStop(ctx, containerID, stopOptions); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}

	if err := p.client.ContainerRemove(ctx, containerID, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}

	return nil
}

// IsHealthy reports whether the container is still running.
func (p *Pool) IsHealthy(ctx context.Context, containerID string) bool {
	inspect, err := p.client.ContainerInspect(ctx, containerID)
	if err != nil {
		return false
	}
	return inspect.State.Running
}

// EnsureImage pulls the kernel image if it is not present locally.
func (p *Pool) EnsureImage(ctx context.Context) error {
	images, err := p.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == p.image {
				return nil
			}
		}
	}

	p.log.Infow("pulling browser image", "image", p.image)
	reader, err := p.client.ImagePull(ctx, p.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", p.image, err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

// Close releases the docker client.
func (p *Pool) Close() error {
	return p.client.Close()
}

// waitForBrowserReady polls the DevTools /json/version endpoint until
// the browser answers.
func (p *Pool) waitForBrowserReady(port string) error {
	url := fmt.Sprintf("http://127.0.0.1:%s/json/version", port)
	maxRetries := 20 // 10 seconds total (20 * 500ms)

	for i := 0; i < maxRetries; i++ {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				// Give the WebSocket endpoint a moment to settle.
				time.Sleep(500 * time.Millisecond)
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}

	return fmt.Errorf("browser did not become ready after %d retries", maxRetries)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

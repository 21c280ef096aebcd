package runtime

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/sinas-io/burrow/pkg/types"
)

const (
	// DefaultNamespace is the containerd namespace for Burrow
	DefaultNamespace = "burrow"

	// DefaultSocketPath is the default containerd socket
	DefaultSocketPath = "/run/containerd/containerd.sock"

	// restartStatusLabel asks containerd's restart plugin to bring a
	// crashed worker back up. The pool does not re-register restarted
	// containers; bookkeeping recovery relies on Initialize being re-run.
	restartStatusLabel = "containerd.io/restart.status"

	// roleLabel marks containers owned by the Burrow pool
	roleLabel = "io.burrow.role"
)

// Capabilities kept by worker containers; everything else is dropped.
// These are the minimum for basic user/group operations at process start.
var workerCapabilities = []string{"CAP_CHOWN", "CAP_SETUID", "CAP_SETGID"}

// ContainerSummary describes a container found during discovery
type ContainerSummary struct {
	ID        string
	CreatedAt time.Time
}

// ContainerdRuntime implements worker container management using containerd
type ContainerdRuntime struct {
	client    *containerd.Client
	namespace string
}

// NewContainerdRuntime creates a new containerd runtime client
func NewContainerdRuntime(socketPath, namespace string) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &ContainerdRuntime{
		client:    client,
		namespace: namespace,
	}, nil
}

// Close closes the containerd client connection
func (r *ContainerdRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// PullImage pulls the worker image from a registry
func (r *ContainerdRuntime) PullImage(ctx context.Context, imageRef string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	_, err := r.client.Pull(ctx, imageRef, containerd.WithPullUnpack)
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageRef, err)
	}

	return nil
}

// CreateWorker creates a locked-down worker container.
//
// Every worker gets the same security policy: a fixed memory ceiling, one
// CPU core, all capabilities dropped except workerCapabilities,
// no-new-privileges, a read-only root filesystem, and a size-bounded tmpfs
// as the only writable path. The tmpfs also carries the execution protocol
// files, so nothing an execution writes survives a worker restart.
func (r *ContainerdRuntime) CreateWorker(ctx context.Context, name, imageRef string, res types.WorkerResources, env []string) (string, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	image, err := r.client.GetImage(ctx, imageRef)
	if err != nil {
		return "", fmt.Errorf("failed to get image %s: %w", imageRef, err)
	}

	// One full CPU core per worker, expressed as CFS quota over the
	// standard 100ms period.
	period := uint64(100000)
	quota := res.CPUCores * 100000

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(env),
		oci.WithMemoryLimit(uint64(res.MemoryBytes)),
		oci.WithCPUCFS(quota, period),
		oci.WithCapabilities(workerCapabilities),
		oci.WithNoNewPrivileges,
		oci.WithRootFSReadonly(),
		oci.WithMounts([]specs.Mount{
			{
				Destination: "/tmp",
				Type:        "tmpfs",
				Source:      "tmpfs",
				Options: []string{
					"nosuid", "nodev",
					fmt.Sprintf("size=%d", res.TmpfsBytes),
					"mode=1777",
				},
			},
		}),
	}

	container, err := r.client.NewContainer(
		ctx,
		name,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(name+"-snapshot", image),
		containerd.WithNewSpec(opts...),
		containerd.WithContainerLabels(map[string]string{
			roleLabel:          "worker",
			restartStatusLabel: "running",
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	return container.ID(), nil
}

// StartContainer starts a container's task
func (r *ContainerdRuntime) StartContainer(ctx context.Context, containerID string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return fmt.Errorf("failed to load container %s: %w", containerID, err)
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task: %w", err)
	}

	return nil
}

// StopContainer stops a running container, SIGTERM first then SIGKILL
func (r *ContainerdRuntime) StopContainer(ctx context.Context, containerID string, timeout time.Duration) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return fmt.Errorf("failed to load container %s: %w", containerID, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		// Task might not exist (container not running)
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to kill task: %w", err)
	}

	statusC, err := task.Wait(stopCtx)
	if err != nil {
		return fmt.Errorf("failed to wait for task: %w", err)
	}

	select {
	case <-statusC:
		// Task exited
	case <-stopCtx.Done():
		// Timeout - force kill
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil {
			return fmt.Errorf("failed to force kill task: %w", err)
		}
	}

	if _, err := task.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}

// DeleteContainer removes a container and its snapshot
func (r *ContainerdRuntime) DeleteContainer(ctx context.Context, containerID string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		// Container might not exist
		return nil
	}

	if err := r.StopContainer(ctx, containerID, 10*time.Second); err != nil {
		// Log but continue with deletion
		fmt.Printf("Warning: failed to stop container before delete: %v\n", err)
	}

	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("failed to delete container: %w", err)
	}

	return nil
}

// ContainerStatus returns the observed worker status for a container.
// A container that cannot be loaded is reported as missing.
func (r *ContainerdRuntime) ContainerStatus(ctx context.Context, containerID string) (types.WorkerStatus, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return types.WorkerMissing, nil
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		// No task means container is not running
		return types.WorkerPending, nil
	}

	status, err := task.Status(ctx)
	if err != nil {
		return types.WorkerMissing, fmt.Errorf("failed to get task status: %w", err)
	}

	switch status.Status {
	case containerd.Running, containerd.Paused:
		return types.WorkerRunning, nil
	case containerd.Stopped:
		return types.WorkerStopped, nil
	default:
		return types.WorkerPending, nil
	}
}

// Exists reports whether the container reference still resolves
func (r *ContainerdRuntime) Exists(ctx context.Context, containerID string) bool {
	ctx = namespaces.WithNamespace(ctx, r.namespace)
	_, err := r.client.LoadContainer(ctx, containerID)
	return err == nil
}

// ListWorkers returns containers whose id carries the pool's name prefix,
// used to rediscover workers after a host-process restart
func (r *ContainerdRuntime) ListWorkers(ctx context.Context, prefix string) ([]ContainerSummary, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	containers, err := r.client.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	summaries := make([]ContainerSummary, 0, len(containers))
	for _, c := range containers {
		if !strings.HasPrefix(c.ID(), prefix) {
			continue
		}
		info, err := c.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get container info for %s: %w", c.ID(), err)
		}
		summaries = append(summaries, ContainerSummary{
			ID:        c.ID(),
			CreatedAt: info.CreatedAt,
		})
	}

	return summaries, nil
}

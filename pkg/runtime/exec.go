package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/google/uuid"

	"github.com/sinas-io/burrow/pkg/protocol"
)

// Files returns a protocol.Transport that reads and writes files inside the
// given container via exec'd shell utilities. Workers expose no network
// listener, so this is the only host-side channel into them.
func (r *ContainerdRuntime) Files(containerID string) protocol.Transport {
	return &containerFiles{runtime: r, containerID: containerID}
}

type containerFiles struct {
	runtime     *ContainerdRuntime
	containerID string
}

func (f *containerFiles) WriteFile(ctx context.Context, path string, data []byte) error {
	// Stream through stdin rather than interpolating content into the
	// command line; request payloads carry arbitrary user code.
	code, _, err := f.runtime.exec(ctx, f.containerID,
		[]string{"/bin/sh", "-c", "cat > " + shellQuote(path)},
		bytes.NewReader(data))
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("write %s in %s: exit status %d", path, f.containerID, code)
	}
	return nil
}

func (f *containerFiles) ReadFile(ctx context.Context, path string) ([]byte, error) {
	var stdout bytes.Buffer
	code, stderr, err := f.runtime.execCapture(ctx, f.containerID,
		[]string{"cat", path}, nil, &stdout)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("read %s in %s: exit status %d: %s", path, f.containerID, code, stderr)
	}
	return stdout.Bytes(), nil
}

func (f *containerFiles) RemoveFile(ctx context.Context, path string) error {
	code, _, err := f.runtime.exec(ctx, f.containerID, []string{"rm", "-f", path}, nil)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("remove %s in %s: exit status %d", path, f.containerID, code)
	}
	return nil
}

func (f *containerFiles) FileExists(ctx context.Context, path string) (bool, error) {
	code, _, err := f.runtime.exec(ctx, f.containerID, []string{"test", "-e", path}, nil)
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

// exec runs a command inside a running container and returns its exit code
func (r *ContainerdRuntime) exec(ctx context.Context, containerID string, args []string, stdin io.Reader) (uint32, string, error) {
	return r.execCapture(ctx, containerID, args, stdin, io.Discard)
}

func (r *ContainerdRuntime) execCapture(ctx context.Context, containerID string, args []string, stdin io.Reader, stdout io.Writer) (uint32, string, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return 0, "", fmt.Errorf("failed to load container %s: %w", containerID, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to get task for %s: %w", containerID, err)
	}

	spec, err := container.Spec(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("failed to get spec for %s: %w", containerID, err)
	}

	pspec := spec.Process
	pspec.Args = args

	if stdin == nil {
		stdin = bytes.NewReader(nil)
	}
	var stderr bytes.Buffer

	execID := "burrow-exec-" + uuid.NewString()[:8]
	process, err := task.Exec(ctx, execID, pspec,
		cio.NewCreator(cio.WithStreams(stdin, stdout, &stderr)))
	if err != nil {
		return 0, "", fmt.Errorf("failed to exec in %s: %w", containerID, err)
	}
	defer process.Delete(ctx)

	statusC, err := process.Wait(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("failed to wait for exec in %s: %w", containerID, err)
	}

	if err := process.Start(ctx); err != nil {
		return 0, "", fmt.Errorf("failed to start exec in %s: %w", containerID, err)
	}

	select {
	case status := <-statusC:
		code, _, err := status.Result()
		if err != nil {
			return 0, "", fmt.Errorf("exec in %s failed: %w", containerID, err)
		}
		return code, stderr.String(), nil
	case <-ctx.Done():
		return 0, "", ctx.Err()
	}
}

// shellQuote wraps a path in single quotes for use inside sh -c
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

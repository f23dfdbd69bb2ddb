package probe

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// DockerProber probes from inside a container standing in for an uplink's
// isolation namespace, for deployments where namespaces are modelled as
// containers rather than raw "ip netns" namespaces.
type DockerProber struct {
	Client      *client.Client
	ContainerID string
}

// NewDockerProber resolves a container by name and returns a prober bound to it.
func NewDockerProber(ctx context.Context, cli *client.Client, containerName string) (*DockerProber, error) {
	c, err := cli.ContainerInspect(ctx, containerName)
	if err != nil {
		return nil, err
	}
	return &DockerProber{Client: cli, ContainerID: c.ID}, nil
}

// Probe execs ping(8) inside the bound container and parses the RTT from its output.
func (p *DockerProber) Probe(ctx context.Context, target string) (Result, error) {
	execCfg := container.ExecOptions{
		Cmd:          []string{"ping", "-c1", "-W1", target},
		AttachStdout: true,
		AttachStderr: true,
	}
	created, err := p.Client.ContainerExecCreate(ctx, p.ContainerID, execCfg)
	if err != nil {
		return Result{}, err
	}
	attach, err := p.Client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return Result{}, err
	}
	defer attach.Close()

	out, err := io.ReadAll(attach.Reader)
	if err != nil {
		return Result{Success: false}, nil //nolint:nilerr // treat read failure as a missed probe
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		if m := timeRE.FindStringSubmatch(scanner.Text()); m != nil {
			rtt, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			return Result{RTTMs: rtt, Success: true}, nil
		}
	}
	return Result{Success: false}, nil
}

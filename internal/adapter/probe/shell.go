package probe

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

var timeRE = regexp.MustCompile(`time[=<]([0-9.]+)`)

// ShellProber probes by shelling out to ping(8), optionally inside a network
// namespace or bound to a specific physical interface.
type ShellProber struct {
	// Namespace, when set, runs the probe via "ip netns exec <namespace> ping ...".
	Namespace string
	// Interface, when set, binds ping to a specific interface via "-I".
	Interface string
}

// Probe issues a single ICMP echo with a short deadline and parses the RTT.
func (p ShellProber) Probe(ctx context.Context, target string) (Result, error) {
	args := p.buildArgs(target)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return Result{Success: false}, nil //nolint:nilerr // a failed probe is data, not an adapter error
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if m := timeRE.FindStringSubmatch(line); m != nil {
			rtt, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			return Result{RTTMs: rtt, Success: true}, nil
		}
	}
	return Result{Success: false}, nil
}

func (p ShellProber) buildArgs(target string) []string {
	ping := []string{"ping", "-c1", "-W1"}
	if p.Interface != "" {
		ping = append(ping, "-I", p.Interface)
	}
	ping = append(ping, target)

	if p.Namespace == "" {
		return ping
	}
	return append([]string{"ip", "netns", "exec", p.Namespace}, ping...)
}

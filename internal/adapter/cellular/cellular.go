// Package cellular parses the cellular-monitor helper's output into LTE
// signal metrics, rate-limited so the helper is never invoked more than
// once every 5 seconds per uplink.
package cellular

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pathsteer/pathsteerd/internal/model"
)

// MinInterval is the floor on how often the helper may be invoked.
const MinInterval = 5 * time.Second

// Poller invokes the cellular monitor helper and parses its SINR/RSRP blocks.
type Poller struct {
	HelperPath string
	limiter    *rate.Limiter
}

// NewPoller builds a rate-limited cellular poller for one uplink.
func NewPoller(helperPath string) *Poller {
	return &Poller{
		HelperPath: helperPath,
		limiter:    rate.NewLimiter(rate.Every(MinInterval), 1),
	}
}

// Poll runs the helper if the rate limiter allows it this tick, parses its
// output, and merges any fields it finds into cellular. A throttled tick
// (limiter denies) is a no-op, not an error: the prior reading stands.
func (p *Poller) Poll(ctx context.Context, deviceIndex int, logicalName string, cellular *model.Cellular) error {
	if !p.limiter.Allow() {
		return nil
	}

	cmd := exec.CommandContext(ctx, p.HelperPath, strconv.Itoa(deviceIndex), logicalName)
	out, err := cmd.Output()
	if err != nil {
		cellular.Connected = false
		return nil //nolint:nilerr // a helper failure means missing data, not a fatal error
	}

	cellular.Connected = true
	cellular.TimestampUs = time.Now().UnixMicro()
	parse(string(out), cellular)
	return nil
}

func parse(out string, c *model.Cellular) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "SINR:"):
			c.SINR = parseFloat(line, "SINR:")
		case strings.HasPrefix(line, "RSRP:"):
			c.RSRP = parseFloat(line, "RSRP:")
		case strings.HasPrefix(line, "RSRQ:"):
			c.RSRQ = parseFloat(line, "RSRQ:")
		case strings.HasPrefix(line, "RSSI:"):
			c.RSSI = parseFloat(line, "RSSI:")
		case strings.HasPrefix(line, "CARRIER:"):
			c.Carrier = strings.TrimSpace(strings.TrimPrefix(line, "CARRIER:"))
		case strings.HasPrefix(line, "CELLID:"):
			c.CellID = strings.TrimSpace(strings.TrimPrefix(line, "CELLID:"))
		case strings.HasPrefix(line, "TAC:"):
			c.TAC = strings.TrimSpace(strings.TrimPrefix(line, "TAC:"))
		case strings.HasPrefix(line, "BAND:"):
			c.Band = strings.TrimSpace(strings.TrimPrefix(line, "BAND:"))
		}
	}
}

func parseFloat(line, prefix string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, prefix)), 64)
	if err != nil {
		return 0
	}
	return v
}

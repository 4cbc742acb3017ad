package wan

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/netdash/netdash-core/internal/registry"
)

// Logger defines the logging interface used by the Controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// runner executes a command and returns its combined output. Extracted so
// tests can record invocations without a real firewall.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Controller blocks and unblocks WAN access per client MAC address by
// managing DROP rules in a firewall chain.
//
// Both operations are idempotent: the rule is checked before insertion
// or deletion, so repeated calls converge and never stack duplicate
// rules. Failures are soft: callers log and continue; a missing
// firewall tool must never take the dashboard down.
type Controller struct {
	tool    string
	chain   string
	timeout time.Duration
	enabled bool
	run     runner
	logger  Logger

	// mu serialises rule mutations so check-then-insert pairs from
	// concurrent status writes cannot interleave.
	mu sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithTimeout bounds each firewall invocation.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Disabled returns a controller whose operations are all no-ops. Used
// for off-device development.
func Disabled() *Controller {
	return &Controller{enabled: false, logger: noopLogger{}}
}

// New creates a Controller driving the given firewall tool and chain.
func New(tool, chain string, opts ...Option) *Controller {
	c := &Controller{
		tool:    tool,
		chain:   chain,
		timeout: 5 * time.Second,
		enabled: true,
		run:     execRunner,
		logger:  noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ruleArgs builds the match portion of the DROP rule for a MAC.
// iptables prints MACs in uppercase, so the rule uses that form to make
// -C checks match.
func (c *Controller) ruleArgs(mac string) []string {
	return []string{c.chain, "-m", "mac", "--mac-source", strings.ToUpper(mac), "-j", "DROP"}
}

// hasRule reports whether the DROP rule for mac is present.
func (c *Controller) hasRule(ctx context.Context, mac string) bool {
	args := append([]string{"-C"}, c.ruleArgs(mac)...)
	_, err := c.run(ctx, c.tool, args...)
	return err == nil
}

// Block denies WAN access for mac. Idempotent.
func (c *Controller) Block(ctx context.Context, mac string) error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.hasRule(runCtx, mac) {
		c.logger.Debug("wan block already in place", "mac", mac)
		return nil
	}

	args := append([]string{"-I"}, c.ruleArgs(mac)...)
	if out, err := c.run(runCtx, c.tool, args...); err != nil {
		return fmt.Errorf("blocking %s: %w (output: %s)", mac, err, strings.TrimSpace(string(out)))
	}

	c.logger.Info("wan access blocked", "mac", mac)
	return nil
}

// Unblock restores WAN access for mac. Idempotent.
func (c *Controller) Unblock(ctx context.Context, mac string) error {
	if !c.enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if !c.hasRule(runCtx, mac) {
		c.logger.Debug("wan block not present", "mac", mac)
		return nil
	}

	args := append([]string{"-D"}, c.ruleArgs(mac)...)
	if out, err := c.run(runCtx, c.tool, args...); err != nil {
		return fmt.Errorf("unblocking %s: %w (output: %s)", mac, err, strings.TrimSpace(string(out)))
	}

	c.logger.Info("wan access restored", "mac", mac)
	return nil
}

// Enforce applies the WAN rule implied by a device status: Local-only and
// Disconnected devices are blocked, Online and Cloud-Connected devices
// are unblocked. Errors are logged, never propagated; enforcement is
// best-effort.
func (c *Controller) Enforce(ctx context.Context, mac string, status registry.Status) {
	var err error
	switch status {
	case registry.StatusLocalOnly, registry.StatusDisconnected:
		err = c.Block(ctx, mac)
	case registry.StatusOnline, registry.StatusCloud:
		err = c.Unblock(ctx, mac)
	}
	if err != nil {
		c.logger.Warn("wan enforcement failed", "mac", mac, "status", string(status), "error", err)
	}
}

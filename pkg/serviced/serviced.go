// Package serviced adapts the Command Executor into a systemd-backed
// snapshot.ServiceStateProvider, answering "what is service state" with
// systemctl's enabled/active flags.
package serviced

import (
	"context"
	"strings"

	"github.com/archmcp/mcpd/pkg/executor"
	"github.com/archmcp/mcpd/pkg/snapshot"
)

// Provider implements snapshot.ServiceStateProvider by shelling out to
// systemctl through the shared Command Executor.
type Provider struct {
	exec *executor.Executor
}

// New builds a Provider over exec. systemctl must be present in exec's
// allowlist for Capture/Apply to succeed.
func New(exec *executor.Executor) *Provider {
	return &Provider{exec: exec}
}

// Capture queries is-enabled/is-active for each named service.
func (p *Provider) Capture(ctx context.Context, names []string) ([]snapshot.ServiceEntry, error) {
	entries := make([]snapshot.ServiceEntry, 0, len(names))
	for _, name := range names {
		enabled := p.queryBool(ctx, "is-enabled", name)
		active := p.queryBool(ctx, "is-active", name)
		entries = append(entries, snapshot.ServiceEntry{
			Name:             name,
			EnabledAtCapture: enabled,
			ActiveAtCapture:  active,
		})
	}
	return entries, nil
}

func (p *Provider) queryBool(ctx context.Context, subcommand, name string) bool {
	result, err := p.exec.Execute(ctx, "systemctl", []string{subcommand, name}, executor.Options{CaptureOutput: true, DeadlineMillis: 5000})
	if err != nil {
		return false
	}
	return result.Success || strings.TrimSpace(result.Stdout) == "enabled" || strings.TrimSpace(result.Stdout) == "active"
}

// Apply converges the named service's enabled/active state to match entry,
// issuing enable/disable and start/stop through an elevated systemctl
// invocation.
func (p *Provider) Apply(ctx context.Context, entry snapshot.ServiceEntry) error {
	enableArg := "disable"
	if entry.EnabledAtCapture {
		enableArg = "enable"
	}
	if _, err := p.exec.ExecuteWithElevation(ctx, "systemctl", []string{enableArg, entry.Name}, executor.Options{CaptureOutput: true, DeadlineMillis: 5000}); err != nil {
		return err
	}

	activeArg := "stop"
	if entry.ActiveAtCapture {
		activeArg = "start"
	}
	if _, err := p.exec.ExecuteWithElevation(ctx, "systemctl", []string{activeArg, entry.Name}, executor.Options{CaptureOutput: true, DeadlineMillis: 5000}); err != nil {
		return err
	}
	return nil
}

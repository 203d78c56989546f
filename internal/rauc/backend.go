// Package rauc is a concrete Updater Backend (U): it drives the rauc
// CLI binary with exec.Command, the pack's own way of reaching a
// system tool it has no client library for (evalgo-org-eve's
// executor.CommandExecutor and common.ShellExecute). There is no
// D-Bus client anywhere in the example pack to ground a
// github.com/godbus/dbus-based implementation on, so this shells out
// to `rauc` directly instead of talking to its D-Bus API.
package rauc

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/agsys/edgehog-runtime/internal/ota"
)

// Backend implements ota.Backend against the rauc command-line tool.
type Backend struct {
	binary string

	install   *installRun
	lastError string
}

// New returns a Backend that invokes "rauc" from $PATH.
func New() *Backend {
	return &Backend{binary: "rauc"}
}

func (b *Backend) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, b.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("rauc: %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}

// kv parses rauc's "key=value" line-oriented output into a map.
func kv(out string) map[string]string {
	m := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		m[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return m
}

func (b *Backend) BundleInfo(ctx context.Context, path string) (ota.BundleInfo, error) {
	out, err := b.run(ctx, "info", "--output-format=shell", path)
	if err != nil {
		return ota.BundleInfo{}, err
	}
	fields := kv(out)
	return ota.BundleInfo{
		Compatible: strings.Trim(fields["RAUC_BUNDLE_COMPATIBLE"], `"`),
		Version:    strings.Trim(fields["RAUC_BUNDLE_VERSION"], `"`),
	}, nil
}

func (b *Backend) SystemCompatible(ctx context.Context) (string, error) {
	out, err := b.run(ctx, "status", "--output-format=shell")
	if err != nil {
		return "", err
	}
	return strings.Trim(kv(out)["RAUC_SYSTEM_COMPATIBLE"], `"`), nil
}

func (b *Backend) BootSlot(ctx context.Context) (string, error) {
	out, err := b.run(ctx, "status", "--output-format=shell")
	if err != nil {
		return "", err
	}
	return strings.Trim(kv(out)["RAUC_SYSTEM_BOOTED_BOOTNAME"], `"`), nil
}

// InstallBundle starts "rauc install" in the background; its progress
// is observed through ReceiveCompleted, since the CLI's install
// command blocks for the whole install and streams percent lines on
// stdout.
func (b *Backend) InstallBundle(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, b.binary, "install", path)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("rauc: install: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("rauc: install: %w", err)
	}

	b.install = &installRun{cmd: cmd, stdout: stdout}
	return nil
}

type installRun struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// ReceiveCompleted streams install progress parsed from rauc's
// "NN% message" stdout lines, closing the channel once the process
// exits.
func (b *Backend) ReceiveCompleted(ctx context.Context) (<-chan ota.DeployStatus, error) {
	if b.install == nil {
		ch := make(chan ota.DeployStatus)
		close(ch)
		return ch, nil
	}
	run := b.install

	ch := make(chan ota.DeployStatus, 8)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(run.stdout)
		for scanner.Scan() {
			line := scanner.Text()
			pct, msg, ok := parseProgressLine(line)
			if !ok {
				continue
			}
			ch <- ota.DeployStatus{Kind: ota.DeployProgressKind, Percentage: pct, Message: msg}
		}

		err := run.cmd.Wait()
		signal := 0
		if err != nil {
			signal = 1
			b.lastError = err.Error()
		}
		ch <- ota.DeployStatus{Kind: ota.DeployCompletedKind, Signal: signal}
	}()
	return ch, nil
}

func parseProgressLine(line string) (int, string, bool) {
	line = strings.TrimSpace(line)
	pctStr, rest, ok := strings.Cut(line, "%")
	if !ok {
		return 0, "", false
	}
	pct, err := strconv.Atoi(strings.TrimSpace(pctStr))
	if err != nil {
		return 0, "", false
	}
	return pct, strings.TrimSpace(rest), true
}

func (b *Backend) LastError(ctx context.Context) (string, error) {
	return b.lastError, nil
}

func (b *Backend) GetPrimary(ctx context.Context) (string, error) {
	out, err := b.run(ctx, "status", "--output-format=shell")
	if err != nil {
		return "", err
	}
	return strings.Trim(kv(out)["RAUC_SYSTEM_PRIMARY"], `"`), nil
}

func (b *Backend) Mark(ctx context.Context, state, slot string) error {
	_, err := b.run(ctx, "status", "mark-"+state, slot)
	return err
}

func (b *Backend) Reboot(ctx context.Context) error {
	if out, err := exec.CommandContext(ctx, "systemctl", "reboot").CombinedOutput(); err != nil {
		return fmt.Errorf("rauc: reboot: %w: %s", err, out)
	}
	return nil
}

// Package nmcli implements pkg.NetworkManager by shelling out to the
// NetworkManager command line client. All terse-output parsing lives here;
// callers only ever see typed values.
package nmcli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hwaldner/autowifi/pkg"
	"github.com/hwaldner/autowifi/pkg/logx"
)

const (
	typeWifi = "802-11-wireless"

	// Query calls get a short leash; activation gets the configured
	// connect timeout instead.
	defaultQueryTimeout = 15 * time.Second
)

// Runner executes an external command and returns its stdout. Tests swap
// in a scripted implementation.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := strings.TrimSpace(stdout.String())
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return out, fmt.Errorf("%s %s: %s: %w", name, strings.Join(args, " "), msg, err)
		}
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

var _ pkg.NetworkManager = (*Client)(nil)

// Client talks to NetworkManager through nmcli.
type Client struct {
	runner         Runner
	logger         *logx.Logger
	queryTimeout   time.Duration
	connectTimeout time.Duration
	dryRun         bool
}

// New creates a client using the real nmcli binary.
func New(logger *logx.Logger, connectTimeout time.Duration) *Client {
	return NewWithRunner(execRunner{}, logger, connectTimeout)
}

// NewWithRunner creates a client with a custom command runner.
func NewWithRunner(runner Runner, logger *logx.Logger, connectTimeout time.Duration) *Client {
	return &Client{
		runner:         runner,
		logger:         logger,
		queryTimeout:   defaultQueryTimeout,
		connectTimeout: connectTimeout,
	}
}

// SetDryRun makes all mutating calls log and return success without
// touching the system. Queries still run.
func (c *Client) SetDryRun(dryRun bool) {
	c.dryRun = dryRun
}

// Available reports whether the nmcli binary can be found.
func Available() error {
	if _, err := exec.LookPath("nmcli"); err != nil {
		return fmt.Errorf("nmcli not found in PATH: %w", err)
	}
	return nil
}

func (c *Client) query(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()
	c.logger.Debug("nmcli query", "args", strings.Join(args, " "))
	return c.runner.Run(ctx, "nmcli", args...)
}

func (c *Client) mutate(ctx context.Context, timeout time.Duration, args ...string) error {
	if c.dryRun {
		c.logger.Info("DRY RUN: nmcli", "args", strings.Join(args, " "))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	c.logger.Debug("nmcli mutate", "args", strings.Join(args, " "))
	_, err := c.runner.Run(ctx, "nmcli", args...)
	return err
}

// ListWifiConnections returns saved wifi-type profiles in the manager's
// reported order. Mode and SSID are resolved per profile by
// WifiProfileDetails.
func (c *Client) ListWifiConnections(ctx context.Context) ([]pkg.ConnectionProfile, error) {
	out, err := c.query(ctx, "-t", "-f", "NAME,TYPE,AUTOCONNECT-PRIORITY,DEVICE", "connection", "show")
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	var profiles []pkg.ConnectionProfile
	for _, line := range splitLines(out) {
		fields := SplitTerse(line)
		if len(fields) < 3 || fields[1] != typeWifi {
			continue
		}
		priority, _ := strconv.Atoi(fields[2])
		profile := pkg.ConnectionProfile{
			Name:     fields[0],
			Priority: priority,
		}
		if len(fields) > 3 && fields[3] != "" && fields[3] != "--" {
			profile.Device = fields[3]
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// WifiProfileDetails resolves the wireless mode and SSID of one profile.
func (c *Client) WifiProfileDetails(ctx context.Context, name string) (pkg.Mode, string, error) {
	out, err := c.query(ctx, "-t", "-f", "802-11-wireless.mode,802-11-wireless.ssid",
		"connection", "show", name)
	if err != nil {
		return pkg.ModeUnknown, "", fmt.Errorf("failed to show connection %q: %w", name, err)
	}

	mode := pkg.ModeUnknown
	ssid := ""
	for _, line := range splitLines(out) {
		fields := SplitTerse(line)
		if len(fields) != 2 {
			continue
		}
		switch fields[0] {
		case "802-11-wireless.mode":
			switch fields[1] {
			case "ap":
				mode = pkg.ModeAP
			case "infrastructure", "":
				// NetworkManager leaves the mode unset on plain
				// client profiles.
				mode = pkg.ModeClient
			default:
				mode = pkg.Mode(fields[1])
			}
		case "802-11-wireless.ssid":
			ssid = fields[1]
		}
	}
	if mode == pkg.ModeUnknown {
		return pkg.ModeUnknown, "", fmt.Errorf("no wireless mode reported for %q", name)
	}
	return mode, ssid, nil
}

// ActiveConnection returns the connection active on the device, "" if none.
func (c *Client) ActiveConnection(ctx context.Context, iface string) (string, error) {
	out, err := c.query(ctx, "-t", "-f", "NAME,DEVICE", "connection", "show", "--active")
	if err != nil {
		return "", fmt.Errorf("failed to list active connections: %w", err)
	}
	for _, line := range splitLines(out) {
		fields := SplitTerse(line)
		if len(fields) == 2 && fields[1] == iface {
			return fields[0], nil
		}
	}
	return "", nil
}

// ConnectionUp activates a profile under the connect timeout; expiry is
// reported as an ordinary failure.
func (c *Client) ConnectionUp(ctx context.Context, name string) error {
	return c.mutate(ctx, c.connectTimeout, "connection", "up", name)
}

func (c *Client) ConnectionDown(ctx context.Context, name string) error {
	return c.mutate(ctx, c.queryTimeout, "connection", "down", name)
}

func (c *Client) ConnectionDelete(ctx context.Context, name string) error {
	return c.mutate(ctx, c.queryTimeout, "connection", "delete", name)
}

// CreateHotspot creates an AP profile: the add call carries the wireless
// parameters, a follow-up modify switches it to shared IPv4 addressing and
// disables power save (required for stable AP operation on small boards).
func (c *Client) CreateHotspot(ctx context.Context, params pkg.HotspotParams) error {
	addArgs := []string{
		"connection", "add",
		"type", "wifi",
		"ifname", params.Interface,
		"con-name", params.Name,
		"autoconnect", "no",
		"ssid", params.SSID,
		"802-11-wireless.mode", "ap",
		"802-11-wireless.band", "bg",
		"802-11-wireless.channel", "6",
	}
	if params.Password != "" {
		addArgs = append(addArgs,
			"wifi-sec.key-mgmt", "wpa-psk",
			"wifi-sec.psk", params.Password,
		)
	}
	if err := c.mutate(ctx, c.queryTimeout, addArgs...); err != nil {
		return fmt.Errorf("failed to create AP profile %q: %w", params.Name, err)
	}

	modifyArgs := []string{
		"connection", "modify", params.Name,
		"ipv4.method", "shared",
		"ipv4.addresses", params.CIDR,
		"ipv4.gateway", params.Gateway,
		"802-11-wireless.powersave", "disable",
	}
	if err := c.mutate(ctx, c.queryTimeout, modifyArgs...); err != nil {
		return fmt.Errorf("failed to configure AP profile %q: %w", params.Name, err)
	}
	return nil
}

// RadioEnabled reports the WiFi radio power state.
func (c *Client) RadioEnabled(ctx context.Context) (bool, error) {
	out, err := c.query(ctx, "radio", "wifi")
	if err != nil {
		return false, fmt.Errorf("failed to query radio state: %w", err)
	}
	return strings.TrimSpace(out) == "enabled", nil
}

func (c *Client) EnableRadio(ctx context.Context) error {
	return c.mutate(ctx, c.queryTimeout, "radio", "wifi", "on")
}

// RequestScan asks the driver for a fresh scan. The scanner package waits
// a settle interval before reading results.
func (c *Client) RequestScan(ctx context.Context, iface string) error {
	// A rescan is a read-side operation; it runs in dry-run mode too.
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()
	c.logger.Debug("nmcli rescan", "iface", iface)
	_, err := c.runner.Run(ctx, "nmcli", "device", "wifi", "rescan", "ifname", iface)
	return err
}

// VisibleNetworks lists the scan results without triggering a new scan.
func (c *Client) VisibleNetworks(ctx context.Context, iface string) ([]pkg.VisibleNetwork, error) {
	out, err := c.query(ctx, "-t", "-f", "SSID,SIGNAL",
		"device", "wifi", "list", "ifname", iface, "--rescan", "no")
	if err != nil {
		return nil, fmt.Errorf("failed to list visible networks: %w", err)
	}

	var networks []pkg.VisibleNetwork
	for _, line := range splitLines(out) {
		fields := SplitTerse(line)
		if len(fields) < 1 || fields[0] == "" || fields[0] == "--" {
			continue
		}
		n := pkg.VisibleNetwork{SSID: fields[0]}
		if len(fields) > 1 {
			n.Signal, _ = strconv.Atoi(fields[1])
		}
		networks = append(networks, n)
	}
	return networks, nil
}

// DeviceIPv4 returns the device's primary IPv4 address with prefix.
func (c *Client) DeviceIPv4(ctx context.Context, iface string) (string, error) {
	out, err := c.query(ctx, "-t", "-f", "IP4.ADDRESS", "device", "show", iface)
	if err != nil {
		return "", fmt.Errorf("failed to show device %q: %w", iface, err)
	}
	for _, line := range splitLines(out) {
		fields := SplitTerse(line)
		if len(fields) == 2 && strings.HasPrefix(fields[0], "IP4.ADDRESS") {
			return fields[1], nil
		}
	}
	return "", nil
}

func splitLines(out string) []string {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// SplitTerse splits one line of `nmcli -t` output on unescaped colons.
// nmcli escapes literal colons and backslashes in field values, so SSIDs
// containing ":" survive the round trip.
func SplitTerse(line string) []string {
	var fields []string
	var field strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			field.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	fields = append(fields, field.String())
	return fields
}

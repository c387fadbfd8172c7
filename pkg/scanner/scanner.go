// Package scanner triggers wireless scans and matches visible networks
// against the known client profiles.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/hwaldner/autowifi/pkg"
	"github.com/hwaldner/autowifi/pkg/logx"
)

// Scanner wraps the manager's scan verbs for one device.
type Scanner struct {
	nm     pkg.NetworkManager
	logger *logx.Logger
	iface  string
	settle time.Duration

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// New creates a scanner for the given device. settle is the wait between
// requesting a scan and reading its results; reading immediately races the
// driver and returns stale or empty lists.
func New(nm pkg.NetworkManager, logger *logx.Logger, iface string, settle time.Duration) *Scanner {
	return &Scanner{
		nm:     nm,
		logger: logger,
		iface:  iface,
		settle: settle,
		sleep:  time.Sleep,
	}
}

// Rescan requests a fresh scan and blocks for the settle interval. The
// request can fail while cached results remain readable, so the error is
// reported but callers may still query Visible afterwards.
func (s *Scanner) Rescan(ctx context.Context) error {
	err := s.nm.RequestScan(ctx, s.iface)
	if err != nil {
		err = fmt.Errorf("scan request failed: %w", err)
	}
	s.sleep(s.settle)
	return err
}

// Visible returns the current scan results.
func (s *Scanner) Visible(ctx context.Context) (*pkg.ScanResult, error) {
	networks, err := s.nm.VisibleNetworks(ctx, s.iface)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Scan results", "count", len(networks), "iface", s.iface)
	return &pkg.ScanResult{Networks: networks}, nil
}

// MatchKnown filters the client profiles down to those whose SSID is
// currently visible, preserving the priority order of the input. An empty
// result means "no known network in range" and is the caller's explicit
// fallback signal; there is no sentinel value.
func MatchKnown(clients []pkg.ConnectionProfile, visible *pkg.ScanResult) []pkg.ConnectionProfile {
	var candidates []pkg.ConnectionProfile
	for _, profile := range clients {
		if visible.Has(profile.SSID) {
			candidates = append(candidates, profile)
		}
	}
	return candidates
}

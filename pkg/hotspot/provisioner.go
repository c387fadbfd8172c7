// Package hotspot owns the access-point profile: creating it when absent
// and activating it with a bounded recreate-and-retry repair.
package hotspot

import (
	"context"
	"fmt"

	"github.com/hwaldner/autowifi/pkg"
	"github.com/hwaldner/autowifi/pkg/config"
	"github.com/hwaldner/autowifi/pkg/logx"
)

// Provisioner ensures and activates the configured AP profile.
type Provisioner struct {
	nm     pkg.NetworkManager
	cfg    *config.Config
	logger *logx.Logger
}

// New creates a provisioner.
func New(nm pkg.NetworkManager, cfg *config.Config, logger *logx.Logger) *Provisioner {
	return &Provisioner{nm: nm, cfg: cfg, logger: logger}
}

func (p *Provisioner) params() pkg.HotspotParams {
	return pkg.HotspotParams{
		Name:      p.cfg.APProfile,
		Interface: p.cfg.Interface,
		SSID:      p.cfg.APSSID,
		Password:  p.cfg.APPassword,
		CIDR:      p.cfg.APCIDR,
		Gateway:   p.cfg.APGateway,
	}
}

// Ensure creates the AP profile when it is missing from the given AP-mode
// inventory. Returns whether a profile was created.
func (p *Provisioner) Ensure(ctx context.Context, aps []pkg.ConnectionProfile) (bool, error) {
	for _, profile := range aps {
		if profile.Name == p.cfg.APProfile {
			return false, nil
		}
	}

	p.logger.Info("AP profile missing, creating", "profile", p.cfg.APProfile, "ssid", p.cfg.APSSID)
	if err := p.nm.CreateHotspot(ctx, p.params()); err != nil {
		return false, fmt.Errorf("failed to create AP profile: %w", err)
	}
	return true, nil
}

// Activate brings the AP profile up. A failed activation triggers exactly
// one repair: delete the profile, recreate it from config, and try again.
// A second failure is terminal for this cycle; there is no retry loop.
func (p *Provisioner) Activate(ctx context.Context) error {
	name := p.cfg.APProfile

	err := p.nm.ConnectionUp(ctx, name)
	if err == nil {
		p.logActive(ctx)
		return nil
	}
	p.logger.Warn("AP activation failed, recreating profile", "profile", name, "error", err)

	if err := p.nm.ConnectionDelete(ctx, name); err != nil {
		// The delete can fail when the profile is already gone; the
		// recreate below decides whether the repair is viable.
		p.logger.Warn("AP profile delete failed during repair", "profile", name, "error", err)
	}
	if err := p.nm.CreateHotspot(ctx, p.params()); err != nil {
		return fmt.Errorf("AP repair failed to recreate profile: %w", err)
	}

	if err := p.nm.ConnectionUp(ctx, name); err != nil {
		return fmt.Errorf("AP activation failed after repair: %w", err)
	}
	p.logActive(ctx)
	return nil
}

// EnsureAndActivate runs Ensure then Activate against the given AP
// inventory.
func (p *Provisioner) EnsureAndActivate(ctx context.Context, aps []pkg.ConnectionProfile) error {
	if _, err := p.Ensure(ctx, aps); err != nil {
		return err
	}
	return p.Activate(ctx)
}

// logActive reports the AP address for operator visibility; failure to
// read it never fails the activation.
func (p *Provisioner) logActive(ctx context.Context) {
	addr, err := p.nm.DeviceIPv4(ctx, p.cfg.Interface)
	if err != nil || addr == "" {
		p.logger.Info("Access point active", "ssid", p.cfg.APSSID, "iface", p.cfg.Interface)
		return
	}
	p.logger.Info("Access point active", "ssid", p.cfg.APSSID, "iface", p.cfg.Interface, "address", addr)
}

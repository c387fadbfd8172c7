package inventory

import (
	"context"

	"github.com/hwaldner/autowifi/pkg"
	"github.com/hwaldner/autowifi/pkg/logx"
)

// Probe answers which profile is active on a device and whether it is an
// AP profile. Both are pure queries; nothing here mutates manager state.
type Probe struct {
	nm     pkg.NetworkManager
	logger *logx.Logger
}

// NewProbe creates a probe over the given manager.
func NewProbe(nm pkg.NetworkManager, logger *logx.Logger) *Probe {
	return &Probe{nm: nm, logger: logger}
}

// ActiveProfileName returns the connection active on iface, or "" when
// nothing is active. A query failure is degraded to "nothing active" so
// the cycle proceeds with what it can see.
func (p *Probe) ActiveProfileName(ctx context.Context, iface string) string {
	name, err := p.nm.ActiveConnection(ctx, iface)
	if err != nil {
		p.logger.Warn("Active connection query failed, treating as none", "iface", iface, "error", err)
		return ""
	}
	return name
}

// IsAP reports whether the named profile is AP-mode. If the profile cannot
// be resolved (deleted between calls, manager busy) the answer is false:
// the caller treats the connection like any client connection and the next
// cycle re-derives the truth.
func (p *Probe) IsAP(ctx context.Context, name string) bool {
	mode, _, err := p.nm.WifiProfileDetails(ctx, name)
	if err != nil {
		p.logger.Warn("Profile mode query failed, assuming not AP", "profile", name, "error", err)
		return false
	}
	return mode == pkg.ModeAP
}

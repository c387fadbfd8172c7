// Package inventory reads the saved WiFi profiles from the network
// manager and answers which one, if any, is active on the managed device.
package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/hwaldner/autowifi/pkg"
	"github.com/hwaldner/autowifi/pkg/logx"
)

// Inventory partitions saved wifi profiles into client and AP lists.
type Inventory struct {
	nm     pkg.NetworkManager
	logger *logx.Logger
}

// New creates an inventory over the given manager.
func New(nm pkg.NetworkManager, logger *logx.Logger) *Inventory {
	return &Inventory{nm: nm, logger: logger}
}

// Load enumerates all saved wifi-type profiles and splits them into
// client-mode and AP-mode lists, each ordered by descending autoconnect
// priority (stable on the manager's reported order). A profile whose mode
// cannot be read is skipped; one bad record must not abort the inventory.
func (inv *Inventory) Load(ctx context.Context) (clients, aps []pkg.ConnectionProfile, err error) {
	profiles, err := inv.nm.ListWifiConnections(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load profile inventory: %w", err)
	}

	for _, profile := range profiles {
		mode, ssid, err := inv.nm.WifiProfileDetails(ctx, profile.Name)
		if err != nil {
			inv.logger.Warn("Skipping unreadable profile", "profile", profile.Name, "error", err)
			continue
		}
		profile.Mode = mode
		profile.SSID = ssid
		if profile.IsAP() {
			aps = append(aps, profile)
		} else {
			clients = append(clients, profile)
		}
	}

	sortByPriority(clients)
	sortByPriority(aps)
	return clients, aps, nil
}

// sortByPriority orders profiles by descending autoconnect priority,
// keeping the manager's ordering for ties.
func sortByPriority(profiles []pkg.ConnectionProfile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority > profiles[j].Priority
	})
}

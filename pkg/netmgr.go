package pkg

import "context"

// HotspotParams carries everything needed to create an AP profile.
type HotspotParams struct {
	Name      string
	Interface string
	SSID      string
	Password  string // empty means an open AP
	CIDR      string // shared IPv4 address with prefix, e.g. 10.0.0.1/24
	Gateway   string
}

// NetworkManager is the command surface of the underlying network stack.
// The nmcli package provides the real implementation; the decision engine
// and its collaborators never touch raw manager output.
type NetworkManager interface {
	// ListWifiConnections returns all saved wifi-type profiles in the
	// manager's reported order. Mode and SSID are not resolved here; use
	// WifiProfileDetails per profile.
	ListWifiConnections(ctx context.Context) ([]ConnectionProfile, error)

	// WifiProfileDetails resolves the wireless mode and SSID of a single
	// saved profile.
	WifiProfileDetails(ctx context.Context, name string) (Mode, string, error)

	// ActiveConnection returns the name of the connection active on the
	// given device, or "" when nothing is active.
	ActiveConnection(ctx context.Context, iface string) (string, error)

	ConnectionUp(ctx context.Context, name string) error
	ConnectionDown(ctx context.Context, name string) error
	ConnectionDelete(ctx context.Context, name string) error

	// CreateHotspot creates a new AP profile with shared IPv4 addressing
	// and wifi power-save disabled.
	CreateHotspot(ctx context.Context, params HotspotParams) error

	RadioEnabled(ctx context.Context) (bool, error)
	EnableRadio(ctx context.Context) error

	// RequestScan asks the driver for a fresh scan. Results are not
	// immediately consistent; callers wait a settle interval before
	// reading VisibleNetworks.
	RequestScan(ctx context.Context, iface string) error
	VisibleNetworks(ctx context.Context, iface string) ([]VisibleNetwork, error)

	// DeviceIPv4 returns the primary IPv4 address (with prefix) of a
	// device, for operator-facing logging.
	DeviceIPv4(ctx context.Context, iface string) (string, error)
}

// Package pkg contains the shared value types passed between the
// inventory, scanner, hotspot and decision packages. Everything here is a
// snapshot of live system state, rebuilt from scratch on every cycle.
package pkg

import "time"

// Mode is the wireless mode of a saved connection profile.
type Mode string

const (
	ModeAP      Mode = "ap"
	ModeClient  Mode = "infrastructure"
	ModeUnknown Mode = ""
)

// ConnectionProfile is a saved WiFi connection record as reported by the
// network manager. It is read-only in memory; changes go back through
// explicit NetworkManager calls.
type ConnectionProfile struct {
	Name     string `json:"name"`
	Mode     Mode   `json:"mode"`
	SSID     string `json:"ssid"`
	Priority int    `json:"priority"` // autoconnect priority, higher tried first
	Device   string `json:"device,omitempty"`
}

// IsAP reports whether the profile is an access-point profile.
func (p *ConnectionProfile) IsAP() bool {
	return p.Mode == ModeAP
}

// VisibleNetwork is one entry from a wireless scan. Signal is kept for
// logging only; candidate selection never ranks by it.
type VisibleNetwork struct {
	SSID   string `json:"ssid"`
	Signal int    `json:"signal"`
}

// ScanResult is the set of currently visible networks. Valid only for the
// cycle that produced it; a rescan invalidates prior results.
type ScanResult struct {
	Networks []VisibleNetwork `json:"networks"`
}

// Has reports whether an SSID is visible.
func (r *ScanResult) Has(ssid string) bool {
	if r == nil {
		return false
	}
	for _, n := range r.Networks {
		if n.SSID == ssid {
			return true
		}
	}
	return false
}

// SSIDs returns the visible SSIDs in scan order, duplicates removed.
func (r *ScanResult) SSIDs() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]bool, len(r.Networks))
	out := make([]string, 0, len(r.Networks))
	for _, n := range r.Networks {
		if n.SSID == "" || seen[n.SSID] {
			continue
		}
		seen[n.SSID] = true
		out = append(out, n.SSID)
	}
	return out
}

// CycleState is the connection state derived at the start of a decision
// cycle. Never persisted between invocations.
type CycleState struct {
	ActiveProfile *ConnectionProfile  `json:"active_profile,omitempty"`
	IsActiveAP    bool                `json:"is_active_ap"`
	Candidates    []ConnectionProfile `json:"candidates,omitempty"`
}

// Decision names the outcome a cycle settled on.
type Decision string

const (
	DecisionStayClient   Decision = "stay-client"
	DecisionStayAP       Decision = "stay-ap"
	DecisionSwitchClient Decision = "switch-client"
	DecisionActivateAP   Decision = "activate-ap"
	DecisionForcedAP     Decision = "forced-ap"
)

// CycleRecord summarizes one completed decision cycle for the history
// store, metrics, MQTT publishing and the heartbeat file.
type CycleRecord struct {
	Timestamp     time.Time `json:"ts"`
	Decision      Decision  `json:"decision"`
	Success       bool      `json:"success"`
	ActiveProfile string    `json:"active_profile,omitempty"`
	Mode          Mode      `json:"mode,omitempty"`
	Tried         []string  `json:"tried,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	Error         string    `json:"error,omitempty"`
}

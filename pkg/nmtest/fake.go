// Package nmtest provides a scripted in-memory pkg.NetworkManager for
// tests. It tracks every call so tests can assert which mutations a cycle
// issued, and keeps just enough state (active connection, saved profiles)
// for multi-cycle scenarios.
package nmtest

import (
	"context"
	"fmt"

	"github.com/hwaldner/autowifi/pkg"
)

// Call records one method invocation.
type Call struct {
	Method string
	Arg    string
}

// FakeManager implements pkg.NetworkManager.
type FakeManager struct {
	// Profiles are the saved wifi profiles, fully populated (Mode, SSID).
	Profiles []pkg.ConnectionProfile

	// ActiveName is the connection currently up; "" means none.
	ActiveName string

	Radio   bool
	Visible []pkg.VisibleNetwork
	IPv4    string

	// Error scripting.
	ListErr        error
	DetailsErr     map[string]error
	ActiveErr      error
	RadioErr       error
	EnableRadioErr error
	ScanErr        error
	VisibleErr     error
	DownErr        error
	DeleteErr      error
	CreateErr      error

	// UpFailures[name] fails that many ConnectionUp calls before letting
	// one succeed. UpErr[name] fails every call.
	UpFailures map[string]int
	UpErr      map[string]error

	Calls []Call
}

var _ pkg.NetworkManager = (*FakeManager)(nil)

// New returns a fake with the radio on and no saved profiles.
func New() *FakeManager {
	return &FakeManager{
		Radio:      true,
		DetailsErr: make(map[string]error),
		UpFailures: make(map[string]int),
		UpErr:      make(map[string]error),
	}
}

func (f *FakeManager) record(method, arg string) {
	f.Calls = append(f.Calls, Call{Method: method, Arg: arg})
}

// Mutations returns the calls that change system state, in order.
func (f *FakeManager) Mutations() []Call {
	var out []Call
	for _, c := range f.Calls {
		switch c.Method {
		case "ConnectionUp", "ConnectionDown", "ConnectionDelete", "CreateHotspot", "EnableRadio":
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeManager) find(name string) *pkg.ConnectionProfile {
	for i := range f.Profiles {
		if f.Profiles[i].Name == name {
			return &f.Profiles[i]
		}
	}
	return nil
}

func (f *FakeManager) ListWifiConnections(ctx context.Context) ([]pkg.ConnectionProfile, error) {
	f.record("ListWifiConnections", "")
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]pkg.ConnectionProfile, len(f.Profiles))
	copy(out, f.Profiles)
	return out, nil
}

func (f *FakeManager) WifiProfileDetails(ctx context.Context, name string) (pkg.Mode, string, error) {
	f.record("WifiProfileDetails", name)
	if err := f.DetailsErr[name]; err != nil {
		return pkg.ModeUnknown, "", err
	}
	p := f.find(name)
	if p == nil {
		return pkg.ModeUnknown, "", fmt.Errorf("no such profile %q", name)
	}
	return p.Mode, p.SSID, nil
}

func (f *FakeManager) ActiveConnection(ctx context.Context, iface string) (string, error) {
	f.record("ActiveConnection", iface)
	if f.ActiveErr != nil {
		return "", f.ActiveErr
	}
	return f.ActiveName, nil
}

func (f *FakeManager) ConnectionUp(ctx context.Context, name string) error {
	f.record("ConnectionUp", name)
	if err := f.UpErr[name]; err != nil {
		return err
	}
	if f.UpFailures[name] > 0 {
		f.UpFailures[name]--
		return fmt.Errorf("activation of %q failed", name)
	}
	f.ActiveName = name
	return nil
}

func (f *FakeManager) ConnectionDown(ctx context.Context, name string) error {
	f.record("ConnectionDown", name)
	if f.DownErr != nil {
		return f.DownErr
	}
	if f.ActiveName == name {
		f.ActiveName = ""
	}
	return nil
}

func (f *FakeManager) ConnectionDelete(ctx context.Context, name string) error {
	f.record("ConnectionDelete", name)
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for i := range f.Profiles {
		if f.Profiles[i].Name == name {
			f.Profiles = append(f.Profiles[:i], f.Profiles[i+1:]...)
			break
		}
	}
	if f.ActiveName == name {
		f.ActiveName = ""
	}
	return nil
}

func (f *FakeManager) CreateHotspot(ctx context.Context, params pkg.HotspotParams) error {
	f.record("CreateHotspot", params.Name)
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.Profiles = append(f.Profiles, pkg.ConnectionProfile{
		Name: params.Name,
		Mode: pkg.ModeAP,
		SSID: params.SSID,
	})
	return nil
}

func (f *FakeManager) RadioEnabled(ctx context.Context) (bool, error) {
	f.record("RadioEnabled", "")
	if f.RadioErr != nil {
		return false, f.RadioErr
	}
	return f.Radio, nil
}

func (f *FakeManager) EnableRadio(ctx context.Context) error {
	f.record("EnableRadio", "")
	if f.EnableRadioErr != nil {
		return f.EnableRadioErr
	}
	f.Radio = true
	return nil
}

func (f *FakeManager) RequestScan(ctx context.Context, iface string) error {
	f.record("RequestScan", iface)
	return f.ScanErr
}

func (f *FakeManager) VisibleNetworks(ctx context.Context, iface string) ([]pkg.VisibleNetwork, error) {
	f.record("VisibleNetworks", iface)
	if f.VisibleErr != nil {
		return nil, f.VisibleErr
	}
	return f.Visible, nil
}

func (f *FakeManager) DeviceIPv4(ctx context.Context, iface string) (string, error) {
	f.record("DeviceIPv4", iface)
	return f.IPv4, nil
}

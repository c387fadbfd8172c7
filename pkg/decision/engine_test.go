package decision

import (
	"context"
	"testing"
	"time"

	"github.com/hwaldner/autowifi/pkg"
	"github.com/hwaldner/autowifi/pkg/config"
	"github.com/hwaldner/autowifi/pkg/logx"
	"github.com/hwaldner/autowifi/pkg/nmtest"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Interface = "wlan0"
	cfg.APProfile = "autowifi-ap"
	cfg.APSSID = "autowifi-setup"
	cfg.APPassword = "changeme123"
	cfg.ScanSettleS = 0
	cfg.RadioSettleS = 0
	return cfg
}

func testEngine(t *testing.T, nm *nmtest.FakeManager) *Engine {
	t.Helper()
	engine := NewEngine(testConfig(), nm, logx.NewLogger("error", "test"))
	engine.sleep = func(time.Duration) {}
	return engine
}

func clientProfile(name, ssid string, priority int) pkg.ConnectionProfile {
	return pkg.ConnectionProfile{Name: name, SSID: ssid, Mode: pkg.ModeClient, Priority: priority}
}

func apProfile(name, ssid string) pkg.ConnectionProfile {
	return pkg.ConnectionProfile{Name: name, SSID: ssid, Mode: pkg.ModeAP}
}

func TestClientActiveSkipsScan(t *testing.T) {
	nm := nmtest.New()
	nm.Profiles = []pkg.ConnectionProfile{clientProfile("home", "HomeNet", 10)}
	nm.ActiveName = "home"

	rec, err := testEngine(t, nm).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if rec.Decision != pkg.DecisionStayClient {
		t.Errorf("decision = %q, want %q", rec.Decision, pkg.DecisionStayClient)
	}
	for _, c := range nm.Calls {
		if c.Method == "RequestScan" || c.Method == "VisibleNetworks" {
			t.Errorf("active client cycle issued %s", c.Method)
		}
	}
	if got := nm.Mutations(); len(got) != 0 {
		t.Errorf("active client cycle issued mutations: %v", got)
	}
}

func TestPriorityOrderSelectsHighestVisible(t *testing.T) {
	nm := nmtest.New()
	nm.Profiles = []pkg.ConnectionProfile{
		clientProfile("home", "HomeNet", 10),
		clientProfile("work", "WorkNet", 5),
	}
	nm.Visible = []pkg.VisibleNetwork{
		{SSID: "WorkNet", Signal: 90},
		{SSID: "GuestNet", Signal: 80},
	}

	rec, err := testEngine(t, nm).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if rec.Decision != pkg.DecisionSwitchClient {
		t.Fatalf("decision = %q, want %q", rec.Decision, pkg.DecisionSwitchClient)
	}
	if rec.ActiveProfile != "work" {
		t.Errorf("connected to %q, want work (only visible match)", rec.ActiveProfile)
	}
	if len(rec.Tried) != 1 || rec.Tried[0] != "work" {
		t.Errorf("tried = %v, want [work]", rec.Tried)
	}
}

func TestFirstSuccessStopsCandidateAttempts(t *testing.T) {
	nm := nmtest.New()
	nm.Profiles = []pkg.ConnectionProfile{
		clientProfile("home", "HomeNet", 10),
		clientProfile("work", "WorkNet", 5),
		clientProfile("cafe", "CafeNet", 1),
	}
	nm.Visible = []pkg.VisibleNetwork{
		{SSID: "HomeNet"}, {SSID: "WorkNet"}, {SSID: "CafeNet"},
	}
	nm.UpFailures["home"] = 1

	rec, err := testEngine(t, nm).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if rec.ActiveProfile != "work" {
		t.Errorf("connected to %q, want work after home failed", rec.ActiveProfile)
	}
	want := []string{"home", "work"}
	if len(rec.Tried) != len(want) {
		t.Fatalf("tried = %v, want %v", rec.Tried, want)
	}
	for i := range want {
		if rec.Tried[i] != want[i] {
			t.Errorf("tried[%d] = %q, want %q", i, rec.Tried[i], want[i])
		}
	}
}

func TestNoCandidatesFallsBackToAP(t *testing.T) {
	nm := nmtest.New()
	nm.Visible = []pkg.VisibleNetwork{{SSID: "StrangerNet"}}

	rec, err := testEngine(t, nm).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if rec.Decision != pkg.DecisionActivateAP {
		t.Errorf("decision = %q, want %q", rec.Decision, pkg.DecisionActivateAP)
	}
	if rec.ActiveProfile != "autowifi-ap" {
		t.Errorf("active profile = %q, want autowifi-ap", rec.ActiveProfile)
	}
	// The AP profile did not exist, so the cycle must have created it
	// with the configured SSID.
	created := false
	for _, p := range nm.Profiles {
		if p.Name == "autowifi-ap" && p.SSID == "autowifi-setup" {
			created = true
		}
	}
	if !created {
		t.Error("AP profile was not created with the configured SSID")
	}
}

func TestAPToClientSwitchBringsAPDownFirst(t *testing.T) {
	nm := nmtest.New()
	nm.Profiles = []pkg.ConnectionProfile{
		apProfile("autowifi-ap", "autowifi-setup"),
		clientProfile("home", "HomeNet", 10),
	}
	nm.ActiveName = "autowifi-ap"
	nm.Visible = []pkg.VisibleNetwork{{SSID: "HomeNet"}}

	rec, err := testEngine(t, nm).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if rec.Decision != pkg.DecisionSwitchClient {
		t.Fatalf("decision = %q, want %q", rec.Decision, pkg.DecisionSwitchClient)
	}

	mutations := nm.Mutations()
	if len(mutations) != 2 {
		t.Fatalf("mutations = %v, want [down up]", mutations)
	}
	if mutations[0].Method != "ConnectionDown" || mutations[0].Arg != "autowifi-ap" {
		t.Errorf("first mutation = %v, want ConnectionDown(autowifi-ap)", mutations[0])
	}
	if mutations[1].Method != "ConnectionUp" || mutations[1].Arg != "home" {
		t.Errorf("second mutation = %v, want ConnectionUp(home)", mutations[1])
	}
}

func TestAPStaysUpWhenNoKnownNetworkVisible(t *testing.T) {
	nm := nmtest.New()
	nm.Profiles = []pkg.ConnectionProfile{
		apProfile("autowifi-ap", "autowifi-setup"),
		clientProfile("home", "HomeNet", 10),
	}
	nm.ActiveName = "autowifi-ap"
	nm.Visible = []pkg.VisibleNetwork{{SSID: "StrangerNet"}}

	rec, err := testEngine(t, nm).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if rec.Decision != pkg.DecisionStayAP {
		t.Errorf("decision = %q, want %q", rec.Decision, pkg.DecisionStayAP)
	}
	if got := nm.Mutations(); len(got) != 0 {
		t.Errorf("stay-AP cycle issued mutations: %v", got)
	}
}

func TestAPStaysUpWithoutClientProfiles(t *testing.T) {
	nm := nmtest.New()
	nm.Profiles = []pkg.ConnectionProfile{apProfile("autowifi-ap", "autowifi-setup")}
	nm.ActiveName = "autowifi-ap"

	rec, err := testEngine(t, nm).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if rec.Decision != pkg.DecisionStayAP {
		t.Errorf("decision = %q, want %q", rec.Decision, pkg.DecisionStayAP)
	}
	// With no client profiles at all there is nothing to scan for.
	for _, c := range nm.Calls {
		if c.Method == "RequestScan" {
			t.Error("scan requested although no client profiles exist")
		}
	}
}

func TestIdempotentCycles(t *testing.T) {
	nm := nmtest.New()
	nm.Profiles = []pkg.ConnectionProfile{clientProfile("home", "HomeNet", 10)}
	nm.Visible = []pkg.VisibleNetwork{{SSID: "HomeNet"}}

	engine := testEngine(t, nm)
	if _, err := engine.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}
	firstMutations := len(nm.Mutations())
	if firstMutations == 0 {
		t.Fatal("first cycle connected nothing")
	}

	// Unchanged system state: the second cycle must be a no-op.
	if _, err := engine.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	if got := len(nm.Mutations()); got != firstMutations {
		t.Errorf("second cycle issued %d extra mutations", got-firstMutations)
	}
}

func TestBoundedAPRepair(t *testing.T) {
	nm := nmtest.New()
	nm.Profiles = []pkg.ConnectionProfile{apProfile("autowifi-ap", "autowifi-setup")}
	nm.UpErr["autowifi-ap"] = context.DeadlineExceeded

	rec, err := testEngine(t, nm).RunCycle(context.Background())
	if err == nil {
		t.Fatal("expected terminal error when both AP activations fail")
	}
	if rec.Success {
		t.Error("record claims success after terminal AP failure")
	}

	ups := 0
	for _, c := range nm.Calls {
		if c.Method == "ConnectionUp" && c.Arg == "autowifi-ap" {
			ups++
		}
	}
	if ups != 2 {
		t.Errorf("AP activation attempted %d times, want exactly 2 (initial + one repair)", ups)
	}
}

func TestAPSelfRepairRecreatesProfile(t *testing.T) {
	nm := nmtest.New()
	nm.Profiles = []pkg.ConnectionProfile{apProfile("autowifi-ap", "autowifi-setup")}
	nm.UpFailures["autowifi-ap"] = 1

	rec, err := testEngine(t, nm).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if rec.Decision != pkg.DecisionActivateAP || !rec.Success {
		t.Fatalf("decision = %q success=%v, want successful activate-ap", rec.Decision, rec.Success)
	}

	var sequence []string
	for _, c := range nm.Calls {
		switch c.Method {
		case "ConnectionUp", "ConnectionDelete", "CreateHotspot":
			sequence = append(sequence, c.Method)
		}
	}
	want := []string{"ConnectionUp", "ConnectionDelete", "CreateHotspot", "ConnectionUp"}
	if len(sequence) != len(want) {
		t.Fatalf("repair sequence = %v, want %v", sequence, want)
	}
	for i := range want {
		if sequence[i] != want[i] {
			t.Errorf("repair step %d = %q, want %q", i, sequence[i], want[i])
		}
	}
}

func TestRadioEnabledBeforeScan(t *testing.T) {
	nm := nmtest.New()
	nm.Radio = false
	nm.Profiles = []pkg.ConnectionProfile{clientProfile("home", "HomeNet", 10)}
	nm.Visible = []pkg.VisibleNetwork{{SSID: "HomeNet"}}

	rec, err := testEngine(t, nm).RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if rec.Decision != pkg.DecisionSwitchClient {
		t.Errorf("decision = %q, want %q", rec.Decision, pkg.DecisionSwitchClient)
	}
	if !nm.Radio {
		t.Error("radio left disabled")
	}
	if nm.Calls[0].Method != "RadioEnabled" {
		t.Errorf("first call = %s, want the radio check", nm.Calls[0].Method)
	}
}

func TestForceAPSkipsStateInspection(t *testing.T) {
	nm := nmtest.New()
	nm.Profiles = []pkg.ConnectionProfile{clientProfile("home", "HomeNet", 10)}
	nm.ActiveName = "home"
	nm.Visible = []pkg.VisibleNetwork{{SSID: "HomeNet"}}

	rec, err := testEngine(t, nm).ForceAP(context.Background())
	if err != nil {
		t.Fatalf("ForceAP failed: %v", err)
	}
	if rec.Decision != pkg.DecisionForcedAP {
		t.Errorf("decision = %q, want %q", rec.Decision, pkg.DecisionForcedAP)
	}
	if rec.ActiveProfile != "autowifi-ap" {
		t.Errorf("active profile = %q, want autowifi-ap", rec.ActiveProfile)
	}
	for _, c := range nm.Calls {
		if c.Method == "RequestScan" || c.Method == "ActiveConnection" {
			t.Errorf("forced AP run issued %s", c.Method)
		}
	}
}

func TestReportFansOutToSinks(t *testing.T) {
	nm := nmtest.New()
	nm.Profiles = []pkg.ConnectionProfile{clientProfile("home", "HomeNet", 10)}
	nm.ActiveName = "home"

	engine := testEngine(t, nm)
	history := &recordingSink{}
	engine.SetHistory(history)
	engine.SetObserver(history)
	engine.SetPublisher(history)

	if _, err := engine.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if history.appended != 1 || history.observed != 1 || history.published != 1 {
		t.Errorf("sinks saw append=%d observe=%d publish=%d, want 1 each",
			history.appended, history.observed, history.published)
	}
}

type recordingSink struct {
	appended  int
	observed  int
	published int
}

func (r *recordingSink) Append(*pkg.CycleRecord) error { r.appended++; return nil }

func (r *recordingSink) ObserveCycle(*pkg.CycleRecord) { r.observed++ }

func (r *recordingSink) PublishCycle(*pkg.CycleRecord) error {
	r.published++
	return nil
}

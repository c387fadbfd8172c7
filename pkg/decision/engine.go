// Package decision implements the mode controller: one cycle inspects the
// live connection state, scans for known networks and decides whether to
// stay put, join a client network, or raise the access point.
package decision

import (
	"context"
	"time"

	"github.com/hwaldner/autowifi/pkg"
	"github.com/hwaldner/autowifi/pkg/config"
	"github.com/hwaldner/autowifi/pkg/hotspot"
	"github.com/hwaldner/autowifi/pkg/inventory"
	"github.com/hwaldner/autowifi/pkg/logx"
	"github.com/hwaldner/autowifi/pkg/scanner"
)

// History receives the record of every completed cycle.
type History interface {
	Append(rec *pkg.CycleRecord) error
}

// Observer receives cycle records for metrics accounting.
type Observer interface {
	ObserveCycle(rec *pkg.CycleRecord)
}

// Publisher pushes cycle records to an external broker.
type Publisher interface {
	PublishCycle(rec *pkg.CycleRecord) error
}

// Engine runs decision cycles. It holds no state between cycles; every run
// re-derives the connection state from the live system.
type Engine struct {
	cfg    *config.Config
	nm     pkg.NetworkManager
	logger *logx.Logger

	inventory *inventory.Inventory
	probe     *inventory.Probe
	scanner   *scanner.Scanner
	hotspot   *hotspot.Provisioner

	history   History
	observer  Observer
	publisher Publisher

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewEngine wires an engine over the given network manager.
func NewEngine(cfg *config.Config, nm pkg.NetworkManager, logger *logx.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		nm:        nm,
		logger:    logger,
		inventory: inventory.New(nm, logger),
		probe:     inventory.NewProbe(nm, logger),
		scanner:   scanner.New(nm, logger, cfg.Interface, cfg.ScanSettle()),
		hotspot:   hotspot.New(nm, cfg, logger),
		sleep:     time.Sleep,
	}
}

// SetHistory attaches a cycle-history store.
func (e *Engine) SetHistory(h History) { e.history = h }

// SetObserver attaches a metrics observer.
func (e *Engine) SetObserver(o Observer) { e.observer = o }

// SetPublisher attaches an external publisher.
func (e *Engine) SetPublisher(p Publisher) { e.publisher = p }

// RunCycle executes one decision cycle. The returned error is terminal
// only when every recovery option is exhausted (both AP activation
// attempts failed); query failures degrade and the cycle continues.
func (e *Engine) RunCycle(ctx context.Context) (*pkg.CycleRecord, error) {
	return e.run(ctx, false)
}

// ForceAP skips state inspection and activates the access point directly.
func (e *Engine) ForceAP(ctx context.Context) (*pkg.CycleRecord, error) {
	return e.run(ctx, true)
}

func (e *Engine) run(ctx context.Context, forceAP bool) (*pkg.CycleRecord, error) {
	start := time.Now()
	rec := &pkg.CycleRecord{Timestamp: start}

	var err error
	if forceAP {
		err = e.forcedAP(ctx, rec)
	} else {
		err = e.cycle(ctx, rec)
	}

	rec.DurationMs = time.Since(start).Milliseconds()
	rec.Success = err == nil
	if err != nil {
		rec.Error = err.Error()
	}
	e.report(rec)
	return rec, err
}

func (e *Engine) cycle(ctx context.Context, rec *pkg.CycleRecord) error {
	e.ensureRadio(ctx)

	clients, aps, err := e.inventory.Load(ctx)
	if err != nil {
		// Degraded cycle: no profile knowledge. Scanning will match
		// nothing and the AP fallback gets a chance to repair things.
		e.logger.Warn("Profile inventory unavailable, proceeding degraded", "error", err)
	}

	active := e.probe.ActiveProfileName(ctx, e.cfg.Interface)
	if active != "" && !e.probe.IsAP(ctx, active) {
		// Already on a client network: trust the manager's own link
		// maintenance, no scan, no reconnect this cycle.
		e.logger.Info("Client connection active, nothing to do", "profile", active)
		rec.Decision = pkg.DecisionStayClient
		rec.ActiveProfile = active
		rec.Mode = pkg.ModeClient
		return nil
	}

	if active != "" {
		return e.cycleFromAP(ctx, rec, active, clients, aps)
	}
	return e.cycleFromNone(ctx, rec, clients, aps)
}

// cycleFromAP handles an active AP connection: switch to a known client
// network when one is in range, otherwise keep broadcasting.
func (e *Engine) cycleFromAP(ctx context.Context, rec *pkg.CycleRecord, active string, clients, aps []pkg.ConnectionProfile) error {
	rec.ActiveProfile = active
	rec.Mode = pkg.ModeAP

	if len(clients) == 0 {
		e.logger.Info("AP active and no client profiles exist, staying in AP mode")
		rec.Decision = pkg.DecisionStayAP
		return nil
	}

	candidates := e.findCandidates(ctx, clients)
	if len(candidates) == 0 {
		e.logger.Info("AP active and no known network in range, staying in AP mode")
		rec.Decision = pkg.DecisionStayAP
		return nil
	}

	e.logger.Info("Known network in range, leaving AP mode", "candidates", len(candidates))
	if err := e.nm.ConnectionDown(ctx, active); err != nil {
		e.logger.Warn("Failed to bring AP connection down", "profile", active, "error", err)
	}

	if name, ok := e.connectFirst(ctx, rec, candidates); ok {
		rec.Decision = pkg.DecisionSwitchClient
		rec.ActiveProfile = name
		rec.Mode = pkg.ModeClient
		return nil
	}
	return e.activateAP(ctx, rec, aps)
}

// cycleFromNone handles the disconnected state: join the best visible
// known network or fall back to the AP.
func (e *Engine) cycleFromNone(ctx context.Context, rec *pkg.CycleRecord, clients, aps []pkg.ConnectionProfile) error {
	candidates := e.findCandidates(ctx, clients)
	if name, ok := e.connectFirst(ctx, rec, candidates); ok {
		rec.Decision = pkg.DecisionSwitchClient
		rec.ActiveProfile = name
		rec.Mode = pkg.ModeClient
		return nil
	}
	if len(candidates) == 0 {
		e.logger.Info("No known network in range, activating AP")
	}
	return e.activateAP(ctx, rec, aps)
}

func (e *Engine) forcedAP(ctx context.Context, rec *pkg.CycleRecord) error {
	e.logger.Info("Forced AP activation requested")
	rec.Decision = pkg.DecisionForcedAP
	_, aps, err := e.inventory.Load(ctx)
	if err != nil {
		e.logger.Warn("Profile inventory unavailable before forced AP activation", "error", err)
	}
	return e.activateAP(ctx, rec, aps)
}

// ensureRadio turns the radio on when configuration allows it. An enable
// failure is not fatal; the scan will simply find nothing.
func (e *Engine) ensureRadio(ctx context.Context) {
	if !e.cfg.AutoEnableWifi {
		return
	}
	enabled, err := e.nm.RadioEnabled(ctx)
	if err != nil {
		e.logger.Warn("Radio state query failed", "error", err)
		return
	}
	if enabled {
		return
	}
	e.logger.Info("WiFi radio disabled, enabling")
	if err := e.nm.EnableRadio(ctx); err != nil {
		e.logger.Warn("Failed to enable WiFi radio", "error", err)
		return
	}
	e.sleep(e.cfg.RadioSettle())
}

// findCandidates rescans and intersects the visible SSIDs with the known
// client profiles, keeping priority order. Scan trouble degrades to an
// empty candidate list.
func (e *Engine) findCandidates(ctx context.Context, clients []pkg.ConnectionProfile) []pkg.ConnectionProfile {
	if len(clients) == 0 {
		return nil
	}
	if err := e.scanner.Rescan(ctx); err != nil {
		e.logger.Warn("Rescan failed, reading cached results", "error", err)
	}
	visible, err := e.scanner.Visible(ctx)
	if err != nil {
		e.logger.Warn("Could not read scan results", "error", err)
		return nil
	}
	candidates := scanner.MatchKnown(clients, visible)
	e.logger.Debug("Candidate selection",
		"visible", len(visible.SSIDs()), "known", len(clients), "candidates", len(candidates))
	return candidates
}

// connectFirst tries each candidate in priority order and stops at the
// first successful activation. Later candidates are never tried once one
// succeeds.
func (e *Engine) connectFirst(ctx context.Context, rec *pkg.CycleRecord, candidates []pkg.ConnectionProfile) (string, bool) {
	for _, candidate := range candidates {
		rec.Tried = append(rec.Tried, candidate.Name)
		e.logger.Info("Connecting to known network",
			"profile", candidate.Name, "ssid", candidate.SSID, "priority", candidate.Priority)
		if err := e.nm.ConnectionUp(ctx, candidate.Name); err != nil {
			e.logger.Warn("Connection attempt failed",
				"profile", candidate.Name, "error", err)
			continue
		}
		e.logger.Info("Connected", "profile", candidate.Name, "ssid", candidate.SSID)
		return candidate.Name, true
	}
	return "", false
}

// activateAP is the fallback path: ensure the AP profile exists, then
// activate it with the provisioner's bounded repair. A failure here is the
// cycle's terminal error.
func (e *Engine) activateAP(ctx context.Context, rec *pkg.CycleRecord, aps []pkg.ConnectionProfile) error {
	if rec.Decision == "" {
		rec.Decision = pkg.DecisionActivateAP
	}
	if err := e.hotspot.EnsureAndActivate(ctx, aps); err != nil {
		e.logger.Error("AP activation failed", "error", err)
		return err
	}
	rec.ActiveProfile = e.cfg.APProfile
	rec.Mode = pkg.ModeAP
	return nil
}

// report fans the cycle record out to the optional sinks. Sink failures
// never affect the cycle outcome.
func (e *Engine) report(rec *pkg.CycleRecord) {
	if e.history != nil {
		if err := e.history.Append(rec); err != nil {
			e.logger.Warn("Failed to record cycle history", "error", err)
		}
	}
	if e.observer != nil {
		e.observer.ObserveCycle(rec)
	}
	if e.publisher != nil {
		if err := e.publisher.PublishCycle(rec); err != nil {
			e.logger.Warn("Failed to publish cycle record", "error", err)
		}
	}
}

package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopcore/admin-guard/internal/device"
	"github.com/shopcore/admin-guard/internal/model"
)

// Heuristic windows and thresholds.
const (
	bruteForceWindow       = time.Hour
	bruteForceScanRecords  = 20
	bruteForceThreshold    = 3
	multiLocationThreshold = 3
	newDeviceScanLogins    = 10
	newDeviceMinSignatures = 3
	travelScanLogins       = 5
	travelLookback         = 24 * time.Hour
	impossibleTravelMaxGap = 60 * time.Minute
)

// FindingKind names the heuristic that produced a finding.
type FindingKind string

const (
	FindingKnownBadIP       FindingKind = "known_bad_ip"
	FindingBruteForce       FindingKind = "brute_force"
	FindingMultiLocation    FindingKind = "multi_location"
	FindingNewDevice        FindingKind = "new_device"
	FindingImpossibleTravel FindingKind = "impossible_travel"
)

// Severity is the log level a finding is reported at.
type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Finding is one human-readable observation about a login.
type Finding struct {
	Kind     FindingKind `json:"kind"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`
}

// ThreatAnalyzer scores a login against the account's history. It holds no
// state and never blocks a login.
type ThreatAnalyzer struct {
	risk RiskChecker
}

// NewThreatAnalyzer creates a ThreatAnalyzer. risk may be nil.
func NewThreatAnalyzer(risk RiskChecker) *ThreatAnalyzer {
	return &ThreatAnalyzer{risk: risk}
}

// Analyze runs every heuristic. It expects the new session to be present in
// a.ActiveSessions and the successful LoginRecord for this login not yet
// appended, so history describes only prior attempts.
func (t *ThreatAnalyzer) Analyze(a *model.Account, dev model.DeviceInfo, now time.Time) []Finding {
	var findings []Finding
	for _, check := range []func(*model.Account, model.DeviceInfo, time.Time) *Finding{
		t.knownBadIP,
		bruteForce,
		multiLocation,
		newDevice,
		impossibleTravel,
	} {
		if f := check(a, dev, now); f != nil {
			findings = append(findings, *f)
		}
	}
	return findings
}

// ShouldAlert reports whether findings warrant a security alert email.
func ShouldAlert(a *model.Account, findings []Finding) bool {
	return len(findings) > 0 && a.EmailNotifications.SuspiciousActivity
}

// Messages flattens findings to their display strings.
func Messages(findings []Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Message
	}
	return out
}

func (t *ThreatAnalyzer) knownBadIP(_ *model.Account, dev model.DeviceInfo, _ time.Time) *Finding {
	if t.risk == nil || !t.risk.IsHighRiskIP(dev.IP) {
		return nil
	}
	return &Finding{
		Kind:     FindingKnownBadIP,
		Severity: SeverityError,
		Message:  fmt.Sprintf("Login from known high-risk IP address %s (%s)", dev.IP, dev.Location),
	}
}

func bruteForce(a *model.Account, dev model.DeviceInfo, now time.Time) *Finding {
	failures := 0
	for _, rec := range a.RecentLogins(bruteForceScanRecords) {
		if !rec.Success && rec.IP == dev.IP && now.Sub(rec.LoginTime) <= bruteForceWindow {
			failures++
		}
	}
	if failures < bruteForceThreshold {
		return nil
	}
	return &Finding{
		Kind:     FindingBruteForce,
		Severity: SeverityError,
		Message:  fmt.Sprintf("Multiple failed login attempts (%d) from IP %s in the last hour", failures, dev.IP),
	}
}

func multiLocation(a *model.Account, _ model.DeviceInfo, now time.Time) *Finding {
	seen := make(map[string]struct{})
	for _, s := range a.CurrentSessions(now) {
		if device.IsKnownLocation(s.DeviceInfo.Location) {
			seen[s.DeviceInfo.Location] = struct{}{}
		}
	}
	if len(seen) < multiLocationThreshold {
		return nil
	}

	locations := make([]string, 0, len(seen))
	for loc := range seen {
		locations = append(locations, loc)
	}
	sort.Strings(locations)
	return &Finding{
		Kind:     FindingMultiLocation,
		Severity: SeverityError,
		Message:  fmt.Sprintf("Active sessions from %d different locations: %s", len(locations), strings.Join(locations, ", ")),
	}
}

func newDevice(a *model.Account, dev model.DeviceInfo, _ time.Time) *Finding {
	signatures := make(map[string]struct{})
	for _, rec := range a.RecentSuccessfulLogins(newDeviceScanLogins) {
		signatures[rec.Signature()] = struct{}{}
	}
	if len(signatures) < newDeviceMinSignatures {
		return nil
	}
	if _, known := signatures[dev.Signature()]; known {
		return nil
	}
	return &Finding{
		Kind:     FindingNewDevice,
		Severity: SeverityWarn,
		Message:  fmt.Sprintf("Login from a new device: %s on %s", dev.Browser, dev.OS),
	}
}

func impossibleTravel(a *model.Account, dev model.DeviceInfo, now time.Time) *Finding {
	if !device.IsKnownLocation(dev.Location) {
		return nil
	}

	var recent []model.LoginRecord
	for _, rec := range a.RecentSuccessfulLogins(len(a.LoginHistory)) {
		if len(recent) == travelScanLogins {
			break
		}
		if device.IsKnownLocation(rec.Location) && now.Sub(rec.LoginTime) <= travelLookback {
			recent = append(recent, rec)
		}
	}
	if len(recent) == 0 {
		return nil
	}

	prev := recent[0]
	gap := now.Sub(prev.LoginTime)
	if prev.Location == dev.Location || gap >= impossibleTravelMaxGap {
		return nil
	}
	return &Finding{
		Kind:     FindingImpossibleTravel,
		Severity: SeverityError,
		Message: fmt.Sprintf("Rapid location change: %s to %s within %d minutes",
			prev.Location, dev.Location, int(gap.Minutes())),
	}
}

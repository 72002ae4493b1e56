// Package drift compares the statistics of a map against a saved baseline.
// It flags growth, fragmentation and changes among the best-connected items.
package drift

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/nodemap/pkg/analysis"
)

// Severity grades an alert. Critical and warning alerts fail a check.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// AlertType names what changed.
type AlertType string

const (
	AlertNodeCountChange  AlertType = "node_count_change"
	AlertEdgeCountChange  AlertType = "edge_count_change"
	AlertFragmentation    AlertType = "fragmentation"
	AlertIsolatedIncrease AlertType = "isolated_increase"
	AlertEdgeLengthChange AlertType = "edge_length_change"
	AlertHubChange        AlertType = "hub_change"
)

// Baseline is a saved snapshot of map statistics.
type Baseline struct {
	CreatedAt   time.Time      `json:"created_at"`
	Description string         `json:"description,omitempty"`
	Hash        string         `json:"hash"`
	Stats       analysis.Stats `json:"stats"`
}

func NewBaseline(hash string, stats *analysis.Stats, description string) *Baseline {
	return &Baseline{CreatedAt: time.Now().UTC(), Description: description, Hash: hash, Stats: *stats}
}

// Save writes the baseline as indented JSON.
func (b *Baseline) Save(path string) error {
	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding baseline: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating baseline dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing baseline %s: %w", path, err)
	}
	return nil
}

// LoadBaseline reads a baseline written by Save. A missing file yields an
// error matching os.ErrNotExist.
func LoadBaseline(path string) (*Baseline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b := new(Baseline)
	if err := json.Unmarshal(raw, b); err != nil {
		return nil, fmt.Errorf("parsing baseline %s: %w", path, err)
	}
	return b, nil
}

// ConfigFile is the optional threshold file inside the .nodemap directory.
const ConfigFile = "drift.yaml"

// Config holds the alert thresholds, in percent of the baseline value.
type Config struct {
	NodeGrowthInfoPct    float64 `json:"node_growth_info_pct" yaml:"node_growth_info_pct"`
	EdgeGrowthInfoPct    float64 `json:"edge_growth_info_pct" yaml:"edge_growth_info_pct"`
	EdgeLengthWarningPct float64 `json:"edge_length_warning_pct" yaml:"edge_length_warning_pct"`
}

func DefaultConfig() *Config {
	return &Config{NodeGrowthInfoPct: 10, EdgeGrowthInfoPct: 10, EdgeLengthWarningPct: 25}
}

// LoadConfig overlays the thresholds in path on the defaults. A missing
// file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return cfg, nil
	case err != nil:
		return nil, err
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing drift config %s: %w", path, err)
	}
	return cfg, nil
}

// Alert is one detected change. Baseline and Current are zero for alerts
// that carry Details instead.
type Alert struct {
	Type     AlertType `json:"type"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Baseline float64   `json:"baseline_value,omitempty"`
	Current  float64   `json:"current_value,omitempty"`
	Details  []string  `json:"details,omitempty"`
}

// Result is the outcome of Compare.
type Result struct {
	CheckedAt     time.Time `json:"checked_at"`
	HasDrift      bool      `json:"has_drift"`
	Alerts        []Alert   `json:"alerts"`
	CriticalCount int       `json:"critical_count"`
	WarningCount  int       `json:"warning_count"`
	InfoCount     int       `json:"info_count"`
}

func (r *Result) add(a Alert) {
	r.Alerts = append(r.Alerts, a)
	r.HasDrift = true
	switch a.Severity {
	case SeverityCritical:
		r.CriticalCount++
	case SeverityWarning:
		r.WarningCount++
	default:
		r.InfoCount++
	}
}

// Compare checks cur against the baseline. A nil cfg uses DefaultConfig.
func Compare(bl *Baseline, cur *analysis.Stats, cfg *Config) *Result {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	was := &bl.Stats
	r := &Result{CheckedAt: time.Now().UTC(), Alerts: []Alert{}}

	if was.Components < cur.Components {
		sev := SeverityWarning
		if was.Components <= 1 {
			sev = SeverityCritical
		}
		r.add(Alert{
			Type:     AlertFragmentation,
			Severity: sev,
			Message:  fmt.Sprintf("Map split into %d components (was %d)", cur.Components, was.Components),
			Baseline: float64(was.Components),
			Current:  float64(cur.Components),
		})
	}

	if n, m := len(was.Isolated), len(cur.Isolated); m > n {
		r.add(Alert{
			Type:     AlertIsolatedIncrease,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d more item(s) have no neighbour", m-n),
			Baseline: float64(n),
			Current:  float64(m),
		})
	}

	if pct, ok := change(float64(was.Nodes), float64(cur.Nodes), cfg.NodeGrowthInfoPct); ok {
		r.add(Alert{
			Type:     AlertNodeCountChange,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("Node count changed by %+d (%.1f%%)", cur.Nodes-was.Nodes, pct),
			Baseline: float64(was.Nodes),
			Current:  float64(cur.Nodes),
		})
	}
	if pct, ok := change(float64(was.Edges), float64(cur.Edges), cfg.EdgeGrowthInfoPct); ok {
		r.add(Alert{
			Type:     AlertEdgeCountChange,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("Edge count changed by %+d (%.1f%%)", cur.Edges-was.Edges, pct),
			Baseline: float64(was.Edges),
			Current:  float64(cur.Edges),
		})
	}

	if pct, ok := change(was.MeanEdgeLength, cur.MeanEdgeLength, cfg.EdgeLengthWarningPct); ok {
		r.add(Alert{
			Type:     AlertEdgeLengthChange,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Mean connection length changed by %.1f%%", pct),
			Baseline: was.MeanEdgeLength,
			Current:  cur.MeanEdgeLength,
		})
	}

	if moves := hubMoves(was.Hubs, cur.Hubs); len(moves) > 0 {
		r.add(Alert{
			Type:     AlertHubChange,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("%d hub change(s) detected", len(moves)),
			Details:  moves,
		})
	}
	return r
}

// change returns the relative change from was to now in percent and
// whether its magnitude reaches threshold. A non-positive baseline never
// reports.
func change(was, now, threshold float64) (float64, bool) {
	if was <= 0 {
		return 0, false
	}
	pct := (now - was) / was * 100
	return pct, pct >= threshold || pct <= -threshold
}

// hubMoves lists items that left or joined the hub set, sorted.
func hubMoves(was, now []analysis.Hub) []string {
	in := func(hubs []analysis.Hub, id string) bool {
		return slices.ContainsFunc(hubs, func(h analysis.Hub) bool { return h.ID == id })
	}
	var out []string
	for _, h := range was {
		if !in(now, h.ID) {
			out = append(out, h.ID+" dropped from hubs")
		}
	}
	for _, h := range now {
		if !in(was, h.ID) {
			out = append(out, h.ID+" entered hubs")
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Summary renders the result for a terminal.
func (r *Result) Summary() string {
	if !r.HasDrift {
		return "No drift detected. Map statistics are within baseline thresholds.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Drift: %d critical, %d warning, %d info\n\n", r.CriticalCount, r.WarningCount, r.InfoCount)
	for _, a := range r.Alerts {
		fmt.Fprintf(&b, "  %-8s %-18s %s\n", strings.ToUpper(string(a.Severity)), a.Type, a.Message)
		for _, d := range a.Details {
			fmt.Fprintf(&b, "           - %s\n", d)
		}
	}
	return b.String()
}

// ExitCode is 1 with a critical alert, 2 with a warning and 0 otherwise.
func (r *Result) ExitCode() int {
	switch {
	case r.CriticalCount > 0:
		return 1
	case r.WarningCount > 0:
		return 2
	}
	return 0
}

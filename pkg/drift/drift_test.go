package drift

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/nodemap/pkg/analysis"
)

func baseStats() analysis.Stats {
	return analysis.Stats{
		Nodes:          10,
		Edges:          16,
		Components:     1,
		Isolated:       []int{},
		MeanEdgeLength: 300,
		Hubs:           []analysis.Hub{{ID: "a"}, {ID: "b"}},
	}
}

func TestCalculate_NoDrift(t *testing.T) {
	s := baseStats()
	bl := NewBaseline("h", &s, "")
	cur := baseStats()
	cur.Nodes = 10
	cur.Edges = 17

	r := Compare(bl, &cur, nil)
	if r.HasDrift {
		t.Fatalf("unexpected drift: %+v", r.Alerts)
	}
	if r.ExitCode() != 0 {
		t.Errorf("exit code = %d", r.ExitCode())
	}
	if !strings.HasPrefix(r.Summary(), "No drift detected") {
		t.Errorf("summary = %q", r.Summary())
	}
}

func TestCalculate_Fragmentation(t *testing.T) {
	s := baseStats()
	bl := NewBaseline("h", &s, "")
	cur := baseStats()
	cur.Components = 3
	cur.Isolated = []int{7, 9}

	r := Compare(bl, &cur, nil)
	if r.CriticalCount != 1 || r.WarningCount != 1 {
		t.Fatalf("counts = %d critical, %d warning", r.CriticalCount, r.WarningCount)
	}
	if r.ExitCode() != 1 {
		t.Errorf("exit code = %d, want 1", r.ExitCode())
	}

	// An already split map only warns.
	s.Components = 2
	r = Compare(NewBaseline("h", &s, ""), &cur, nil)
	if r.CriticalCount != 0 || r.ExitCode() != 2 {
		t.Errorf("critical = %d, exit = %d", r.CriticalCount, r.ExitCode())
	}
}

func TestCalculate_SizeAndLength(t *testing.T) {
	s := baseStats()
	bl := NewBaseline("h", &s, "")
	cur := baseStats()
	cur.Nodes = 8
	cur.Edges = 20
	cur.MeanEdgeLength = 400

	r := Compare(bl, &cur, nil)
	types := map[AlertType]Severity{}
	for _, a := range r.Alerts {
		types[a.Type] = a.Severity
	}
	if types[AlertNodeCountChange] != SeverityInfo || types[AlertEdgeCountChange] != SeverityInfo {
		t.Errorf("size alerts = %v", types)
	}
	if types[AlertEdgeLengthChange] != SeverityWarning {
		t.Errorf("edge length alert = %v", types)
	}
}

func TestCalculate_HubChanges(t *testing.T) {
	s := baseStats()
	bl := NewBaseline("h", &s, "")
	cur := baseStats()
	cur.Hubs = []analysis.Hub{{ID: "b"}, {ID: "c"}}

	r := Compare(bl, &cur, nil)
	if len(r.Alerts) != 1 || r.Alerts[0].Type != AlertHubChange {
		t.Fatalf("alerts = %+v", r.Alerts)
	}
	want := []string{"a dropped from hubs", "c entered hubs"}
	if got := r.Alerts[0].Details; len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("details = %v", got)
	}
	if !strings.Contains(r.Summary(), "c entered hubs") {
		t.Error("summary should list details")
	}
}

func TestBaseline_SaveLoad(t *testing.T) {
	s := baseStats()
	s.OutDegree = map[int]int{1: 4, 2: 6}
	bl := NewBaseline("abc", &s, "before redesign")

	path := filepath.Join(t.TempDir(), ".nodemap", "baseline.json")
	if err := bl.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadBaseline(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Hash != "abc" || got.Description != "before redesign" {
		t.Errorf("baseline = %+v", got)
	}
	if got.Stats.Nodes != 10 || got.Stats.OutDegree[2] != 6 || len(got.Stats.Hubs) != 2 {
		t.Errorf("stats = %+v", got.Stats)
	}
}

func TestLoadBaseline_Errors(t *testing.T) {
	if _, err := LoadBaseline(filepath.Join(t.TempDir(), "missing.json")); !os.IsNotExist(err) {
		t.Errorf("err = %v, want not-exist", err)
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadBaseline(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, ConfigFile))
	if err != nil || *cfg != *DefaultConfig() {
		t.Fatalf("missing file: cfg=%+v err=%v", cfg, err)
	}

	path := filepath.Join(dir, ConfigFile)
	if err := os.WriteFile(path, []byte("edge_length_warning_pct: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EdgeLengthWarningPct != 5 || cfg.NodeGrowthInfoPct != 10 {
		t.Errorf("cfg = %+v", cfg)
	}
}

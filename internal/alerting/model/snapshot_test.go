package model

import "testing"

func TestSnapshotLookup(t *testing.T) {
	snap := Snapshot{
		"cpu_usage": 85.5,
		"disk": map[string]any{
			"used_percent": 91,
		},
	}
	if v, ok := snap.Lookup("cpu_usage"); !ok || v != 85.5 {
		t.Fatalf("cpu_usage: got %v %v", v, ok)
	}
	if v, ok := snap.Lookup("disk.used_percent"); !ok || v != 91 {
		t.Fatalf("disk.used_percent: got %v %v", v, ok)
	}
	if _, ok := snap.Lookup("memory_usage"); ok {
		t.Fatal("missing metric should not resolve")
	}
	if _, ok := snap.Lookup("cpu_usage.deeper"); ok {
		t.Fatal("path through a scalar should not resolve")
	}
}

func TestSnapshotSeries(t *testing.T) {
	snap := Snapshot{
		"latency_ms": []any{10.0, 20.0, 30.0},
		"cpu_usage":  50.0,
	}
	vals, ok := snap.Series("latency_ms")
	if !ok || len(vals) != 3 || vals[1] != 20.0 {
		t.Fatalf("series: got %v %v", vals, ok)
	}
	if _, ok := snap.Series("cpu_usage"); ok {
		t.Fatal("scalar should not be a series")
	}
}

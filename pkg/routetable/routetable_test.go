package routetable

import "testing"

func TestAddOrReplaceSmallerMetricWins(t *testing.T) {
	tbl := New(0x01, 0)
	tbl.AddOrReplace(Entry{Dst: 0x02, NextHop: 0x02, Metric: 3, Lqs: 0, ExpiresAt: 1000})
	changed := tbl.AddOrReplace(Entry{Dst: 0x02, NextHop: 0x03, Metric: 2, Lqs: -5, ExpiresAt: 2000})
	if !changed {
		t.Fatal("expected smaller metric to win")
	}
	e, ok := tbl.Find(0x02)
	if !ok || e.NextHop != 0x03 || e.Metric != 2 {
		t.Fatalf("got %+v", e)
	}
}

func TestAddOrReplaceEqualMetricHigherLqsWins(t *testing.T) {
	tbl := New(0x01, 0)
	tbl.AddOrReplace(Entry{Dst: 0x02, NextHop: 0x02, Metric: 3, Lqs: 10, ExpiresAt: 1000})
	changed := tbl.AddOrReplace(Entry{Dst: 0x02, NextHop: 0x03, Metric: 3, Lqs: 20, ExpiresAt: 2000})
	if !changed {
		t.Fatal("expected higher lqs at equal metric to win")
	}
	e, _ := tbl.Find(0x02)
	if e.NextHop != 0x03 {
		t.Fatalf("got %+v", e)
	}
}

func TestAddOrReplaceEqualCandidateRefreshesExpiryOnly(t *testing.T) {
	tbl := New(0x01, 0)
	tbl.AddOrReplace(Entry{Dst: 0x02, NextHop: 0x02, Metric: 2, Lqs: 10, ExpiresAt: 1000})
	changed := tbl.AddOrReplace(Entry{Dst: 0x02, NextHop: 0x02, Metric: 2, Lqs: 10, ExpiresAt: 5000})
	if changed {
		t.Fatal("equal candidate should not report a change")
	}
	e, _ := tbl.Find(0x02)
	if e.ExpiresAt != 5000 {
		t.Fatalf("expected ExpiresAt refreshed to 5000, got %d", e.ExpiresAt)
	}
}

func TestSweepExpiredKeepsSelfAndStatic(t *testing.T) {
	tbl := New(0x01, 0)
	tbl.AddOrReplace(Entry{Dst: 0x01, NextHop: 0x01, Metric: 0, ExpiresAt: 0})
	tbl.AddOrReplace(Entry{Dst: 0x02, NextHop: 0x02, Metric: 1, Origin: Static, ExpiresAt: 0})
	tbl.AddOrReplace(Entry{Dst: 0x03, NextHop: 0x03, Metric: 1, Origin: Dynamic, ExpiresAt: 0})

	tbl.SweepExpired(ExpiryMs + 1)

	if _, ok := tbl.Find(0x01); !ok {
		t.Fatal("self route must never expire")
	}
	if _, ok := tbl.Find(0x02); !ok {
		t.Fatal("static route must never expire")
	}
	if _, ok := tbl.Find(0x03); ok {
		t.Fatal("idle dynamic route should have expired")
	}
}

func TestSweepExpiredRemovesUnreachableMetric(t *testing.T) {
	tbl := New(0x01, 0)
	tbl.AddOrReplace(Entry{Dst: 0x02, NextHop: 0x02, Metric: 15, Origin: Dynamic, ExpiresAt: 0})
	tbl.SweepExpired(1)
	if _, ok := tbl.Find(0x02); ok {
		t.Fatal("route with metric >= TTLDefault should be swept as unreachable")
	}
}

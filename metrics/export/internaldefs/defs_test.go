package internaldefs

import (
	"math"
	"strings"
	"testing"

	webster "github.com/babymilooo/webster-backend"
)

func TestCounterDefsAreUniqueAndPrefixed(t *testing.T) {
	names := map[string]bool{}
	ids := map[webster.MetricID]bool{}
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "webster_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %q", def.Name)
		}
		if names[def.Name] || ids[def.ID] {
			t.Fatalf("duplicate counter %q", def.Name)
		}
		if def.ID == webster.MetricValidateLatency {
			t.Fatalf("histogram id listed as counter: %q", def.Name)
		}
		names[def.Name] = true
		ids[def.ID] = true
	}
	if int(webster.MetricValidateLatency) != len(CounterDefs) {
		t.Fatalf("expected %d counters, got %d", webster.MetricValidateLatency, len(CounterDefs))
	}
}

func TestBuckets(t *testing.T) {
	raw := NormalizeBuckets([]uint64{1, 2, 3})
	if raw != [8]uint64{1, 2, 3} {
		t.Fatalf("normalize: %v", raw)
	}
	cum := CumulativeBuckets([8]uint64{1, 1, 1, 1, 1, 1, 1, 1})
	if cum[0] != 1 || cum[7] != 8 {
		t.Fatalf("cumulative: %v", cum)
	}
	if got := ApproxSum([8]uint64{2, 0, 0, 0, 0, 0, 0, 1}); math.Abs(got-0.51) > 1e-9 {
		t.Fatalf("approx sum: %v", got)
	}
	if len(HistogramBoundSuffix) != len(HistogramBounds)+1 {
		t.Fatal("suffixes must cover +Inf")
	}
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDecision(t *testing.T) {
	before := testutil.ToFloat64(decisionsTotal.WithLabelValues("LINKED_MANUAL"))
	RecordDecision("LINKED_MANUAL")
	RecordDecision("LINKED_MANUAL")

	if got := testutil.ToFloat64(decisionsTotal.WithLabelValues("LINKED_MANUAL")); got != before+2 {
		t.Fatalf("decisions = %v, want %v", got, before+2)
	}
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	cases := map[int]string{200: "2xx", 302: "3xx", 409: "4xx", 503: "5xx", 99: "unknown"}
	for code, want := range cases {
		if got := classifyStatus(code); got != want {
			t.Fatalf("classifyStatus(%d) = %q, want %q", code, got, want)
		}
	}
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestIncPrefixesStatName(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewPromScope(reg, "engine")

	if err := s.Inc("issuance.count", 1); err != nil {
		t.Fatalf("Inc: %v", err)
	}
	if err := s.Inc("issuance.count", 2); err != nil {
		t.Fatalf("Inc: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "engine_issuance_count" {
			found = f
		}
	}
	if found == nil {
		t.Fatal("expected a metric family named engine_issuance_count")
	}
	if got := found.Metric[0].GetCounter().GetValue(); got != 3 {
		t.Fatalf("expected counter value 3, got %v", got)
	}
}

func TestNoopScopeDoesNothing(t *testing.T) {
	s := NewNoopScope()
	if err := s.Inc("anything", 1); err != nil {
		t.Fatalf("expected no error from noop scope, got %v", err)
	}
	child := s.NewScope("sub")
	if err := child.Gauge("g", 5); err != nil {
		t.Fatalf("expected no error from noop child scope, got %v", err)
	}
}

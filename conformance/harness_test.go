package conformance

import "testing"

// TestConformance runs the full conformance suite against an in-process
// service instance.
func TestConformance(t *testing.T) {
	h, err := NewHarness()
	if err != nil {
		t.Fatalf("failed to create harness: %v", err)
	}
	defer h.Close()

	h.RunConformanceTests(t)
}

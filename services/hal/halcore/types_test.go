// services/hal/halcore/types_test.go

package halcore

import "testing"

func TestEdgeToString(t *testing.T) {
	if EdgeToString(EdgeRising) != "rising" ||
		EdgeToString(EdgeFalling) != "falling" ||
		EdgeToString(EdgeBoth) != "both" ||
		EdgeToString(EdgeNone) != "none" {
		t.Fatal("EdgeToString mapping incorrect")
	}
}

func TestEdgeToString_OutOfRange(t *testing.T) {
	if got := EdgeToString(Edge(42)); got != "none" {
		t.Fatalf("EdgeToString(42) = %q, want none", got)
	}
}

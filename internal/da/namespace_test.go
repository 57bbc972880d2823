package da

import "testing"

func TestDeriveNamespaceIsDeterministicAndDistinguishesRollups(t *testing.T) {
	a := [32]byte{1, 2, 3}
	b := [32]byte{1, 2, 4}

	if DeriveNamespace(a) != DeriveNamespace(a) {
		t.Fatal("DeriveNamespace must be deterministic for the same rollup id")
	}
	if DeriveNamespace(a) == DeriveNamespace(b) {
		t.Fatal("different rollup ids must not collide in this test")
	}
	if DeriveNamespace(a) == DefaultNamespace {
		t.Fatal("a derived namespace must not collide with the fixed default namespace")
	}
}

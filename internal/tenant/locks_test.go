package tenant

import "testing"

func strptr(s string) *string { return &s }

func TestLockRegistry_LocksAreIndependent(t *testing.T) {
	r := NewLockRegistry()

	r.SetLock("editorA", strptr("unsaved diagram"))
	r.SetLock("editorB", strptr("import in progress"))

	r.SetLock("editorA", nil)
	if !r.IsLocked() {
		t.Fatalf("releasing one of two locks must keep the registry locked")
	}

	r.SetLock("editorB", nil)
	if r.IsLocked() {
		t.Fatalf("releasing the last lock must unlock the registry")
	}
}

func TestLockRegistry_SetOverwritesReason(t *testing.T) {
	r := NewLockRegistry()
	r.SetLock("editorA", strptr("first"))
	r.SetLock("editorA", strptr("second"))

	reason, ok := r.CurrentReason()
	if !ok || reason != "second" {
		t.Fatalf("expected overwritten reason, got %q ok=%v", reason, ok)
	}

	r.SetLock("editorA", nil)
	if _, ok := r.CurrentReason(); ok {
		t.Fatalf("expected no reason on an empty registry")
	}
}

func TestLockRegistry_ReleasingUnknownLockIsHarmless(t *testing.T) {
	r := NewLockRegistry()
	r.SetLock("ghost", nil)
	if r.IsLocked() {
		t.Fatalf("empty registry must not report locked")
	}
}

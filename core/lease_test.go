package core

import (
	"strings"
	"testing"
)

func expectPanic(t *testing.T, contains string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("Expected panic containing %q", contains)
		}
		msg, _ := r.(string)
		if !strings.Contains(msg, contains) {
			t.Errorf("Expected panic containing %q, got %v", contains, r)
		}
	}()
	fn()
}

func TestLeaseTransfer(t *testing.T) {
	o := NewOwner("timer0")
	idle := o.Lease()
	if !idle.Valid() {
		t.Fatal("Expected first lease to be valid")
	}

	active := idle.Transfer()
	if idle.Valid() {
		t.Error("Expected consumed lease to be invalid")
	}
	if !active.Valid() {
		t.Error("Expected transferred lease to be valid")
	}
	if active.Owner() != o {
		t.Error("Expected lease to keep its owner")
	}
}

func TestLeaseReusePanics(t *testing.T) {
	o := NewOwner("rng")
	idle := o.Lease()
	_ = idle.Transfer()

	expectPanic(t, "rng", func() {
		idle.Transfer()
	})
}

func TestZeroLeasePanics(t *testing.T) {
	var l Lease
	if l.Valid() {
		t.Error("Zero lease must not be valid")
	}
	expectPanic(t, "zero peripheral handle", func() {
		l.Check()
	})
}

func TestOwnerIssuesOnce(t *testing.T) {
	o := NewOwner("rtc1")
	o.Lease()
	expectPanic(t, "already issued", func() {
		o.Lease()
	})
}

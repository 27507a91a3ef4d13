package linker

import (
	"errors"
	"testing"
)

func TestRegistryCreateValidation(t *testing.T) {
	reg := NewRegistry(2)

	if _, err := reg.Create("", ""); !errors.Is(err, ErrEmptyID) {
		t.Errorf("empty id err = %v, want ErrEmptyID", err)
	}

	if _, err := reg.Create("a", "seed"); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if _, err := reg.Create("a", ""); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate id err = %v, want ErrExists", err)
	}

	if _, err := reg.Create("b", ""); err != nil {
		t.Fatalf("create b: %v", err)
	}
	if _, err := reg.Create("c", ""); !errors.Is(err, ErrCapacity) {
		t.Errorf("over capacity err = %v, want ErrCapacity", err)
	}
}

func TestRegistrySeedAnchorIsInert(t *testing.T) {
	reg := NewRegistry(0)
	c, err := reg.Create("a", "boot")
	if err != nil {
		t.Fatal(err)
	}
	res := c.Residues()
	if len(res) != 1 || res[0].Anchor != "boot" || res[0].Activation != nil || res[0].Context != nil {
		t.Errorf("seed residue = %+v, want inert boot anchor", res)
	}
	if c.Phase() != PhaseDormant || c.Class() != ClassUnresolved {
		t.Errorf("fresh component = %s/%s, want dormant/unresolved", c.Phase(), c.Class())
	}
}

func TestRegistryIDsNeverReused(t *testing.T) {
	reg := NewRegistry(0)
	if _, err := reg.Create("a", ""); err != nil {
		t.Fatal(err)
	}
	if err := reg.Destroy("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Create("a", ""); !errors.Is(err, ErrExists) {
		t.Errorf("reused id err = %v, want ErrExists", err)
	}
}

func TestRegistryDestroy(t *testing.T) {
	reg := NewRegistry(0)
	j := NewJournal(0)
	canon := NewCanonicalResolver(nil, &stubClock{}, j)

	rep, _ := reg.Create("rep", "")
	member, _ := reg.Create("member", "")
	canon.Resolve(reg, rep)
	canon.Resolve(reg, member)

	if err := reg.Destroy("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("destroy missing err = %v, want ErrNotFound", err)
	}
	// A representative with live members refuses to die.
	if err := reg.Destroy("rep"); !errors.Is(err, ErrCanonicalReferent) {
		t.Errorf("destroy referenced rep err = %v, want ErrCanonicalReferent", err)
	}
	// Members go freely, after which the representative may too.
	if err := reg.Destroy("member"); err != nil {
		t.Fatalf("destroy member: %v", err)
	}
	if err := reg.Destroy("rep"); err != nil {
		t.Fatalf("destroy rep after member: %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("len = %d, want 0", reg.Len())
	}
}

func TestRegistryLoneRepresentativeDestroyable(t *testing.T) {
	reg := NewRegistry(0)
	canon := NewCanonicalResolver(nil, &stubClock{}, NewJournal(0))

	c, _ := reg.Create("solo", "")
	canon.Resolve(reg, c)

	// The self-reference of a representative does not count as a referent.
	if err := reg.Destroy("solo"); err != nil {
		t.Fatalf("destroy lone representative: %v", err)
	}
}

func TestRegistryIterationOrder(t *testing.T) {
	reg := NewRegistry(0)
	for _, id := range []ComponentID{"one", "two", "three", "four"} {
		if _, err := reg.Create(id, ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := reg.Destroy("two"); err != nil {
		t.Fatal(err)
	}

	var got []ComponentID
	for _, c := range reg.Components() {
		got = append(got, c.ID())
	}
	want := []ComponentID{"one", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

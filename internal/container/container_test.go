package container

import "testing"

type fakeEntity struct {
	idx   int
	name  string
	alias string
}

func (f fakeEntity) Idx() int        { return f.idx }
func (f *fakeEntity) SetIdx(idx int) { f.idx = idx }
func (f fakeEntity) Name() string    { return f.name }
func (f fakeEntity) Alias() string   { return f.alias }

// the interface methods are mixed value/pointer receivers above for
// SetIdx, so the container is parameterised over *fakeEntity.

func TestContainer_AddFindKeys(t *testing.T) {
	c := New[*fakeEntity]()
	c.Add(&fakeEntity{idx: 2, name: "b"})
	c.Add(&fakeEntity{idx: 0, name: "a"})
	c.Add(&fakeEntity{idx: 1, name: "c"})

	if c.Size() != 3 {
		t.Fatalf("expected size 3, got %d", c.Size())
	}

	keys := c.Keys()
	want := []int{0, 1, 2}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("keys[%d] = %d, want %d", i, keys[i], k)
		}
	}

	elems := c.Elems()
	if elems[0].Name() != "a" || elems[1].Name() != "c" || elems[2].Name() != "b" {
		t.Fatalf("unexpected element order: %+v", elems)
	}
}

func TestContainer_FindByName(t *testing.T) {
	c := New[*fakeEntity]()
	c.Add(&fakeEntity{idx: 0, name: "node1"})
	c.Add(&fakeEntity{idx: 1, name: "node2"})
	c.Add(&fakeEntity{idx: 2, name: "node1"})

	if _, err := c.FindByName("node2"); err != nil {
		t.Fatalf("expected node2 to resolve, got %v", err)
	}

	_, err := c.FindByName("node1")
	if err == nil {
		t.Fatal("expected ambiguous error for node1")
	}
	if le, ok := err.(*LookupError); !ok || !le.Ambiguous {
		t.Fatalf("expected ambiguous LookupError, got %#v", err)
	}

	_, err = c.FindByName("missing")
	if err == nil {
		t.Fatal("expected not-found error")
	}
	if le, ok := err.(*LookupError); !ok || le.Ambiguous {
		t.Fatalf("expected not-found LookupError, got %#v", err)
	}
}

func TestContainer_FromList(t *testing.T) {
	items := []*fakeEntity{{name: "x"}, {name: "y"}}
	c := FromList(items)
	if items[0].Idx() != 0 || items[1].Idx() != 1 {
		t.Fatalf("FromList did not assign indices: %+v %+v", items[0], items[1])
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestFold(t *testing.T) {
	c := New[*fakeEntity]()
	c.Add(&fakeEntity{idx: 0, name: "a"})
	c.Add(&fakeEntity{idx: 1, name: "bb"})
	total := Fold(c, 0, func(acc int, e *fakeEntity) int {
		return acc + len(e.Name())
	})
	if total != 3 {
		t.Fatalf("expected 3, got %d", total)
	}
}

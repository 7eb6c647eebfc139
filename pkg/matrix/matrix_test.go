package matrix

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"src.cgv.sh/pkg/tt"
)

func TestSetUnsetRoundTrip(t *testing.T) {
	steps := []struct {
		change Change[int]
		want   string
	}{
		{SetChange([]int{}, 22), "22"},
		{SetChange([]int{2}, 7), "[_,_,7]"},
		{SetChange([]int{4}, 3), "[_,_,7,_,3]"},
		{UnsetChange[int]([]int{4}), "[_,_,7]"},
		{SetChange([]int{0, 1}, 4), "[[_,4],_,7]"},
		{UnsetChange[int]([]int{2}), "[[_,4]]"},
		{UnsetChange[int]([]int{0, 0}), "[[_,4]]"},
		{UnsetChange[int]([]int{0}), "_"},
		{SetChange([]int{1, 0}, 4), "[_,[4]]"},
	}
	m := Absent[int]()
	for _, step := range steps {
		m = Apply(m, step.change)
		if got := m.String(); got != step.want {
			t.Fatalf("after %v got %s, want %s", step.change, got, step.want)
		}
	}
}

func TestSet_IsPersistent(t *testing.T) {
	m1 := Set(Absent[int](), []int{1}, 1)
	m2 := Set(m1, []int{0}, 0)
	if m1.String() != "[_,1]" || m2.String() != "[0,1]" {
		t.Errorf("got %s and %s", m1, m2)
	}
}

func TestUnset_AbsentPathIsNoop(t *testing.T) {
	tt.Test(t, tt.Fn("Unset", func(m Matrix[int], index []int) string {
		return Unset(m, index).String()
	}), tt.Table{
		tt.Args(Absent[int](), []int{3}).Rets("_"),
		tt.Args(Scalar(5), []int{0}).Rets("5"),
		tt.Args(Of[int](1, 2), []int{5}).Rets("[1,2]"),
		tt.Args(Of[int](1, 2), []int{1, 0}).Rets("[1,2]"),
		tt.Args(Of[int](1, 2), []int{}).Rets("_"),
	})
}

func TestOf_Normalizes(t *testing.T) {
	tt.Test(t, tt.Fn("Of", func(elems ...any) string {
		return Of[int](elems...).String()
	}), tt.Table{
		tt.Args().Rets("_"),
		tt.Args(nil, nil).Rets("_"),
		tt.Args(1, nil).Rets("[1]"),
		tt.Args([]any{nil}, 2).Rets("[_,2]"),
		tt.Args([]any{1, []any{nil, 2}}, nil).Rets("[[1,[_,2]]]"),
	})
}

func TestEqual(t *testing.T) {
	a := Set(Set(Absent[int](), []int{0, 1}, 4), []int{2}, 7)
	tt.Test(t, tt.Fn("Equal", Matrix[int].Equal), tt.Table{
		tt.Args(a, Of[int]([]any{nil, 4}, nil, 7)).Rets(true),
		tt.Args(a, Of[int]([]any{nil, 4}, nil, 8)).Rets(false),
		tt.Args(Absent[int](), Of[int](nil)).Rets(true),
		tt.Args(Scalar(1), Of[int](1)).Rets(false),
	})
	// Equal is used by go-cmp.
	if !cmp.Equal(a, Of[int]([]any{nil, 4}, nil, 7)) {
		t.Errorf("cmp.Equal does not use Matrix.Equal")
	}
}

func TestGetAndEach(t *testing.T) {
	m := Of[string]([]any{"a", nil, "b"}, nil, "c")
	if v, ok := m.Get([]int{0, 2}); !ok || v != "b" {
		t.Errorf("Get([0 2]) -> %q, %v", v, ok)
	}
	if _, ok := m.Get([]int{0, 1}); ok {
		t.Errorf("Get([0 1]) found a value")
	}
	if _, ok := m.Get([]int{2, 0}); ok {
		t.Errorf("Get([2 0]) found a value below a scalar")
	}

	var got []Change[string]
	m.Each(func(index []int, v string) {
		got = append(got, SetChange(append([]int(nil), index...), v))
	})
	want := []Change[string]{
		SetChange([]int{0, 0}, "a"),
		SetChange([]int{0, 2}, "b"),
		SetChange([]int{2}, "c"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Each order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, Changes(m)); diff != "" {
		t.Errorf("Changes (-want +got):\n%s", diff)
	}
	if !Apply(Absent[string](), Changes(m)...).Equal(m) {
		t.Errorf("applying Changes does not rebuild the matrix")
	}
}

package pattern

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/config"
	"src.cgv.sh/pkg/interp"
	"src.cgv.sh/pkg/ops"
	"src.cgv.sh/pkg/tt"
)

type value = interp.Value[any, struct{}]

var (
	allTypes = []Type[any, struct{}]{All[any, struct{}]{}, IndexModulo[any, struct{}]{}, ID[any, struct{}]{}}
	ctx      = context.Background()
)

func values(indices ...[]int) []value {
	vs := make([]value, len(indices))
	for i, index := range indices {
		vs[i] = interp.NewValue[any, struct{}](i, index...)
	}
	return vs
}

var (
	flat   = values([]int{0}, []int{1}, []int{2}, []int{3}, []int{4}, []int{5})
	nested = values([]int{0, 0}, []int{0, 1}, []int{1, 0}, []int{1, 1}, []int{2, 0})
)

// subsets returns all subsets of vs.
func subsets(vs []value) [][]value {
	var result [][]value
	for mask := 0; mask < 1<<len(vs); mask++ {
		var s []value
		for i, v := range vs {
			if mask&(1<<i) != 0 {
				s = append(s, v)
			}
		}
		result = append(result, s)
	}
	return result
}

func keys(vs []value) []string {
	var ks []string
	for _, v := range vs {
		ks = append(ks, v.Key())
	}
	return ks
}

func selectedBy(p *Pattern[any, struct{}], all []value) []value {
	var s []value
	for _, v := range all {
		if p.IsSelected(v) {
			s = append(s, v)
		}
	}
	return s
}

func TestMatchingCondition_IsExact(t *testing.T) {
	for _, all := range [][]value{flat, nested} {
		for _, selected := range subsets(all) {
			if len(selected) == 0 {
				continue
			}
			p, err := MatchingCondition(ctx, all, selected, allTypes, SelectSmallest[any, struct{}])
			if err != nil {
				t.Errorf("selection %v: %v", keys(selected), err)
				continue
			}
			if diff := cmp.Diff(keys(selected), keys(selectedBy(p, all))); diff != "" {
				t.Errorf("pattern %q for selection %v (-want +got):\n%s", p.Description, keys(selected), diff)
			}
		}
	}
}

func TestContainingCondition_IsSuperset(t *testing.T) {
	types := []Type[any, struct{}]{IndexModulo[any, struct{}]{}, All[any, struct{}]{}}
	for _, selected := range subsets(flat) {
		if len(selected) == 0 {
			continue
		}
		p, err := ContainingCondition(ctx, flat, selected, types, SelectFirst[any, struct{}])
		if err != nil {
			t.Errorf("selection %v: %v", keys(selected), err)
			continue
		}
		got := make(map[string]bool)
		for _, k := range keys(selectedBy(p, flat)) {
			got[k] = true
		}
		for _, k := range keys(selected) {
			if !got[k] {
				t.Errorf("pattern %q for selection %v misses %s", p.Description, keys(selected), k)
			}
		}
	}
}

func TestID_NeverFails(t *testing.T) {
	types := []Type[any, struct{}]{ID[any, struct{}]{}}
	for _, all := range [][]value{flat, nested} {
		for _, selected := range subsets(all) {
			if len(selected) == 0 || len(selected) == len(all) {
				continue
			}
			if _, err := MatchingCondition(ctx, all, selected, types, SelectFirst[any, struct{}]); err != nil {
				t.Errorf("selection %v: %v", keys(selected), err)
			}
		}
	}
}

func TestMatchingCondition_Conditions(t *testing.T) {
	tt.Test(t, tt.Fn("MatchingCondition", func(selected []value) (string, string, error) {
		p, err := MatchingCondition(ctx, flat, selected, allTypes, SelectSmallest[any, struct{}])
		if err != nil {
			return "", "", err
		}
		if p.GenerateStep == nil {
			return p.Description, "", nil
		}
		return p.Description, ast.Format(p.GenerateStep()), nil
	}), tt.Table{
		tt.Args(flat).Rets("all", "", nil),
		tt.Args(pick(flat, 1, 3, 5)).Rets("index % 2 is in 1", "(index() % 2) == 1", nil),
		tt.Args(pick(flat, 0, 3)).Rets("index % 3 is in 0", "(index() % 3) == 0", nil),
		tt.Args(pick(flat, 2)).Rets(`id is in 2`, `id() == "2"`, nil),
		tt.Args(pick(flat, 0, 2, 4)).Rets("index % 2 is in 0", "(index() % 2) == 0", nil),
		tt.Args(pick(flat, 0, 2)).Rets("id is in 0; 2", `(id() == "0") || (id() == "2")`, nil),
		tt.Args([]value(nil)).Rets("", "", tt.ErrorMatching("no pattern found")),
	})
}

func pick(vs []value, positions ...int) []value {
	var s []value
	for _, i := range positions {
		s = append(s, vs[i])
	}
	return s
}

func TestMatchingCondition_ErrNoPatternFound(t *testing.T) {
	_, err := MatchingCondition(ctx, flat, pick(flat, 2), []Type[any, struct{}]{All[any, struct{}]{}}, SelectFirst[any, struct{}])
	if !errors.Is(err, ErrNoPatternFound) {
		t.Errorf("got error %v, want ErrNoPatternFound", err)
	}
}

func TestMatchingCondition_IsDeterministic(t *testing.T) {
	selected := pick(nested, 1, 2, 4)
	var conditions []string
	for i := 0; i < 5; i++ {
		p, err := MatchingCondition(ctx, nested, selected, []Type[any, struct{}]{ID[any, struct{}]{}}, SelectFirst[any, struct{}])
		if err != nil {
			t.Fatal(err)
		}
		conditions = append(conditions, ast.Format(p.GenerateStep()))
	}
	want := `((id() == "0,1") || (id() == "1,0")) || (id() == "2,0")`
	for _, c := range conditions {
		if c != want {
			t.Errorf("got condition %s, want %s", c, want)
		}
	}
}

func TestID_OrdersByIndex(t *testing.T) {
	all := values([]int{0, 2}, []int{0, 10}, []int{1}, []int{0, 9})
	p, err := MatchingCondition(ctx, all, pick(all, 1, 0), []Type[any, struct{}]{ID[any, struct{}]{}}, SelectFirst[any, struct{}])
	if err != nil {
		t.Fatal(err)
	}
	if want := "id is in 0,2; 0,10"; p.Description != want {
		t.Errorf("got description %q, want %q", p.Description, want)
	}
	if want := `(id() == "0,2") || (id() == "0,10")`; ast.Format(p.GenerateStep()) != want {
		t.Errorf("got condition %s, want %s", ast.Format(p.GenerateStep()), want)
	}
}

func TestCompareKeys(t *testing.T) {
	tt.Test(t, tt.Fn("compareKeys", compareKeys), tt.Table{
		tt.Args("0,2", "0,10").Rets(-1),
		tt.Args("1", "0,10").Rets(1),
		tt.Args("", "0").Rets(-1),
		tt.Args("3,1", "3,1").Rets(0),
	})
}

func TestSelector_ReceivesAllCandidates(t *testing.T) {
	var got []string
	selector := func(ctx context.Context, candidates []*Pattern[any, struct{}]) (*Pattern[any, struct{}], error) {
		for _, c := range candidates {
			got = append(got, c.Description)
		}
		return candidates[len(candidates)-1], nil
	}
	p, err := MatchingCondition(ctx, flat, pick(flat, 1, 3, 5), allTypes, selector)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"index % 2 is in 1", "id is in 1; 3; 5"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if p.Description != "id is in 1; 3; 5" {
		t.Errorf("selector choice not used, got %q", p.Description)
	}
}

func TestGeneratedConditions_SelectInInterpreter(t *testing.T) {
	all := flat[:4]
	for _, selected := range subsets(all) {
		if len(selected) == 0 || len(selected) == len(all) {
			continue
		}
		p, err := MatchingCondition(ctx, all, selected, allTypes, SelectSmallest[any, struct{}])
		if err != nil {
			t.Fatal(err)
		}
		g := ast.Grammar{{Name: "a", Step: ast.NewIf(p.GenerateStep(), ast.NewThis(), ast.NewNull())}}
		in := make(chan value, len(all))
		for _, v := range all {
			in <- v
		}
		close(in)
		run, err := interp.Interpret(ctx, in, g, ops.Builtins[any, struct{}](), config.Default(), 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		out, err := interp.Collect(run)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(keys(selected), keys(out)); diff != "" {
			t.Errorf("condition %s (-want +got):\n%s", ast.Format(p.GenerateStep()), diff)
		}
	}
}

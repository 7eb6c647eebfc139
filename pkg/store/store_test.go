package store_test

import (
	"path/filepath"
	"testing"

	"src.cgv.sh/pkg/ast"
	"src.cgv.sh/pkg/store"
	"src.cgv.sh/pkg/store/storetest"
)

func TestGrammar(t *testing.T) {
	storetest.TestGrammar(t, store.MustTempStore(t))
}

func TestRevision(t *testing.T) {
	storetest.TestRevision(t, store.MustTempStore(t))
}

func TestNewStore_Reopen(t *testing.T) {
	name := filepath.Join(t.TempDir(), "cgv.db")
	g := ast.Grammar{{Name: "a", Step: ast.NewRaw(1)}}

	st, err := store.NewStore(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.PutGrammar("a", g); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st, err = store.NewStore(name)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if got, err := st.Grammar("a"); err != nil || !got.Equal(g) {
		t.Errorf("after reopening got (%s, %v), want (%s, nil)", got.Format(), err, g.Format())
	}
}

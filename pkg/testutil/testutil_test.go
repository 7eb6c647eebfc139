package testutil

import (
	"os"
	"testing"
)

type cleanups []func()

func (c *cleanups) Cleanup(f func()) { *c = append(*c, f) }

func (c cleanups) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func TestSet(t *testing.T) {
	var c cleanups
	x := 1
	Set(&c, &x, 2)
	if x != 2 {
		t.Errorf("Set did not set")
	}
	c.run()
	if x != 1 {
		t.Errorf("cleanup did not restore")
	}
}

func TestSetenv(t *testing.T) {
	const name = "CGV_TESTUTIL_VAR"
	os.Unsetenv(name)
	var c cleanups
	Setenv(&c, name, "foo")
	if os.Getenv(name) != "foo" {
		t.Errorf("Setenv did not set")
	}
	c.run()
	if _, ok := os.LookupEnv(name); ok {
		t.Errorf("cleanup did not unset")
	}
}

func TestTempFile(t *testing.T) {
	path := TempFile(t, "f.txt", "content")
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "content" {
		t.Errorf("got (%q, %v), want (%q, nil)", data, err, "content")
	}
}

package util

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStackOrder(t *testing.T) {
	s := Stack[int]{}
	if _, ok := s.Pop(); ok {
		t.Fatal("empty stack must not pop")
	}
	s.Push(1)
	s.Push(2)
	s.Push(3)
	if s.Size() != 3 {
		t.Fatalf("size = %d, want 3", s.Size())
	}
	if top, _ := s.Peek(); top != 3 {
		t.Fatalf("peek = %d, want 3", top)
	}
	for _, want := range []int{3, 2, 1} {
		got, ok := s.Pop()
		if !ok || got != want {
			t.Fatalf("pop = %d, %t, want %d", got, ok, want)
		}
	}
}

func TestPerrorCollects(t *testing.T) {
	pe := NewPerror(4)
	pe.Append(errors.New("first"))
	pe.Append(nil) // Ignored.
	pe.Append(errors.New("second"))
	pe.Stop()
	if pe.Len() != 2 {
		t.Fatalf("len = %d, want 2", pe.Len())
	}
	errs := pe.Errors()
	if errs[0].Error() != "first" || errs[1].Error() != "second" {
		t.Fatalf("errors = %v, want arrival order", errs)
	}
}

func TestLoadConfigMergesUnderFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "midlc.toml")
	data := `
out = "from-file.o"
emit = "bc"
threads = 8
verify = true

[target]
arch = "aarch64"
os = "linux"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	// Flag-set fields win; unset fields come from the file.
	opt := Options{Out: "from-flag.o"}
	if err := LoadConfig(path, &opt); err != nil {
		t.Fatal(err)
	}
	if opt.Out != "from-flag.o" {
		t.Errorf("Out = %q, flags must win", opt.Out)
	}
	if opt.Emit != "bc" || opt.Threads != 8 || !opt.Verify {
		t.Errorf("file values not merged: %+v", opt)
	}
	if opt.TargetArch != Aarch64 || opt.TargetOS != Linux {
		t.Errorf("target not merged: %+v", opt)
	}
}

func TestParseTargetIdentifiers(t *testing.T) {
	if _, err := ParseArch("sparc"); err == nil {
		t.Error("unknown architectures must be rejected")
	}
	if v, err := ParseVendor("apple"); err != nil || v != Apple {
		t.Errorf("ParseVendor(apple) = %d, %v", v, err)
	}
	if o, err := ParseOS("mac"); err != nil || o != MAC {
		t.Errorf("ParseOS(mac) = %d, %v", o, err)
	}
}

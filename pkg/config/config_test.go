package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"emcmot-go/pkg/errors"
)

func TestLoadString(t *testing.T) {
	data := `
; machine file
[EMCMOT]
SHMEM_KEY = 111
COMM_TIMEOUT = 1.0   # seconds

[TRAJ]
AXES = 3
HOME = 0 0 0 0 0 0
`

	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	if !cfg.HasSection("EMCMOT") || !cfg.HasSection("TRAJ") {
		t.Fatalf("sections = %v", cfg.GetSectionNames())
	}
	if cfg.HasSection("nonexistent") {
		t.Error("expected [nonexistent] section to not exist")
	}

	sec, err := cfg.GetSection("EMCMOT")
	if err != nil {
		t.Fatalf("GetSection(EMCMOT) failed: %v", err)
	}
	key, err := sec.GetInt("shmem_key")
	if err != nil || key != 111 {
		t.Errorf("GetInt(shmem_key) = %d, %v", key, err)
	}
	timeout, err := sec.GetFloat("COMM_TIMEOUT")
	if err != nil || timeout != 1.0 {
		t.Errorf("trailing comment not stripped: %v, %v", timeout, err)
	}
}

func TestSectionGet(t *testing.T) {
	data := `
[test]
string_val = hello
int_val = 42
float_val = 3.14
bool_true = true
bool_false = no
bool_one = 1
floats = 1 2.5   -3
colon_style: 7
`

	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	sec, _ := cfg.GetSection("test")

	if val, _ := sec.Get("missing", "default"); val != "default" {
		t.Errorf("expected 'default', got '%s'", val)
	}
	if i, _ := sec.GetInt("int_val"); i != 42 {
		t.Errorf("expected 42, got %d", i)
	}
	if i, _ := sec.GetInt("missing", 99); i != 99 {
		t.Errorf("expected 99, got %d", i)
	}
	if i, _ := sec.GetInt("colon_style"); i != 7 {
		t.Errorf("expected 7, got %d", i)
	}
	if f, _ := sec.GetFloat("float_val"); f != 3.14 {
		t.Errorf("expected 3.14, got %f", f)
	}

	bools := []struct {
		option string
		want   bool
	}{
		{"bool_true", true},
		{"bool_false", false},
		{"bool_one", true},
	}
	for _, tt := range bools {
		if b, err := sec.GetBool(tt.option); err != nil || b != tt.want {
			t.Errorf("GetBool(%s) = %v, %v", tt.option, b, err)
		}
	}

	list, err := sec.GetFloatList("floats")
	if err != nil {
		t.Fatalf("GetFloatList failed: %v", err)
	}
	if len(list) != 3 || list[0] != 1 || list[1] != 2.5 || list[2] != -3 {
		t.Errorf("unexpected list values: %v", list)
	}
	if _, err := sec.GetFloatN("floats", 6); err == nil {
		t.Error("expected error for wrong number of values")
	}
}

func TestMalformedLine(t *testing.T) {
	if _, err := LoadString("[TRAJ]\nAXES 3\n"); err == nil {
		t.Error("expected error for line without '='")
	}
	if _, err := LoadString("[]\n"); err == nil {
		t.Error("expected error for empty section header")
	}
	if _, err := LoadString("#INCLUDE other.ini\n"); err == nil {
		t.Error("expected include to be rejected in LoadString")
	}
}

func TestAccessTracking(t *testing.T) {
	data := `
[used]
used1 = value1
used2 = value2
unused1 = value3

[untouched]
key = value
`

	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	sec, _ := cfg.GetSection("used")
	sec.Get("used1")
	sec.Get("USED2")
	sec.Get("never_set", "fallback")

	if unused := sec.GetUnusedOptions(); len(unused) != 1 || unused[0] != "unused1" {
		t.Errorf("unused options = %v", unused)
	}
	if unused := cfg.UnusedOptions(); len(unused) != 1 || unused[0] != "[used]unused1" {
		t.Errorf("config unused options = %v", unused)
	}
	if unused := cfg.GetUnusedSections(); len(unused) != 1 || unused[0] != "untouched" {
		t.Errorf("unused sections = %v", unused)
	}
}

func TestGetChoice(t *testing.T) {
	cfg, err := LoadString("[TRAJ]\nKINEMATICS = CoreXY\n")
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	sec, _ := cfg.GetSection("TRAJ")

	kins, err := sec.GetChoice("KINEMATICS", []string{"trivial", "corexy"})
	if err != nil {
		t.Fatalf("GetChoice failed: %v", err)
	}
	if kins != "corexy" {
		t.Errorf("expected 'corexy', got '%s'", kins)
	}

	_, err = sec.GetChoice("KINEMATICS", []string{"trivial"})
	if !errors.Is(err, errors.ErrConfigValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestBoundsChecking(t *testing.T) {
	cfg, err := LoadString("[test]\nvalue = 50\n")
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	sec, _ := cfg.GetSection("test")

	lo, hi := 0.0, 100.0
	v, err := sec.GetFloatWithBounds("value", FloatBounds{MinVal: &lo, MaxVal: &hi})
	if err != nil {
		t.Fatalf("GetFloatWithBounds failed: %v", err)
	}
	if v != 50.0 {
		t.Errorf("expected 50.0, got %f", v)
	}

	tests := []struct {
		name   string
		bounds FloatBounds
	}{
		{"below minimum", AtLeast(60)},
		{"not above", Above(50)},
		{"above maximum", FloatBounds{MaxVal: func() *float64 { v := 40.0; return &v }()}},
	}
	for _, tt := range tests {
		if _, err := sec.GetFloatWithBounds("value", tt.bounds); !errors.Is(err, errors.ErrConfigValidation) {
			t.Errorf("%s: got %v", tt.name, err)
		}
	}

	if _, err := sec.GetIntWithBounds("value", 0, 10); err == nil {
		t.Error("expected error for int above maximum")
	}
}

func TestMissingOptionError(t *testing.T) {
	cfg, err := LoadString("[test]\nexists = value\n")
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	sec, _ := cfg.GetSection("test")

	_, err = sec.Get("missing")
	if err == nil {
		t.Fatal("expected error for missing option")
	}
	var me *errors.MotionError
	if !stderrors.As(err, &me) {
		t.Fatalf("expected *errors.MotionError, got %T", err)
	}
	if me.Code != errors.ErrConfigOption || me.Section != "test" || me.Option != "missing" {
		t.Errorf("unexpected error fields: %+v", me)
	}

	if _, err := cfg.GetSection("nope"); !errors.Is(err, errors.ErrConfigSection) {
		t.Errorf("missing section: got %v", err)
	}
	if _, err := sec.GetFloat("exists"); !errors.Is(err, errors.ErrConfigType) {
		t.Errorf("bad float: got %v", err)
	}
}

func TestLoadInclude(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "machine.ini")
	axes := filepath.Join(dir, "axes.inc")

	if err := os.WriteFile(main, []byte("[TRAJ]\nAXES = 2\n#INCLUDE axes.inc\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(axes, []byte("[AXIS_0]\nP = 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	sec, err := cfg.GetSection("AXIS_0")
	if err != nil {
		t.Fatalf("included section missing: %v", err)
	}
	if p, _ := sec.GetFloat("P"); p != 5 {
		t.Errorf("P = %v", p)
	}
}

func TestRecursiveInclude(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loop.ini")
	if err := os.WriteFile(path, []byte("#INCLUDE loop.ini\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected recursive include error")
	}
}

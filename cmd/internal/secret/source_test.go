package secret

import (
	"errors"
	"testing"
)

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("REFLECT_TEST_SECRET", "from-env")
	src := NewSource("admin secret", "REFLECT_TEST_SECRET", "from-config")
	got, err := src.Get()
	if err != nil || got != "from-env" {
		t.Fatalf("expected env secret, got %q (%v)", got, err)
	}
}

func TestSourceRejectsEmptyEnvironment(t *testing.T) {
	t.Setenv("REFLECT_TEST_SECRET", "  ")
	if _, err := NewSource("admin secret", "REFLECT_TEST_SECRET", "cfg").Get(); err == nil {
		t.Fatalf("expected empty env value to be rejected")
	}
}

func TestSourceFallsBackToConfigThenPrompt(t *testing.T) {
	src := NewSource("admin secret", "REFLECT_UNSET_SECRET_VAR", "from-config")
	src.prompt = func(string) (string, error) { return "", errors.New("unexpected prompt") }
	if got, err := src.Get(); err != nil || got != "from-config" {
		t.Fatalf("expected configured secret, got %q (%v)", got, err)
	}

	prompts := 0
	src = NewSource("admin secret", "", "")
	src.prompt = func(string) (string, error) {
		prompts++
		return "typed", nil
	}
	for i := 0; i < 2; i++ {
		if got, err := src.Get(); err != nil || got != "typed" {
			t.Fatalf("expected prompted secret, got %q (%v)", got, err)
		}
	}
	if prompts != 1 {
		t.Fatalf("expected a single prompt, got %d", prompts)
	}
}

func TestSourceLookupNeverPrompts(t *testing.T) {
	src := NewSource("admin secret", "REFLECT_UNSET_SECRET_VAR", "")
	src.prompt = func(string) (string, error) { return "", errors.New("unexpected prompt") }
	if _, ok, err := src.Lookup(); ok || err != nil {
		t.Fatalf("expected no secret, got ok=%t err=%v", ok, err)
	}

	t.Setenv("REFLECT_TEST_SECRET", "from-env")
	src = NewSource("admin secret", "REFLECT_TEST_SECRET", "from-config")
	if got, ok, err := src.Lookup(); err != nil || !ok || got != "from-env" {
		t.Fatalf("expected env secret, got %q ok=%t (%v)", got, ok, err)
	}
}

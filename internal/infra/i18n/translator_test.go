//go:build !integration

package i18n

import (
	"strings"
	"testing"

	"build-notifier/internal/domain"
)

func TestTranslator(t *testing.T) {
	translator, err := newTranslatorFromBytes([]byte("greeting: hello\nwelcome_user: hello %s\nmd.plan: 'plan *%s*\\.'"))
	if err != nil {
		t.Fatalf("newTranslatorFromBytes failed: %v", err)
	}

	t.Run("should translate a simple key", func(t *testing.T) {
		if got, want := translator.T("greeting"), "hello"; got != want {
			t.Errorf("wanted '%s', got '%s'", want, got)
		}
	})

	t.Run("should return key if not found", func(t *testing.T) {
		if got, want := translator.T("nonexistent_key"), "nonexistent_key"; got != want {
			t.Errorf("wanted '%s', got '%s'", want, got)
		}
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		if got, want := translator.T("welcome_user", "Ivan"), "hello Ivan"; got != want {
			t.Errorf("wanted '%s', got '%s'", want, got)
		}
	})

	t.Run("should escape markdown arguments", func(t *testing.T) {
		got := translator.Markdown("md.plan", "PROJ - PLAN.1")
		want := `plan *PROJ \- PLAN\.1*\.`
		if got != want {
			t.Errorf("wanted '%s', got '%s'", want, got)
		}
	})
}

func TestEmbeddedLocales(t *testing.T) {
	en, err := NewTranslator(LocalesFS, "en")
	if err != nil {
		t.Fatalf("load en: %v", err)
	}
	ru, err := NewTranslator(LocalesFS, "ru")
	if err != nil {
		t.Fatalf("load ru: %v", err)
	}

	t.Run("should define the same keys in every language", func(t *testing.T) {
		enKeys, ruKeys := en.Keys(), ru.Keys()
		if len(enKeys) != len(ruKeys) {
			t.Fatalf("en has %d keys, ru has %d", len(enKeys), len(ruKeys))
		}
		for i := range enKeys {
			if enKeys[i] != ruKeys[i] {
				t.Errorf("key mismatch at %d: %s vs %s", i, enKeys[i], ruKeys[i])
			}
		}
	})

	t.Run("should fail on an unknown language", func(t *testing.T) {
		if _, err := NewTranslator(LocalesFS, "xx"); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestPlanNameText(t *testing.T) {
	en, err := NewTranslator(LocalesFS, "en")
	if err != nil {
		t.Fatalf("load en: %v", err)
	}

	t.Run("should render every validation reason", func(t *testing.T) {
		for _, name := range []string{"", "nodash", "A - B - C", "A! - B", "A - B!"} {
			verr := domain.ValidatePlanName(name)
			if verr == nil {
				t.Fatalf("expected %q to be invalid", name)
			}
			got := en.PlanNameText(verr)
			if got == "" || strings.HasPrefix(got, "validation.") {
				t.Errorf("missing translation for %q: %q", name, got)
			}
		}
	})
}

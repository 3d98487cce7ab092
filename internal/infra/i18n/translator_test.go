//go:build !integration

package i18n

import (
	"strings"
	"testing"
)

func TestTranslator(t *testing.T) {
	t.Run("loads the embedded korean catalog", func(t *testing.T) {
		tr, err := NewTranslator(LocalesFS, "ko")
		if err != nil {
			t.Fatalf("new translator: %v", err)
		}
		msg := tr.T("payment.completed", 4900, "PRO monthly subscription")
		if !strings.Contains(msg, "4900") || !strings.Contains(msg, "PRO monthly subscription") {
			t.Errorf("unexpected message %q", msg)
		}
	})

	t.Run("loads the embedded english catalog", func(t *testing.T) {
		tr, err := NewTranslator(LocalesFS, "en")
		if err != nil {
			t.Fatalf("new translator: %v", err)
		}
		msg := tr.T("payment.failed", "order-1", "card declined")
		if !strings.Contains(msg, "order-1") || !strings.Contains(msg, "card declined") {
			t.Errorf("unexpected message %q", msg)
		}
	})

	t.Run("both catalogs carry the same keys", func(t *testing.T) {
		ko, _ := NewTranslator(LocalesFS, "ko")
		en, _ := NewTranslator(LocalesFS, "en")
		for _, key := range []string{"payment.completed", "payment.failed", "subscription.expired"} {
			if ko.T(key) == key {
				t.Errorf("ko catalog missing %s", key)
			}
			if en.T(key) == key {
				t.Errorf("en catalog missing %s", key)
			}
		}
	})

	t.Run("unknown key comes back verbatim", func(t *testing.T) {
		tr, _ := NewTranslator(LocalesFS, "en")
		if got := tr.T("payment.unknown"); got != "payment.unknown" {
			t.Errorf("expected the key itself, got %q", got)
		}
	})

	t.Run("missing catalog errors", func(t *testing.T) {
		if _, err := NewTranslator(LocalesFS, "fr"); err == nil {
			t.Error("expected an error for a missing catalog")
		}
	})
}

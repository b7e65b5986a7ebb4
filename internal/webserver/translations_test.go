package webserver

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLanguageFromRequest(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		acceptLanguage string
		expected       string
	}{
		{"default", "/", "", "en"},
		{"query parameter", "/?lang=uk", "", "uk"},
		{"unsupported query falls back to header", "/?lang=fr", "uk", "uk"},
		{"header with quality values", "/", "de-DE,uk;q=0.8,en;q=0.5", "uk"},
		{"russian maps to ukrainian", "/", "ru-RU,ru;q=0.9", "uk"},
		{"region and case", "/", "EN-GB", "en"},
		{"nothing supported", "/", "fr,de", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.acceptLanguage != "" {
				req.Header.Set("Accept-Language", tt.acceptLanguage)
			}

			assert.Equal(t, tt.expected, GetLanguageFromRequest(req))
		})
	}
}

// Every key used by the English file must exist in the other languages too
func TestTranslationsComplete(t *testing.T) {
	en := GetTranslations("en")
	assert.NotEmpty(t, en)

	for _, lang := range supportedLanguages {
		trans := GetTranslations(lang)

		for key := range en {
			assert.Contains(t, trans, key, "language %s misses key %s", lang, key)
		}
	}

	for _, c := range errorCategories {
		for _, key := range []string{"error_" + c.code, "error_" + c.code + "_title", "error_" + c.code + "_description"} {
			assert.Contains(t, en, key)
		}

		for _, hint := range c.hints {
			assert.Contains(t, en, hint)
		}
	}
}

func TestGetTranslationFallback(t *testing.T) {
	assert.Equal(t, "Upload and Process", GetTranslation("xx", "submit"))
	assert.Equal(t, "no_such_key", GetTranslation("uk", "no_such_key"))
}

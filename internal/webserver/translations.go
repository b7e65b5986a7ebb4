package webserver

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

//go:embed translations/*.json
var translationFiles embed.FS

// Translation holds translations for a specific language
type Translation map[string]string

// Translations holds all loaded translations
type Translations map[string]Translation

var supportedLanguages = []string{"en", "uk"}

var translations Translations

// LoadTranslations loads all translation files
func LoadTranslations() error {
	loaded := make(Translations, len(supportedLanguages))

	for _, lang := range supportedLanguages {
		data, err := translationFiles.ReadFile("translations/" + lang + ".json")
		if err != nil {
			return fmt.Errorf("failed to read %s translations: %w", lang, err)
		}

		var trans Translation

		err = json.Unmarshal(data, &trans)
		if err != nil {
			return fmt.Errorf("failed to parse %s translations: %w", lang, err)
		}

		loaded[lang] = trans
	}

	translations = loaded

	return nil
}

// GetLanguageFromRequest determines the language from URL param or Accept-Language header
func GetLanguageFromRequest(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		if isValidLanguage(lang) {
			return lang
		}
	}

	// Format: "en-US,en;q=0.9,uk;q=0.8"
	acceptLang := r.Header.Get("Accept-Language")
	if acceptLang != "" {
		for lang := range strings.SplitSeq(acceptLang, ",") {
			lang = strings.TrimSpace(strings.Split(lang, ";")[0])
			lang = strings.ToLower(strings.Split(lang, "-")[0])

			if lang == "ru" {
				return "uk"
			}

			if isValidLanguage(lang) {
				return lang
			}
		}
	}

	return "en"
}

func isValidLanguage(lang string) bool {
	_, exists := translations[lang]
	return exists
}

// GetTranslation returns the translation for a given key and language
func GetTranslation(lang, key string) string {
	if trans, exists := translations[lang]; exists {
		if text, exists := trans[key]; exists {
			return text
		}
	}

	if trans, exists := translations["en"]; exists {
		if text, exists := trans[key]; exists {
			return text
		}
	}

	return key
}

// GetTranslations returns all translations for a given language
func GetTranslations(lang string) Translation {
	if trans, exists := translations[lang]; exists {
		return trans
	}

	if trans, exists := translations["en"]; exists {
		return trans
	}

	return make(Translation)
}

package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed locales/*.json
var embedded embed.FS

var translations = make(map[string]map[string]string)
var DefaultLang = "en"

// Languages lists the locales shipped with the binary.
var Languages = []string{"en", "es", "fr"}

func init() {
	if err := LoadTranslations(embedded, "locales"); err != nil {
		panic(err)
	}
}

// LoadTranslations reads <dir>/<lang>.json from fsys for every known language.
// Entries found replace those already loaded.
func LoadTranslations(fsys fs.FS, dir string) error {
	for _, lang := range Languages {
		data, err := fs.ReadFile(fsys, path.Join(dir, lang+".json"))
		if err != nil {
			return err
		}
		var t map[string]string
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("parse %s translations: %w", lang, err)
		}
		if translations[lang] == nil {
			translations[lang] = make(map[string]string, len(t))
		}
		for k, v := range t {
			translations[lang][k] = v
		}
	}
	return nil
}

func T(lang, key string) string {
	if t, ok := translations[lang]; ok {
		if val, ok := t[key]; ok {
			return val
		}
	}
	// Fallback to English
	if lang != DefaultLang {
		return T(DefaultLang, key)
	}
	return key
}

// Tf formats the translation of key with args.
func Tf(lang, key string, args ...any) string {
	return fmt.Sprintf(T(lang, key), args...)
}

func DetectLanguage(r *http.Request) string {
	// Example: fr-CH, fr;q=0.9, en;q=0.8, de;q=0.7, *;q=0.5
	accept := r.Header.Get("Accept-Language")
	if accept != "" {
		parts := strings.Split(accept, ",")
		for _, part := range parts {
			lang := strings.TrimSpace(strings.Split(part, ";")[0])
			if len(lang) >= 2 {
				lang = strings.ToLower(lang[:2]) // e.g., "en-US" -> "en"
				if _, ok := translations[lang]; ok {
					return lang
				}
			}
		}
	}

	return DefaultLang
}

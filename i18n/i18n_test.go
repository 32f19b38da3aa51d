package i18n

import (
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedLocalesShareKeys(t *testing.T) {
	en := translations["en"]
	require.NotEmpty(t, en)
	for _, lang := range Languages {
		for key := range en {
			_, ok := translations[lang][key]
			assert.True(t, ok, "%s is missing %s", lang, key)
		}
	}
}

func TestT(t *testing.T) {
	assert.Equal(t, "Name is required", T("en", "NameRequired"))
	assert.Equal(t, "Le nom est obligatoire", T("fr", "NameRequired"))
	assert.Equal(t, "Name is required", T("de", "NameRequired"))
	assert.Equal(t, "NoSuchKey", T("fr", "NoSuchKey"))
	assert.Equal(t, "Message must be at least 5 characters", Tf("en", "MessageTooShort", 5))
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"":                          "en",
		"fr-CH, fr;q=0.9, en;q=0.8": "fr",
		"ES-es":                     "es",
		"de-DE, de;q=0.9, es;q=0.5": "es",
		"ja":                        "en",
	}
	for header, want := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Accept-Language", header)
		}
		assert.Equal(t, want, DetectLanguage(r), header)
	}
}

func TestLoadTranslationsOverrides(t *testing.T) {
	fsys := fstest.MapFS{
		"custom/en.json": {Data: []byte(`{"Greeting": "Hi"}`)},
		"custom/es.json": {Data: []byte(`{"Greeting": "Hola"}`)},
		"custom/fr.json": {Data: []byte(`{"Greeting": "Salut"}`)},
	}
	require.NoError(t, LoadTranslations(fsys, "custom"))
	assert.Equal(t, "Hola", T("es", "Greeting"))
	assert.Equal(t, "El nombre es obligatorio", T("es", "NameRequired"))

	err := LoadTranslations(fstest.MapFS{}, "missing")
	assert.Error(t, err)
}

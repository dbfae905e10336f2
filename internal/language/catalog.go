package language

import (
	"strings"

	"github.com/fusionn-batch/internal/config"
)

// Language is one translation target offered to users.
type Language struct {
	Code string `json:"code" mapstructure:"code"`
	Name string `json:"name" mapstructure:"name"`
}

// DefaultLanguages is used when no languages are configured.
var DefaultLanguages = []Language{
	{Code: "zh", Name: "Simplified Chinese"},
	{Code: "zh-tw", Name: "Traditional Chinese"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "ru", Name: "Russian"},
	{Code: "en", Name: "English"},
	{Code: "th", Name: "Thai"},
	{Code: "vi", Name: "Vietnamese"},
	{Code: "id", Name: "Indonesian"},
	{Code: "ms", Name: "Malay"},
	{Code: "ar", Name: "Arabic"},
	{Code: "hi", Name: "Hindi"},
}

// Catalog is the fixed list of supported target languages.
type Catalog struct {
	langs  []Language
	byCode map[string]Language
	byName map[string]string
}

// NewCatalog indexes langs; DefaultLanguages is used when langs is empty.
func NewCatalog(langs []Language) *Catalog {
	if len(langs) == 0 {
		langs = DefaultLanguages
	}

	c := &Catalog{
		langs:  make([]Language, 0, len(langs)),
		byCode: make(map[string]Language, len(langs)),
		byName: make(map[string]string, len(langs)),
	}
	for _, l := range langs {
		l.Code = normalize(l.Code)
		if _, dup := c.byCode[l.Code]; dup || l.Code == "" {
			continue
		}
		c.langs = append(c.langs, l)
		c.byCode[l.Code] = l
		c.byName[strings.ToLower(l.Name)] = l.Code
	}
	return c
}

// All returns the languages in configured order.
func (c *Catalog) All() []Language {
	out := make([]Language, len(c.langs))
	copy(out, c.langs)
	return out
}

func (c *Catalog) Supports(code string) bool {
	_, ok := c.byCode[normalize(code)]
	return ok
}

func (c *Catalog) Lookup(code string) (Language, bool) {
	l, ok := c.byCode[normalize(code)]
	return l, ok
}

// Resolve matches s against catalog codes and names exactly, ignoring case.
func (c *Catalog) Resolve(s string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	if _, ok := c.byCode[lower]; ok {
		return lower, true
	}
	code, ok := c.byName[lower]
	return code, ok
}

// FromConfig converts configured languages. An empty list stays empty so that
// NewCatalog falls back to DefaultLanguages.
func FromConfig(cfg []config.LanguageConfig) []Language {
	langs := make([]Language, 0, len(cfg))
	for _, l := range cfg {
		langs = append(langs, Language{Code: l.Code, Name: l.Name})
	}
	return langs
}

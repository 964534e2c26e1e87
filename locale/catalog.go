// Package locale renders popup message keys into localized text.
package locale

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the source locale every other locale falls back to.
const BaseLocale = "en-US"

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// Bundle holds every loaded locale's messages.
type Bundle struct {
	locales map[string]map[string]string
}

// LoadEmbedded loads the catalogs shipped with the binary.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS loads locales/<locale>/<namespace>.yaml files from fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	b := &Bundle{locales: map[string]map[string]string{}}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if err := b.addFile(path, file); err != nil {
			return nil, err
		}
	}

	if !b.HasLocale(BaseLocale) {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return b, nil
}

func (b *Bundle) addFile(path string, file catalogFile) error {
	fromPath := filepath.Base(filepath.Dir(path))
	loc := strings.TrimSpace(file.Locale)
	if loc == "" {
		return fmt.Errorf("catalog %s: locale is required", path)
	}
	if loc != fromPath {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", path, loc, fromPath)
	}
	if _, err := language.Parse(loc); err != nil {
		return fmt.Errorf("catalog %s: %w", path, err)
	}
	if ns := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)); file.Namespace != ns {
		return fmt.Errorf("catalog %s: namespace %q must match filename namespace %q", path, file.Namespace, ns)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("catalog %s: messages map is required", path)
	}

	msgs, ok := b.locales[loc]
	if !ok {
		msgs = map[string]string{}
		b.locales[loc] = msgs
	}
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", path)
		}
		if _, dup := msgs[key]; dup {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q", path, key, loc)
		}
		msgs[key] = value
	}
	return nil
}

// HasLocale reports whether the locale exists in this bundle.
func (b *Bundle) HasLocale(loc string) bool {
	_, ok := b.locales[strings.TrimSpace(loc)]
	return ok
}

// Locales returns all locale identifiers, sorted.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.locales))
	for loc := range b.locales {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// Message returns one raw message with base-locale fallback.
func (b *Bundle) Message(loc, key string) (string, bool) {
	if msgs, ok := b.locales[loc]; ok {
		if v, ok := msgs[key]; ok {
			return v, true
		}
	}
	v, ok := b.locales[BaseLocale][key]
	return v, ok
}

// Catalog builds an x/text catalog. Keys missing from a locale are
// filled from the base locale.
func (b *Bundle) Catalog() (catalog.Catalog, error) {
	base := b.locales[BaseLocale]
	builder := catalog.NewBuilder(catalog.Fallback(language.MustParse(BaseLocale)))
	for _, loc := range b.Locales() {
		tag, err := language.Parse(loc)
		if err != nil {
			return nil, fmt.Errorf("parse locale tag %q: %w", loc, err)
		}
		msgs := b.locales[loc]
		for key, baseValue := range base {
			value, ok := msgs[key]
			if !ok {
				value = baseValue
			}
			if err := builder.SetString(tag, key, value); err != nil {
				return nil, fmt.Errorf("register %s/%s: %w", loc, key, err)
			}
		}
	}
	return builder, nil
}

// Localizer renders message keys for one locale.
type Localizer struct {
	locale  string
	printer *message.Printer
	bundle  *Bundle
}

// NewLocalizer returns a localizer for loc. Unknown locales use the base locale.
func NewLocalizer(b *Bundle, loc string) (*Localizer, error) {
	cat, err := b.Catalog()
	if err != nil {
		return nil, err
	}
	if !b.HasLocale(loc) {
		loc = BaseLocale
	}
	tag, err := language.Parse(loc)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", loc, err)
	}
	return &Localizer{
		locale:  loc,
		printer: message.NewPrinter(tag, message.Catalog(cat)),
		bundle:  b,
	}, nil
}

// Locale returns the locale in use.
func (l *Localizer) Locale() string {
	return l.locale
}

// Render formats key. subject is substituted when the message takes one.
// Unknown keys render as the key itself.
func (l *Localizer) Render(key, subject string) string {
	raw, ok := l.bundle.Message(l.locale, key)
	if !ok {
		return key
	}
	if strings.Contains(raw, "%s") {
		return l.printer.Sprintf(key, subject)
	}
	return l.printer.Sprintf(key)
}

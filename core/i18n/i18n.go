// Package i18n loads the embedded locale bundles and resolves translators for guild locales.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/ticketbot/core/commands"
	"github.com/m3rciful/ticketbot/core/logger"
)

//go:embed locales/*.yaml
var localesFS embed.FS

// Bundle holds flattened messages per locale. It is immutable after construction.
type Bundle struct {
	tags     []language.Tag
	names    []string
	matcher  language.Matcher
	messages []map[string]string
}

var _ commands.Localizer = (*Bundle)(nil)

// Load reads the embedded locales with defaultLocale as the fallback.
func Load(defaultLocale string) (*Bundle, error) {
	return New(localesFS, "locales", defaultLocale)
}

// New reads every *.yaml file in dir. File names are BCP 47 tags.
func New(fsys fs.FS, dir, defaultLocale string) (*Bundle, error) {
	def, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("i18n: default locale %q: %w", defaultLocale, err)
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("i18n: read %s: %w", dir, err)
	}

	type locale struct {
		tag  language.Tag
		name string
		msgs map[string]string
	}
	var found []locale
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".yaml")
		tag, err := language.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("i18n: locale file %s: %w", e.Name(), err)
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", e.Name(), err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", e.Name(), err)
		}
		msgs := make(map[string]string)
		flatten("", tree, msgs)
		found = append(found, locale{tag: tag, name: name, msgs: msgs})
	}

	// The matcher falls back to the first tag, so the default goes first.
	idx := -1
	for i, l := range found {
		if l.tag.String() == def.String() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("i18n: no bundle for default locale %q", defaultLocale)
	}
	found[0], found[idx] = found[idx], found[0]
	sort.SliceStable(found[1:], func(i, j int) bool { return found[1+i].name < found[1+j].name })

	b := &Bundle{}
	for _, l := range found {
		b.tags = append(b.tags, l.tag)
		b.names = append(b.names, l.name)
		b.messages = append(b.messages, l.msgs)
	}
	b.matcher = language.NewMatcher(b.tags)

	logger.LogEvent(logger.Background(), logger.I18N, slog.LevelDebug, "i18n.loaded",
		slog.String("locale", b.names[0]),
		slog.Int("count", len(b.names)),
	)
	return b, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Locales returns the loaded locale names, default first.
func (b *Bundle) Locales() []string {
	return append([]string(nil), b.names...)
}

// Supports reports whether locale parses and has a bundle matching it.
func (b *Bundle) Supports(locale string) bool {
	tag, err := language.Parse(locale)
	if err != nil {
		return false
	}
	_, _, conf := b.matcher.Match(tag)
	return conf != language.No
}

// Resolve returns a translator for locale. Unknown locales use the default bundle.
func (b *Bundle) Resolve(locale string) commands.Translator {
	idx := 0
	if tag, err := language.Parse(locale); err == nil {
		_, i, conf := b.matcher.Match(tag)
		if conf != language.No {
			idx = i
		}
	}
	return func(key string, args ...any) string {
		msg, ok := b.messages[idx][key]
		if !ok && idx != 0 {
			msg, ok = b.messages[0][key]
		}
		if !ok {
			logger.LogEvent(logger.Background(), logger.I18N, slog.LevelDebug, "i18n.missing_key",
				slog.String("locale", b.names[idx]),
				slog.String("token", key),
			)
			return key
		}
		if len(args) == 0 {
			return msg
		}
		return fmt.Sprintf(msg, args...)
	}
}

// Package i18n is a sample plugin class translating message keys from a
// per-instance catalog. The active locale comes from the "locale" register
// and falls back to the instance default.
package i18n

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-plugkit/pkg/drop"
	"github.com/goliatone/go-plugkit/pkg/plugin"
	"github.com/goliatone/go-plugkit/pkg/settings"
)

// ClassName is the plugin type name used in configuration.
const ClassName = "i18n"

// LocaleRegister is the register key selecting the active locale.
const LocaleRegister = "locale"

// ErrMissingTranslation is returned when no locale in the fallback chain has
// the key.
var ErrMissingTranslation = errors.New("i18n: missing translation")

var errOutsideInstance = errors.New("i18n: filter called outside a plugin instance")

// Translator resolves message keys for a locale.
type Translator interface {
	Translate(locale, key string, params ...any) (string, error)
}

// MissingTranslationHandler decides what renders for a key that could not be
// translated.
type MissingTranslationHandler func(locale, key string, err error) string

// Schema describes i18n instance settings.
var Schema = settings.MustParse(`
type: object
properties:
  default_locale:
    type: string
    default: en
  messages:
    type: object
    additionalProperties:
      type: object
      additionalProperties:
        type: string
required:
  - messages
`)

// TranslateFilters exposes translation to templates.
var TranslateFilters = &plugin.FilterModule{
	Name: "translate",
	Methods: map[string]plugin.FilterFunc{
		"t":      translateFilter,
		"locale": localeFilter,
	},
}

// Class is the i18n plugin class.
var Class = &plugin.Class{
	Name: ClassName,
	Tags: map[string]pongo2.TagParser{
		"trans": parseTrans,
	},
	Filters:  []*plugin.FilterModule{TranslateFilters},
	Settings: Schema,
	New: func(values map[string]any) (plugin.Instance, error) {
		locale, _ := values["default_locale"].(string)
		return New(locale, messagesFrom(values["messages"])), nil
	},
}

// Catalog holds messages keyed by locale and then message key.
type Catalog struct {
	DefaultLocale string
	Messages      map[string]map[string]string
	OnMissing     MissingTranslationHandler
}

var _ Translator = (*Catalog)(nil)

// New constructs a catalog instance.
func New(defaultLocale string, messages map[string]map[string]string) *Catalog {
	defaultLocale = strings.TrimSpace(defaultLocale)
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	if messages == nil {
		messages = map[string]map[string]string{}
	}
	return &Catalog{DefaultLocale: defaultLocale, Messages: messages}
}

// Class implements plugin.Instance.
func (c *Catalog) Class() *plugin.Class { return Class }

// ToDrop implements plugin.Instance.
func (c *Catalog) ToDrop() any {
	messages := make(map[string]any, len(c.Messages))
	for locale, entries := range c.Messages {
		converted := make(map[string]any, len(entries))
		for key, msg := range entries {
			converted[key] = msg
		}
		messages[locale] = converted
	}
	return map[string]any{
		"default_locale": c.DefaultLocale,
		"messages":       messages,
		"locales":        c.Locales(),
	}
}

// Locales returns the catalog locales sorted.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.Messages))
	for locale := range c.Messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Translate looks key up for locale, then its base language ("pt" for
// "pt-BR"), then the default locale. params are applied with fmt.Sprintf.
func (c *Catalog) Translate(locale, key string, params ...any) (string, error) {
	key = strings.TrimSpace(key)
	for _, candidate := range c.chain(locale) {
		msg, ok := c.Messages[candidate][key]
		if !ok || strings.TrimSpace(msg) == "" {
			continue
		}
		if len(params) > 0 {
			return fmt.Sprintf(msg, params...), nil
		}
		return msg, nil
	}
	return "", fmt.Errorf("%w: %q (%s)", ErrMissingTranslation, key, locale)
}

func (c *Catalog) chain(locale string) []string {
	var out []string
	add := func(l string) {
		if l == "" {
			return
		}
		for _, existing := range out {
			if existing == l {
				return
			}
		}
		out = append(out, l)
	}
	locale = strings.TrimSpace(locale)
	add(locale)
	if base, _, found := strings.Cut(locale, "-"); found {
		add(base)
	}
	add(c.DefaultLocale)
	return out
}

func (c *Catalog) render(locale, key string, logger *logrus.Logger) string {
	msg, err := c.Translate(locale, key)
	if err == nil {
		return msg
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{"locale": locale, "key": key}).Debug("translation missing")
	}
	if c.OnMissing != nil {
		return c.OnMissing(locale, key, err)
	}
	return key
}

func messagesFrom(raw any) map[string]map[string]string {
	out := map[string]map[string]string{}
	locales, ok := raw.(map[string]any)
	if !ok {
		return out
	}
	for locale, entries := range locales {
		table, ok := entries.(map[string]any)
		if !ok {
			continue
		}
		converted := make(map[string]string, len(table))
		for key, msg := range table {
			converted[key] = fmt.Sprint(msg)
		}
		out[locale] = converted
	}
	return out
}

// catalogFor returns the catalog bound under id. Instances of other types
// bound with this class are rebuilt from their drop data.
func catalogFor(rc *plugin.RenderContext, id string) (*Catalog, bool) {
	if inst, ok := rc.Instance(id); ok {
		if catalog, ok := inst.(*Catalog); ok {
			return catalog, true
		}
	}
	d, ok := rc.Plugin(id)
	if !ok {
		return nil, false
	}
	return catalogFromDrop(d), true
}

func catalogFromDrop(d *drop.Drop) *Catalog {
	raw, _ := d.Get("default_locale")
	locale, _ := raw.(string)
	messages, _ := d.Get("messages")
	return New(locale, messagesFrom(messages))
}

func activeLocale(rc *plugin.RenderContext, catalog *Catalog) string {
	if rc != nil && rc.Registers() != nil {
		if v, ok := rc.Registers().Get(LocaleRegister); ok {
			if locale := strings.TrimSpace(fmt.Sprint(v)); locale != "" {
				return locale
			}
		}
	}
	return catalog.DefaultLocale
}

func translateFilter(recv plugin.Receiver, input any) (any, error) {
	rc := recv.Context()
	if rc == nil {
		return nil, errOutsideInstance
	}
	catalog, ok := catalogFor(rc, recv.PluginID())
	if !ok {
		return nil, errOutsideInstance
	}
	return catalog.render(activeLocale(rc, catalog), fmt.Sprint(input), rc.Logger()), nil
}

func localeFilter(recv plugin.Receiver, _ any) (any, error) {
	rc := recv.Context()
	if rc == nil {
		return nil, errOutsideInstance
	}
	catalog, ok := catalogFor(rc, recv.PluginID())
	if !ok {
		return nil, errOutsideInstance
	}
	return activeLocale(rc, catalog), nil
}

type transNode struct {
	prefix string
	key    pongo2.IEvaluator
}

// parseTrans handles {% <prefix>_trans "key" %}.
func parseTrans(doc *pongo2.Parser, start *pongo2.Token, arguments *pongo2.Parser) (pongo2.INodeTag, *pongo2.Error) {
	key, err := arguments.ParseExpression()
	if err != nil {
		return nil, err
	}
	if arguments.Remaining() > 0 {
		return nil, arguments.Error("trans takes exactly one argument", nil)
	}
	return &transNode{prefix: plugin.TagPrefix(start, "trans"), key: key}, nil
}

func (n *transNode) Execute(ctx *pongo2.ExecutionContext, writer pongo2.TemplateWriter) *pongo2.Error {
	key, perr := n.key.Evaluate(ctx)
	if perr != nil {
		return perr
	}
	rc, ok := plugin.FromExecutionContext(ctx)
	if !ok {
		return nil
	}
	catalog, ok := catalogFor(rc, n.prefix)
	if !ok {
		return nil
	}
	msg := catalog.render(activeLocale(rc, catalog), key.String(), rc.Logger())
	if _, err := writer.WriteString(html.EscapeString(msg)); err != nil {
		return ctx.OrigError(err, nil)
	}
	return nil
}

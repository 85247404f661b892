package timezones

import (
	"fmt"
	"html"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-plugkit/pkg/drop"
	"github.com/goliatone/go-plugkit/pkg/plugin"
	"github.com/goliatone/go-plugkit/pkg/settings"
)

// ClassName is the plugin type name used in configuration.
const ClassName = "timezones"

// DefaultFormat is the layout local_time uses unless configured.
const DefaultFormat = "2006-01-02 15:04 MST"

// Schema describes timezones instance settings.
var Schema = settings.MustParse(`
type: object
properties:
  zone:
    type: string
    default: UTC
  format:
    type: string
    default: "2006-01-02 15:04 MST"
  zones:
    type: array
    items:
      type: string
`)

// TimeFilters convert timestamps into the instance zone.
var TimeFilters = &plugin.FilterModule{
	Name: "time",
	Methods: map[string]plugin.FilterFunc{
		"local_time": localTime,
		"zone_name":  zoneName,
	},
}

// SearchFilters expose zone search to templates.
var SearchFilters = &plugin.FilterModule{
	Name: "search",
	Methods: map[string]plugin.FilterFunc{
		"zone_search": zoneSearch,
	},
}

// Class is the timezones plugin class.
var Class = &plugin.Class{
	Name: ClassName,
	Tags: map[string]pongo2.TagParser{
		"zone_select": parseZoneSelect,
	},
	Filters:  []*plugin.FilterModule{TimeFilters, SearchFilters},
	Settings: Schema,
	New: func(values map[string]any) (plugin.Instance, error) {
		zone, _ := values["zone"].(string)
		format, _ := values["format"].(string)
		var zones []string
		if raw, ok := values["zones"].([]any); ok {
			for _, item := range raw {
				if s, ok := item.(string); ok {
					zones = append(zones, s)
				}
			}
		}
		return New(zone, format, zones...)
	},
}

// Clock is one configured zone.
type Clock struct {
	Zone   string
	Format string
	// Zones limits the picker choices; empty offers the embedded list.
	Zones []string
}

// New validates zone and constructs an instance.
func New(zone, format string, zones ...string) (*Clock, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		zone = "UTC"
	}
	if _, err := time.LoadLocation(zone); err != nil {
		return nil, fmt.Errorf("timezones: zone %q: %w", zone, err)
	}
	for _, z := range zones {
		if _, err := time.LoadLocation(z); err != nil {
			return nil, fmt.Errorf("timezones: zones entry %q: %w", z, err)
		}
	}
	if strings.TrimSpace(format) == "" {
		format = DefaultFormat
	}
	return &Clock{Zone: zone, Format: format, Zones: append([]string(nil), zones...)}, nil
}

// Class implements plugin.Instance.
func (c *Clock) Class() *plugin.Class { return Class }

// ToDrop implements plugin.Instance.
func (c *Clock) ToDrop() any {
	zones := make([]any, 0, len(c.Zones))
	for _, z := range c.Zones {
		zones = append(zones, z)
	}
	return map[string]any{
		"zone":   c.Zone,
		"format": c.Format,
		"zones":  zones,
	}
}

// clockFor rebuilds the clock bound under d. Values were validated when the
// instance was constructed.
func clockFor(d *drop.Drop) *Clock {
	c := &Clock{Zone: "UTC", Format: DefaultFormat}
	if v, ok := d.Get("zone"); ok {
		if s, ok := v.(string); ok && s != "" {
			c.Zone = s
		}
	}
	if v, ok := d.Get("format"); ok {
		if s, ok := v.(string); ok && s != "" {
			c.Format = s
		}
	}
	if v, ok := d.Get("zones"); ok {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				c.Zones = append(c.Zones, fmt.Sprint(item))
			}
		}
	}
	return c
}

func (c *Clock) choices() ([]string, error) {
	if len(c.Zones) > 0 {
		return c.Zones, nil
	}
	return DefaultZones()
}

func self(recv plugin.Receiver) (*Clock, error) {
	d, ok := recv.Self()
	if !ok {
		return nil, fmt.Errorf("timezones: filter called outside a plugin instance")
	}
	return clockFor(d), nil
}

// parseTime accepts time values, RFC 3339 strings and unix seconds. Template
// data reaches filters as RFC 3339 strings.
func parseTime(input any) (time.Time, error) {
	switch v := input.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("timezones: nil time")
		}
		return *v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("timezones: unrecognised time %q", s)
	case int:
		return time.Unix(int64(v), 0), nil
	case int64:
		return time.Unix(v, 0), nil
	case float64:
		return time.Unix(int64(v), 0), nil
	default:
		return time.Time{}, fmt.Errorf("timezones: unsupported time value %T", input)
	}
}

func localTime(recv plugin.Receiver, input any) (any, error) {
	clock, err := self(recv)
	if err != nil {
		return nil, err
	}
	if input == nil {
		return "", nil
	}
	t, err := parseTime(input)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(clock.Zone)
	if err != nil {
		return nil, fmt.Errorf("timezones: zone %q: %w", clock.Zone, err)
	}
	return t.In(loc).Format(clock.Format), nil
}

func zoneName(recv plugin.Receiver, _ any) (any, error) {
	clock, err := self(recv)
	if err != nil {
		return nil, err
	}
	return clock.Zone, nil
}

func zoneSearch(recv plugin.Receiver, input any) (any, error) {
	clock, err := self(recv)
	if err != nil {
		return nil, err
	}
	zones, err := clock.choices()
	if err != nil {
		return nil, err
	}
	query := ""
	if input != nil {
		query = fmt.Sprint(input)
	}
	matches := Search(zones, query, 0, NewOptions())
	out := make([]any, 0, len(matches))
	for _, zone := range matches {
		out = append(out, zone)
	}
	return out, nil
}

type zoneSelectNode struct {
	prefix string
	name   pongo2.IEvaluator
}

// parseZoneSelect handles {% <prefix>_zone_select %} with an optional field
// name expression, "timezone" by default.
func parseZoneSelect(doc *pongo2.Parser, start *pongo2.Token, arguments *pongo2.Parser) (pongo2.INodeTag, *pongo2.Error) {
	node := &zoneSelectNode{prefix: plugin.TagPrefix(start, "zone_select")}
	if arguments.Remaining() > 0 {
		name, err := arguments.ParseExpression()
		if err != nil {
			return nil, err
		}
		node.name = name
	}
	if arguments.Remaining() > 0 {
		return nil, arguments.Error("zone_select takes at most one argument", nil)
	}
	return node, nil
}

func (n *zoneSelectNode) Execute(ctx *pongo2.ExecutionContext, writer pongo2.TemplateWriter) *pongo2.Error {
	d, ok := plugin.ExecutionDrop(ctx, n.prefix)
	if !ok {
		return nil
	}
	field := "timezone"
	if n.name != nil {
		value, err := n.name.Evaluate(ctx)
		if err != nil {
			return err
		}
		if s := strings.TrimSpace(value.String()); s != "" {
			field = s
		}
	}

	clock := clockFor(d)
	zones, err := clock.choices()
	if err != nil {
		return ctx.OrigError(err, nil)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<select name="%s" data-plugin="%s">`, html.EscapeString(field), html.EscapeString(d.PluginID()))
	for _, zone := range zones {
		selected := ""
		if zone == clock.Zone {
			selected = " selected"
		}
		fmt.Fprintf(&sb, `<option value="%s"%s>%s</option>`, html.EscapeString(zone), selected, html.EscapeString(zone))
	}
	sb.WriteString("</select>")
	if _, err := writer.WriteString(sb.String()); err != nil {
		return ctx.OrigError(err, nil)
	}
	return nil
}

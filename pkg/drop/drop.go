// Package drop converts plugin instance data into the template-facing view
// ("drop") installed under plugins.<id> in a render context.
package drop

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// IDKey is the drop key holding the plugin id the drop was bound under.
const IDKey = "plugin_id"

// Drop is the namespaced view of one plugin instance. It records the plugin id
// so templates and filters can build the instance's prefixed names.
type Drop struct {
	pluginID string
	source   any
	values   map[string]any
}

// New converts data into a Drop bound to pluginID. Maps are converted
// key-by-key; structs go through their JSON representation so json tags
// decide the template-facing field names.
func New(pluginID string, data any) (*Drop, error) {
	if strings.TrimSpace(pluginID) == "" {
		return nil, errors.New("drop: plugin id is required")
	}
	values, err := Convert(data)
	if err != nil {
		return nil, err
	}
	return &Drop{pluginID: pluginID, source: data, values: values}, nil
}

// PluginID returns the id the drop was bound under.
func (d *Drop) PluginID() string {
	if d == nil {
		return ""
	}
	return d.pluginID
}

// Prefixed returns name namespaced under the drop's plugin id.
func (d *Drop) Prefixed(name string) string {
	return d.PluginID() + "_" + name
}

// Source returns the value the drop was converted from.
func (d *Drop) Source() any {
	if d == nil {
		return nil
	}
	return d.source
}

// Get returns a converted top-level value.
func (d *Drop) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	if key == IDKey {
		return d.pluginID, true
	}
	v, ok := d.values[key]
	return v, ok
}

// Values returns a copy of the template-facing map, including plugin_id.
func (d *Drop) Values() map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, len(d.values)+1)
	for key, value := range d.values {
		out[key] = value
	}
	out[IDKey] = d.pluginID
	return out
}

// Convert turns data into a map of template-friendly values. nil yields an
// empty map; values that do not convert to an object are rejected.
func Convert(data any) (map[string]any, error) {
	switch v := data.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return convertMap(v)
	default:
		raw, err := jsonToAny(v)
		if err != nil {
			return nil, fmt.Errorf("drop: convert %T: %w", data, err)
		}
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("drop: %T does not convert to an object", data)
		}
		return convertMap(m)
	}
}

// ConvertValue normalises a single value the way Convert normalises map
// entries. Functions are kept as-is so templates can call them.
func ConvertValue(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if isCallable(value) {
		return value, nil
	}

	switch v := value.(type) {
	case map[string]any:
		return convertMap(v)
	case []any:
		return convertSlice(v)
	case string, bool, float64, int, int64:
		return v, nil
	default:
		raw, err := jsonToAny(v)
		if err != nil {
			return nil, err
		}
		switch decoded := raw.(type) {
		case map[string]any:
			return convertMap(decoded)
		case []any:
			return convertSlice(decoded)
		default:
			return decoded, nil
		}
	}
}

func convertMap(in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for key, value := range in {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		converted, err := ConvertValue(value)
		if err != nil {
			return nil, fmt.Errorf("drop: key %q: %w", key, err)
		}
		out[key] = converted
	}
	return out, nil
}

func convertSlice(in []any) ([]any, error) {
	out := make([]any, 0, len(in))
	for _, value := range in {
		converted, err := ConvertValue(value)
		if err != nil {
			return nil, err
		}
		out = append(out, converted)
	}
	return out, nil
}

func jsonToAny(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func isCallable(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.IsValid() && rv.Kind() == reflect.Func
}

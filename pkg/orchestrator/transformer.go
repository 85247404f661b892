package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Transformer rewrites render data before plugins are bound. Implementations
// can inject defaults, rename keys or perform arbitrary rewrites.
type Transformer interface {
	Transform(ctx context.Context, data map[string]any) error
}

// TransformerFunc adapts plain functions to the Transformer interface.
type TransformerFunc func(ctx context.Context, data map[string]any) error

// Transform executes the wrapped function when non-nil.
func (fn TransformerFunc) Transform(ctx context.Context, data map[string]any) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, data)
}

// PresetTransformer applies declarative data loaded from a JSON document:
//
//	{
//	  "defaults": {"page": {"title": "Untitled"}},
//	  "set": {"page.lang": "en"}
//	}
//
// Defaults only fill keys the request left empty; set entries overwrite the
// value at a dotted path, creating intermediate objects.
type PresetTransformer struct {
	document presetDocument
}

type presetDocument struct {
	Defaults map[string]any `json:"defaults"`
	Set      map[string]any `json:"set"`
}

// NewPresetTransformer constructs a transformer from raw JSON bytes.
func NewPresetTransformer(data []byte) (*PresetTransformer, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("preset transformer: document is empty")
	}
	var document presetDocument
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("preset transformer: parse document: %w", err)
	}
	return &PresetTransformer{document: document}, nil
}

// NewPresetTransformerFromFS loads a preset document from fsys.
func NewPresetTransformerFromFS(fsys fs.FS, path string) (*PresetTransformer, error) {
	if fsys == nil {
		return nil, errors.New("preset transformer: filesystem is nil")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("preset transformer: path is required")
	}
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("preset transformer: read %s: %w", path, err)
	}
	return NewPresetTransformer(data)
}

// Transform applies the preset onto data.
func (t *PresetTransformer) Transform(ctx context.Context, data map[string]any) error {
	if data == nil {
		return errors.New("preset transformer: data is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mergeDefaults(data, t.document.Defaults)
	for path, value := range t.document.Set {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := setPath(data, path, value); err != nil {
			return fmt.Errorf("preset transformer: %w", err)
		}
	}
	return nil
}

func mergeDefaults(dst, defaults map[string]any) {
	for key, value := range defaults {
		existing, ok := dst[key]
		if !ok || existing == nil {
			dst[key] = cloneValue(value)
			continue
		}
		nestedDst, dstIsMap := existing.(map[string]any)
		nestedDefaults, defIsMap := value.(map[string]any)
		if dstIsMap && defIsMap {
			mergeDefaults(nestedDst, nestedDefaults)
		}
	}
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for idx, item := range v {
			out[idx] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func setPath(data map[string]any, path string, value any) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("empty path")
	}
	segments := strings.Split(path, ".")
	current := data
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment]
		if !ok || next == nil {
			child := map[string]any{}
			current[segment] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("path %q: %q is not an object", path, segment)
		}
		current = child
	}
	current[segments[len(segments)-1]] = value
	return nil
}

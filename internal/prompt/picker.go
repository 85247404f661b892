package prompt

import (
	"context"
	"fmt"
	"strings"
)

// Choices is what an interactive session decided for one render.
type Choices struct {
	Plugins      []string
	ThemeName    string
	ThemeVariant string
}

// Picker asks which plugin instances to bind and, optionally, which theme to
// render with.
type Picker struct {
	driver Driver
}

// NewPicker wraps driver; a nil driver uses survey on the terminal.
func NewPicker(driver Driver) *Picker {
	if driver == nil {
		driver = NewSurveyDriver()
	}
	return &Picker{driver: driver}
}

// PickPlugins lets the user choose among the active instance ids. Every
// instance is preselected.
func (p *Picker) PickPlugins(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, ErrNoChoices
	}
	defaults := make([]int, len(ids))
	for i := range ids {
		defaults[i] = i
	}
	picked, err := p.driver.MultiSelect(ctx, SelectConfig{
		Message:  "Plugins to bind",
		Options:  ids,
		Defaults: defaults,
		Help:     "Tags of unselected plugins render nothing.",
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(picked))
	for _, idx := range picked {
		if idx >= 0 && idx < len(ids) {
			out = append(out, ids[idx])
		}
	}
	if len(out) == 0 {
		if err := p.driver.Info(ctx, "no plugins selected; plugin tags will render nothing"); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Choose runs the whole session. Theme prompts are skipped unless withTheme.
func (p *Picker) Choose(ctx context.Context, ids []string, withTheme bool, defaultTheme string) (Choices, error) {
	plugins, err := p.PickPlugins(ctx, ids)
	if err != nil {
		return Choices{}, err
	}
	choices := Choices{Plugins: plugins}
	if !withTheme {
		return choices, nil
	}

	change, err := p.driver.Confirm(ctx, ConfirmConfig{
		Message: fmt.Sprintf("Render with a theme other than %q?", defaultTheme),
	})
	if err != nil {
		return Choices{}, err
	}
	if !change {
		return choices, nil
	}
	name, err := p.driver.Input(ctx, InputConfig{
		Message:   "Theme",
		Default:   defaultTheme,
		Validator: requireValue,
	})
	if err != nil {
		return Choices{}, err
	}
	variant, err := p.driver.Input(ctx, InputConfig{Message: "Variant (optional)"})
	if err != nil {
		return Choices{}, err
	}
	choices.ThemeName = strings.TrimSpace(name)
	choices.ThemeVariant = strings.TrimSpace(variant)
	return choices, nil
}

func requireValue(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("a value is required")
	}
	return nil
}

package extract

import (
	"errors"
	"fmt"

	"harvest-backend/lib/browser"
	"harvest-backend/lib/configutil"
)

type FieldConfig struct {
	Name      string   `json:"name"`
	Selector  string   `json:"selector"`
	Attrs     []string `json:"attrs"`
	Transform string   `json:"transform"`
	Default   any      `json:"default"`
}

// TargetConfig is the declarative form of a Target, transforms are named
// entries of Transforms.
type TargetConfig struct {
	Name            string                 `json:"name"`
	ItemSelector    string                 `json:"item_selector"`
	SectionSelector string                 `json:"section_selector"`
	DefaultSection  string                 `json:"default_section"`
	KeyFields       []string               `json:"key_fields"`
	Fields          []FieldConfig          `json:"fields"`
	Expand          *browser.RevealAction  `json:"expand"`
	Reveal          []browser.RevealAction `json:"reveal"`
}

type TargetFile struct {
	// fills the unset settings of every target, e.g. a shared reveal list
	Defaults TargetConfig   `json:"defaults"`
	Targets  []TargetConfig `json:"targets"`
}

func (c TargetConfig) Compile() (Target, error) {
	target := Target{
		Name:            c.Name,
		ItemSelector:    c.ItemSelector,
		SectionSelector: c.SectionSelector,
		DefaultSection:  c.DefaultSection,
		KeyFields:       c.KeyFields,
		Expand:          c.Expand,
		Reveal:          c.Reveal,
	}
	for _, fc := range c.Fields {
		transform, err := LookupTransform(fc.Transform)
		if err != nil {
			return Target{}, fmt.Errorf("target %q field %q: %w", c.Name, fc.Name, err)
		}
		target.Fields = append(target.Fields, Field{
			Name:      fc.Name,
			Selector:  fc.Selector,
			Attrs:     fc.Attrs,
			Transform: transform,
			Default:   fc.Default,
		})
	}
	return target, target.Validate()
}

// LoadTargets reads a json5 target file (merged with its .local override)
// and compiles every target in it.
func LoadTargets(path string) (map[string]Target, error) {
	file, err := configutil.ReadConfig[TargetFile](path)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}

	targets := map[string]Target{}
	var errs []error
	for _, c := range file.Targets {
		if _, exists := targets[c.Name]; exists {
			errs = append(errs, fmt.Errorf("duplicate target %q", c.Name))
			continue
		}
		c, err := configutil.FillDefaults(c, file.Defaults)
		if err != nil {
			errs = append(errs, fmt.Errorf("target %q defaults: %w", c.Name, err))
			continue
		}
		target, err := c.Compile()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		targets[c.Name] = target
	}
	return targets, errors.Join(errs...)
}

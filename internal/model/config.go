package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ConfigType is the editor type of a server configuration row.
type ConfigType string

const (
	ConfigText    ConfigType = "text"
	ConfigNumber  ConfigType = "number"
	ConfigBoolean ConfigType = "boolean"
	ConfigSelect  ConfigType = "select"
	ConfigArray   ConfigType = "array"
)

// ConfigOption is one choice of a select row.
type ConfigOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ConfigItem is one server configuration row.
type ConfigItem struct {
	Key         string         `json:"key"`
	Label       string         `json:"label"`
	Description string         `json:"description,omitempty"`
	Type        ConfigType     `json:"type"`
	Value       any            `json:"value"`
	Options     []ConfigOption `json:"options,omitempty"`
	Required    bool           `json:"required,omitempty"`
}

// ParseValue type-checks raw form input for the item before submission:
// numbers parse as float64, booleans as bool, arrays as one string per
// non-empty line or comma, select values must match an option.
func (c ConfigItem) ParseValue(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" && c.Required && c.Type != ConfigBoolean {
		return nil, fmt.Errorf("%s is required", c.Key)
	}

	switch c.Type {
	case ConfigNumber:
		if raw == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", c.Key)
		}
		return n, nil
	case ConfigBoolean:
		switch strings.ToLower(raw) {
		case "", "false", "off", "0", "no":
			return false, nil
		case "true", "on", "1", "yes":
			return true, nil
		}
		return nil, fmt.Errorf("%s must be true or false", c.Key)
	case ConfigSelect:
		for _, o := range c.Options {
			if o.Value == raw {
				return raw, nil
			}
		}
		if raw == "" {
			return raw, nil
		}
		return nil, fmt.Errorf("%s must be one of the listed options", c.Key)
	case ConfigArray:
		fields := strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == ',' })
		out := make([]string, 0, len(fields))
		for _, f := range fields {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
		return out, nil
	default:
		return raw, nil
	}
}

// DisplayValue renders Value for a text input.
func (c ConfigItem) DisplayValue() string {
	switch v := c.Value.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, "\n")
	case []string:
		return strings.Join(v, "\n")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("decimal must be a scalar")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText is shared by the YAML decoder and environment overrides.
func (d *Decimal) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Decimal = decimal.Zero
		return nil
	}
	dec, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", raw, err)
	}
	d.Decimal = dec
	return nil
}

func (d Decimal) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

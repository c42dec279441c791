package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	"leasesync/internal/remote"
)

// ErrInvalidInventory wraps every inventory validation failure
var ErrInvalidInventory = errors.New("config: invalid inventory")

// Tracker is one WatchYourLAN instance
type Tracker struct {
	URL string `yaml:"url" json:"url"`
}

// Trackers accepts either a single tracker mapping or a list of them
type Trackers []Tracker

// UnmarshalYAML implements yaml.Unmarshaler
func (t *Trackers) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var one Tracker
		if err := node.Decode(&one); err != nil {
			return err
		}
		*t = Trackers{one}
	case yaml.SequenceNode:
		var list []Tracker
		if err := node.Decode(&list); err != nil {
			return err
		}
		*t = list
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*t = nil
			return nil
		}
		return fmt.Errorf("line %d: watchyourlan must be a mapping or a list", node.Line)
	default:
		return fmt.Errorf("line %d: watchyourlan must be a mapping or a list", node.Line)
	}
	return nil
}

// Inventory lists the routers and tracking targets of a run
type Inventory struct {
	Master       remote.Target   `yaml:"master"`
	Slaves       []remote.Target `yaml:"slaves"`
	WatchYourLAN Trackers        `yaml:"watchyourlan"`
}

// LoadInventory reads and validates an inventory file
func LoadInventory(filename string) (*Inventory, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	return ParseInventory(data)
}

// ParseInventory decodes and validates inventory YAML
func ParseInventory(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInventory, err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Validate checks every router and tracker entry
func (inv *Inventory) Validate() error {
	var errs []error

	if err := inv.Master.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("master: %w", err))
	}
	for i, slave := range inv.Slaves {
		if err := slave.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("slaves[%d]: %w", i, err))
		}
	}
	for i, tracker := range inv.WatchYourLAN {
		if err := validateURL(tracker.URL); err != nil {
			errs = append(errs, fmt.Errorf("watchyourlan[%d]: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInventory, errors.Join(errs...))
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be an absolute http(s) address", raw)
	}
	return nil
}

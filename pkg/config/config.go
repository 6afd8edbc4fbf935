package config

import (
	"fmt"
	"strings"

	"github.com/mirtext/mirtext/pkg/cli"
)

type Feature int

const (
	FeatAlignLabels Feature = iota
	FeatScopeReset
	FeatNarrowIntAccess
	FeatComments
	FeatCount
)

type Warning int

const (
	WarnUnusedClass Warning = iota
	WarnEmptyLayout
	WarnOpenClass
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features       map[Feature]Info
	Warnings       map[Warning]Info
	FeatureMap     map[string]Feature
	WarningMap     map[string]Warning
	WordSize       int
	StackAlignment int
}

func NewConfig() *Config {
	cfg := &Config{
		Features:       make(map[Feature]Info),
		Warnings:       make(map[Warning]Info),
		FeatureMap:     make(map[string]Feature),
		WarningMap:     make(map[string]Warning),
		WordSize:       8,
		StackAlignment: 16,
	}

	features := map[Feature]Info{
		FeatAlignLabels:     {"align-labels", true, "Pad every line's label field to the widest label."},
		FeatScopeReset:      {"scope-reset", true, "Clear function-local operands on function entry and exit."},
		FeatNarrowIntAccess: {"narrow-int-access", true, "Access i64 values in memory through 32-bit i32 operands."},
		FeatComments:        {"comments", true, "Keep '# comment' trailers on emitted lines."},
	}

	warnings := map[Warning]Info{
		WarnUnusedClass: {"unused-class", false, "Warn about layout classes never referenced by the tree."},
		WarnEmptyLayout: {"empty-layout", true, "Warn when a layout blob decodes to no classes."},
		WarnOpenClass:   {"open-class", true, "Warn when a class definition is still open after lowering."},
		WarnExtra:       {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// SetStackAlignment accepts any power of two.
func (c *Config) SetStackAlignment(align int) error {
	if align <= 0 || align&(align-1) != 0 {
		return fmt.Errorf("stack alignment must be a power of two, got %d", align)
	}
	c.StackAlignment = align
	return nil
}

// FlagEntries holds the -W/-F toggles bound on a flag set, indexed by
// warning and feature number.
type FlagEntries struct {
	Warnings []cli.FlagGroupEntry
	Features []cli.FlagGroupEntry
}

// SetupFlagGroups registers -W<warning> and -F<feature> flags on fs.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) FlagEntries {
	var entries FlagEntries

	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		enabled, disabled := new(bool), new(bool)
		entries.Warnings = append(entries.Warnings, cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description, Enabled: enabled, Disabled: disabled,
		})
	}
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		enabled, disabled := new(bool), new(bool)
		entries.Features = append(entries.Features, cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description, Enabled: enabled, Disabled: disabled,
		})
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", entries.Warnings)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature", "Available Features:", entries.Features)
	return entries
}

// ApplyFlagGroups copies parsed -W/-F toggles into the configuration.
func (c *Config) ApplyFlagGroups(entries FlagEntries) {
	for i, entry := range entries.Warnings {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range entries.Features {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

// ApplyFlag handles a single "-W<name>", "-Wno-<name>", "-F<name>" or
// "-Fno-<name>" string, as found in tree-embedded directives.
func (c *Config) ApplyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	if len(trimmed) < 2 {
		return fmt.Errorf("malformed flag '%s'", flag)
	}
	kind, name := trimmed[0], trimmed[1:]
	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	switch kind {
	case 'W':
		if name == "all" {
			for i := Warning(0); i < WarnCount; i++ {
				c.SetWarning(i, enable)
			}
			return nil
		}
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
	case 'F':
		f, ok := c.FeatureMap[name]
		if !ok {
			return fmt.Errorf("unknown feature '%s'", name)
		}
		c.SetFeature(f, enable)
	default:
		return fmt.Errorf("malformed flag '%s'", flag)
	}
	return nil
}

// ApplyFlags applies a whitespace-separated list of flags.
func (c *Config) ApplyFlags(flagStr string) error {
	for _, flag := range strings.Fields(flagStr) {
		if err := c.ApplyFlag(flag); err != nil {
			return err
		}
	}
	return nil
}

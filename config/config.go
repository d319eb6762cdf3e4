// Package config loads spawncap settings from YAML.
//
// A settings file only needs the keys it changes; everything else keeps its default.
// The file is checked against a JSON Schema before it is applied, so unknown keys and
// out-of-range values are rejected with the offending location.
//
//	settings, err := config.Load("spawncap.yaml")
//	if err != nil {
//	    return err
//	}
//	catalog, err := settings.Catalog()
//	if err != nil {
//	    return err
//	}
//	eng := engine.New(rt, host, settings.Policy()).
//	    WithChannels(channels.Enabled(settings.Channels(), host, catalog)...)
//
// [Watch] reloads the file when it changes and reports every version that passes
// validation.
//
// A complete file with every default:
//
//	compression:
//	  enabled: true
//	  cap: 20
//	  enhance_ratio: 0.5
//	  gain_factor: 1
//	  max_gain: 10
//	  display_message: true
//	kinds:
//	  allow_mechanoids: false
//	  allow_insectoids: false
//	shapes:
//	  allow_manhunters: true
//	  allow_entity_swarm: true
//	  allow_hive: true
//	enhancement:
//	  disable_factors: false
//	  enhance_friendly: false
//	  modifier_tag: CR_Powerup
//	options:
//	  enabled: true
//	  gear: true
//	  implants: true
//	  chemicals: true
//	  catalog: ""
//	compatibility:
//	  enabled: false
//	  tag: CR_DummyForCompatibility
//	map_buff:
//	  enabled: true
//	  threat_minimum: 1000
//	  threat_per_stat_percentage: 100
//	  delay_ticks: 60
//	  check_interval: 15
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rickchristie/spawncap/channels"
	"github.com/rickchristie/spawncap/engine"
	"github.com/rickchristie/spawncap/mapbuff"
	"gopkg.in/yaml.v3"
)

// Settings is the full settings surface.
type Settings struct {
	Compression   Compression   `yaml:"compression"`
	Kinds         Kinds         `yaml:"kinds"`
	Shapes        Shapes        `yaml:"shapes"`
	Enhancement   Enhancement   `yaml:"enhancement"`
	Options       Options       `yaml:"options"`
	Compatibility Compatibility `yaml:"compatibility"`
	MapBuff       MapBuff       `yaml:"map_buff"`

	// dir is the directory relative catalog paths are resolved against.
	dir string
}

// Compression holds the global switch and the cap.
type Compression struct {
	Enabled        bool    `yaml:"enabled"`
	Cap            int     `yaml:"cap"`
	EnhanceRatio   float64 `yaml:"enhance_ratio"`
	GainFactor     float64 `yaml:"gain_factor"`
	MaxGain        float64 `yaml:"max_gain"`
	DisplayMessage bool    `yaml:"display_message"`
}

// Kinds holds the kind exclusions.
type Kinds struct {
	AllowMechanoids bool `yaml:"allow_mechanoids"`
	AllowInsectoids bool `yaml:"allow_insectoids"`
}

// Shapes holds the per call shape switches.
type Shapes struct {
	AllowManhunters  bool `yaml:"allow_manhunters"`
	AllowEntitySwarm bool `yaml:"allow_entity_swarm"`
	AllowHive        bool `yaml:"allow_hive"`
}

// Enhancement controls the core modifier.
type Enhancement struct {
	DisableFactors  bool   `yaml:"disable_factors"`
	EnhanceFriendly bool   `yaml:"enhance_friendly"`
	ModifierTag     string `yaml:"modifier_tag"`
}

// Options controls the auxiliary enhancement channels.
type Options struct {
	Enabled   bool `yaml:"enabled"`
	Gear      bool `yaml:"gear"`
	Implants  bool `yaml:"implants"`
	Chemicals bool `yaml:"chemicals"`

	// Catalog is a channel catalog file. Empty means the built-in catalog. Relative paths
	// are resolved against the settings file's directory.
	Catalog string `yaml:"catalog"`
}

// Compatibility controls the marker scaffold.
type Compatibility struct {
	Enabled bool   `yaml:"enabled"`
	Tag     string `yaml:"tag"`
}

// MapBuff controls the buff of pre-existing hostiles on new maps.
type MapBuff struct {
	Enabled                 bool    `yaml:"enabled"`
	ThreatMinimum           float64 `yaml:"threat_minimum"`
	ThreatPerStatPercentage float64 `yaml:"threat_per_stat_percentage"`
	DelayTicks              int     `yaml:"delay_ticks"`
	CheckInterval           int     `yaml:"check_interval"`
}

// Default returns the default settings.
func Default() *Settings {
	p := engine.DefaultPolicy()
	mb := mapbuff.DefaultConfig()
	return &Settings{
		Compression: Compression{
			Enabled:        p.CompressionEnabled,
			Cap:            p.Cap,
			EnhanceRatio:   p.EnhanceRatio,
			GainFactor:     p.GainFactor,
			MaxGain:        p.MaxGain,
			DisplayMessage: p.DisplayMessage,
		},
		Kinds: Kinds{
			AllowMechanoids: p.AllowMechanoids,
			AllowInsectoids: p.AllowInsectoids,
		},
		Shapes: Shapes{
			AllowManhunters:  p.AllowManhunters,
			AllowEntitySwarm: p.AllowEntitySwarm,
			AllowHive:        p.AllowHive,
		},
		Enhancement: Enhancement{
			DisableFactors:  p.DisableFactors,
			EnhanceFriendly: p.EnhanceFriendly,
			ModifierTag:     p.ModifierTag,
		},
		Options: Options{
			Enabled:   p.OptionsEnabled,
			Gear:      true,
			Implants:  true,
			Chemicals: true,
		},
		Compatibility: Compatibility{
			Enabled: p.Compatibility,
			Tag:     p.CompatibilityTag,
		},
		MapBuff: MapBuff{
			Enabled:                 mb.Enabled,
			ThreatMinimum:           mb.ThreatMinimum,
			ThreatPerStatPercentage: mb.ThreatPerStatPercentage,
			DelayTicks:              mb.DelayTicks,
			CheckInterval:           mb.CheckInterval,
		},
	}
}

// Load reads a settings file and lays it over the defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read settings: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// Parse validates a YAML settings document and lays it over the defaults.
func Parse(data []byte) (*Settings, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if doc != nil {
		if err := settingsSchema.Validate(doc); err != nil {
			return nil, err
		}
	}

	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Marshal renders the settings as YAML.
func (s *Settings) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Policy returns the engine's view of the settings.
func (s *Settings) Policy() engine.Policy {
	return engine.Policy{
		CompressionEnabled: s.Compression.Enabled,
		Cap:                s.Compression.Cap,
		AllowMechanoids:    s.Kinds.AllowMechanoids,
		AllowInsectoids:    s.Kinds.AllowInsectoids,
		AllowManhunters:    s.Shapes.AllowManhunters,
		AllowEntitySwarm:   s.Shapes.AllowEntitySwarm,
		AllowHive:          s.Shapes.AllowHive,
		EnhanceRatio:       s.Compression.EnhanceRatio,
		GainFactor:         s.Compression.GainFactor,
		MaxGain:            s.Compression.MaxGain,
		DisableFactors:     s.Enhancement.DisableFactors,
		EnhanceFriendly:    s.Enhancement.EnhanceFriendly,
		OptionsEnabled:     s.Options.Enabled,
		Compatibility:      s.Compatibility.Enabled,
		ModifierTag:        s.Enhancement.ModifierTag,
		CompatibilityTag:   s.Compatibility.Tag,
		DisplayMessage:     s.Compression.DisplayMessage,
	}
}

// Channels returns the channel switches. All are off when the options master switch is.
func (s *Settings) Channels() channels.Switches {
	if !s.Options.Enabled {
		return channels.Switches{}
	}
	return channels.Switches{
		Gear:      s.Options.Gear,
		Implants:  s.Options.Implants,
		Chemicals: s.Options.Chemicals,
	}
}

// Catalog loads the configured channel catalog, or the built-in one.
func (s *Settings) Catalog() (*channels.Catalog, error) {
	if s.Options.Catalog == "" {
		return channels.DefaultCatalog(), nil
	}
	path := s.Options.Catalog
	if !filepath.IsAbs(path) && s.dir != "" {
		path = filepath.Join(s.dir, path)
	}
	return channels.LoadCatalog(path)
}

// MapBuffConfig returns the map buff configuration.
func (s *Settings) MapBuffConfig() mapbuff.Config {
	return mapbuff.Config{
		Enabled:                 s.MapBuff.Enabled,
		ThreatMinimum:           s.MapBuff.ThreatMinimum,
		ThreatPerStatPercentage: s.MapBuff.ThreatPerStatPercentage,
		DelayTicks:              s.MapBuff.DelayTicks,
		CheckInterval:           s.MapBuff.CheckInterval,
	}
}

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid settings")

// Validate checks the cross-field constraints the schema cannot express.
func (s *Settings) Validate() error {
	if s.Compression.Cap < 1 {
		return fmt.Errorf("%w: compression.cap must be at least 1", ErrInvalid)
	}
	if s.Enhancement.ModifierTag == "" {
		return fmt.Errorf("%w: enhancement.modifier_tag is empty", ErrInvalid)
	}
	if s.Compatibility.Enabled && s.Compatibility.Tag == "" {
		return fmt.Errorf("%w: compatibility.tag is empty while compatibility is enabled", ErrInvalid)
	}
	if s.Compatibility.Enabled && s.Compatibility.Tag == s.Enhancement.ModifierTag {
		return fmt.Errorf("%w: compatibility.tag must differ from enhancement.modifier_tag", ErrInvalid)
	}
	return nil
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rickchristie/spawncap/channels"
	"github.com/rickchristie/spawncap/engine"
	"github.com/rickchristie/spawncap/mapbuff"
	"github.com/rickchristie/spawncap/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_MatchesEngineDefaults(t *testing.T) {
	s := Default()

	assert.Equal(t, engine.DefaultPolicy(), s.Policy())
	assert.Equal(t, mapbuff.DefaultConfig(), s.MapBuffConfig())
	assert.Equal(t, channels.Switches{Gear: true, Implants: true, Chemicals: true}, s.Channels())
	assert.NoError(t, s.Validate())
}

func TestParse(t *testing.T) {
	type expected struct {
		err      string
		isSchema bool
		check    func(t *testing.T, s *Settings)
	}

	tests := []struct {
		name     string
		input    string
		expected expected
	}{
		{
			name:  "empty document keeps defaults",
			input: "",
			expected: expected{check: func(t *testing.T, s *Settings) {
				assert.Equal(t, Default().Policy(), s.Policy())
			}},
		},
		{
			name:  "partial section keeps sibling defaults",
			input: "compression:\n  cap: 40\n",
			expected: expected{check: func(t *testing.T, s *Settings) {
				assert.Equal(t, 40, s.Compression.Cap)
				assert.True(t, s.Compression.Enabled)
				assert.InDelta(t, 0.5, s.Compression.EnhanceRatio, 1e-9)
			}},
		},
		{
			name:  "booleans switched off",
			input: "shapes:\n  allow_hive: false\nkinds:\n  allow_mechanoids: true\n",
			expected: expected{check: func(t *testing.T, s *Settings) {
				p := s.Policy()
				assert.False(t, p.AllowHive)
				assert.True(t, p.AllowManhunters)
				assert.True(t, p.AllowMechanoids)
				assert.False(t, p.AllowInsectoids)
			}},
		},
		{
			name:  "map buff",
			input: "map_buff:\n  threat_minimum: 500\n  delay_ticks: 0\n",
			expected: expected{check: func(t *testing.T, s *Settings) {
				cfg := s.MapBuffConfig()
				assert.InDelta(t, 500, cfg.ThreatMinimum, 1e-9)
				assert.Zero(t, cfg.DelayTicks)
				assert.Equal(t, mapbuff.DefaultCheckInterval, cfg.CheckInterval)
			}},
		},
		{
			name:     "unknown section",
			input:    "compresion:\n  cap: 40\n",
			expected: expected{isSchema: true},
		},
		{
			name:     "unknown key",
			input:    "compression:\n  capp: 40\n",
			expected: expected{isSchema: true},
		},
		{
			name:     "cap below one",
			input:    "compression:\n  cap: 0\n",
			expected: expected{isSchema: true},
		},
		{
			name:     "ratio above one",
			input:    "compression:\n  enhance_ratio: 1.5\n",
			expected: expected{isSchema: true},
		},
		{
			name:     "bad tag",
			input:    "enhancement:\n  modifier_tag: \"has space\"\n",
			expected: expected{isSchema: true},
		},
		{
			name:     "not yaml",
			input:    "compression: [",
			expected: expected{err: "parse settings"},
		},
		{
			name:     "colliding tags",
			input:    "compatibility:\n  enabled: true\n  tag: CR_Powerup\n",
			expected: expected{err: "must differ"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.input))

			if tt.expected.isSchema {
				var verr *schema.ValidationError
				assert.True(t, errors.As(err, &verr), "expected *schema.ValidationError, got %v", err)
				return
			}
			if tt.expected.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expected.err)
				return
			}
			require.NoError(t, err)
			tt.expected.check(t, s)
		})
	}
}

func TestSettings_Channels(t *testing.T) {
	s := Default()
	s.Options.Implants = false
	assert.Equal(t, channels.Switches{Gear: true, Chemicals: true}, s.Channels())

	s.Options.Enabled = false
	assert.Equal(t, channels.Switches{}, s.Channels())
}

func TestLoad_ResolvesCatalogRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "channels.yaml"),
		[]byte("gear:\n  - {name: good, tag: CR_Good}\n"),
		0o644,
	))
	path := filepath.Join(dir, "spawncap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("options:\n  catalog: channels.yaml\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	cat, err := s.Catalog()
	require.NoError(t, err)
	require.Len(t, cat.Gear, 1)
	assert.Equal(t, "CR_Good", cat.Gear[0].Tag)
	assert.Empty(t, cat.Implants)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read settings")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("kinds:\n  allow_robots: true\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, bad)
}

func TestSettings_CatalogDefault(t *testing.T) {
	cat, err := Default().Catalog()
	require.NoError(t, err)
	assert.Equal(t, channels.DefaultCatalog(), cat)
}

func TestSettings_MarshalRoundTrip(t *testing.T) {
	s := Default()
	s.Compression.Cap = 35
	s.MapBuff.Enabled = false

	data, err := s.Marshal()
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	if diff := cmp.Diff(s, back, cmp.AllowUnexported(Settings{})); diff != "" {
		t.Errorf("settings changed across marshal (-want +got):\n%s", diff)
	}
	assert.Equal(t, s.Policy(), back.Policy())
	assert.Equal(t, s.MapBuffConfig(), back.MapBuffConfig())
}

package config

import "github.com/rickchristie/spawncap/schema"

const tagPattern = `^[A-Za-z0-9_]+$`

var settingsSchema = schema.MustCompile(schema.Strict(schema.Fields{
	"compression": schema.Nested("Compression switches", schema.Fields{
		"enabled":         schema.Boolean("Global compression switch").Default(true),
		"cap":             schema.Integer("Maximum agents one event may spawn").Min(1).Max(10000).Default(20),
		"enhance_ratio":   schema.Number("Share of the cap that is enhanced").Min(0).Max(1).Default(0.5),
		"gain_factor":     schema.Number("Scale of the power lost per enhanced slot").Min(0).Default(1),
		"max_gain":        schema.Number("Upper bound of the gain value, 0 for none").Min(0).Default(10),
		"display_message": schema.Boolean("Show a summary after each event").Default(true),
	}),
	"kinds": schema.Nested("Kind exclusions", schema.Fields{
		"allow_mechanoids": schema.Boolean("Compress mechanoid kinds").Default(false),
		"allow_insectoids": schema.Boolean("Compress insectoid kinds").Default(false),
	}),
	"shapes": schema.Nested("Per call shape switches", schema.Fields{
		"allow_manhunters":   schema.Boolean("Compress animal packs").Default(true),
		"allow_entity_swarm": schema.Boolean("Compress entity swarms").Default(true),
		"allow_hive":         schema.Boolean("Compress hive spawns").Default(true),
	}),
	"enhancement": schema.Nested("Core modifier", schema.Fields{
		"disable_factors":  schema.Boolean("Compress without enhancing").Default(false),
		"enhance_friendly": schema.Boolean("Enhance non-hostile spawns too").Default(false),
		"modifier_tag":     schema.String("Modifier tag").Pattern(tagPattern).Default("CR_Powerup"),
	}),
	"options": schema.Nested("Auxiliary enhancement channels", schema.Fields{
		"enabled":   schema.Boolean("Master switch").Default(true),
		"gear":      schema.Boolean("Gear refinement").Default(true),
		"implants":  schema.Boolean("Implant grafting").Default(true),
		"chemicals": schema.Boolean("Chemical buffs").Default(true),
		"catalog":   schema.String("Channel catalog file"),
	}),
	"compatibility": schema.Nested("Marker scaffold", schema.Fields{
		"enabled": schema.Boolean("Mark agents during enhancement").Default(false),
		"tag":     schema.String("Marker tag").Pattern(tagPattern).Default("CR_DummyForCompatibility"),
	}),
	"map_buff": schema.Nested("Buff of pre-existing hostiles on new maps", schema.Fields{
		"enabled":                    schema.Boolean("Buff new maps").Default(true),
		"threat_minimum":             schema.Number("Threat below which nothing is buffed").Min(0).Default(1000),
		"threat_per_stat_percentage": schema.Number("Threat points per percent of strength").Min(1).Default(100),
		"delay_ticks":                schema.Integer("Ticks a new map waits").Min(0).Default(60),
		"check_interval":             schema.Integer("Ticks between checks").Min(1).Default(15),
	}),
}))

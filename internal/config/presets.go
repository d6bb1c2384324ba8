package config

import "sort"

var Presets = map[string]*Config{
	"step": {
		Motor: "technic_l_angular", Integrator: "rk4", Duration: 2,
		Plant: PlantConfig{Quantize: true},
		Commands: []CommandConfig{
			{Op: OpRunTarget, Speed: 500, Angle: 180, Then: "hold"},
		},
	},
	"timed": {
		Motor: "technic_l_angular", Integrator: "rk4", Duration: 1.5,
		Plant: PlantConfig{Quantize: true},
		Commands: []CommandConfig{
			{Op: OpRunTime, Speed: 300, Time: 1, Then: "coast"},
		},
	},
	"reverse": {
		Motor: "technic_m_angular", Integrator: "rk4", Duration: 2,
		Plant: PlantConfig{Quantize: true},
		Commands: []CommandConfig{
			{Op: OpRunAngle, Speed: 800, Angle: -90, Then: "brake"},
		},
	},
	"stall": {
		Motor: "technic_l", Integrator: "rk4", Duration: 1.5,
		Plant: PlantConfig{Quantize: true, Block: &BlockConfig{From: 0}},
		Commands: []CommandConfig{
			{Op: OpRunForever, Speed: 500},
		},
	},
	"bump": {
		Motor: "technic_l_angular", Integrator: "rk4", Duration: 3,
		Plant: PlantConfig{Quantize: true, Block: &BlockConfig{From: 0.3, Until: 1.3}},
		Commands: []CommandConfig{
			{Op: OpRunTarget, Speed: 500, Angle: 360, Then: "hold"},
		},
	},
	"arm": {
		Motor: "technic_l", Integrator: "rk4", Duration: 3, GearRatio: 3,
		Plant: PlantConfig{Quantize: true, ArmMass: 0.1, ArmLength: 0.15},
		Commands: []CommandConfig{
			{Op: OpRunTarget, Speed: 200, Angle: 90, Then: "hold"},
		},
	},
	"sequence": {
		Motor: "ev3_l", Integrator: "rk4", Duration: 4,
		Plant: PlantConfig{Quantize: true},
		Commands: []CommandConfig{
			{Op: OpRunForever, Speed: 400},
			{At: 1, Op: OpRunTarget, Speed: 400, Angle: 720, Then: "hold"},
			{At: 3, Op: OpStop, Then: "coast"},
		},
	},
	"track": {
		Motor: "interactive", Integrator: "rk45", Duration: 2,
		Plant: PlantConfig{Quantize: true},
		Commands: []CommandConfig{
			{Op: OpTrackTarget, Angle: 30},
			{At: 0.5, Op: OpTrackTarget, Angle: -30},
			{At: 1, Op: OpTrackTarget, Angle: 0},
		},
	},
}

// GetPreset returns a copy of the named preset filled in with defaults,
// or nil when there is none.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Motor = p.Motor
	cfg.Integrator = p.Integrator
	cfg.Duration = p.Duration
	if p.GearRatio > 0 {
		cfg.GearRatio = p.GearRatio
	}
	cfg.Plant = p.Plant
	if cfg.Plant.InertiaScale == 0 {
		cfg.Plant.InertiaScale = 1
	}
	if cfg.Plant.FrictionScale == 0 {
		cfg.Plant.FrictionScale = 1
	}
	cfg.Commands = p.Commands
	return cfg.Clone()
}

// ListPresets returns the preset names in order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

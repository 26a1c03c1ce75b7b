package mission

import (
	"fmt"
	"time"
)

// Config defines mission execution parameters loaded from configuration.
type Config struct {
	FormationRadiusM      float64 `json:"formation_radius_m"`
	TakeoffAltitudeM      float64 `json:"takeoff_altitude_m"`
	TeleportRadiusM       float64 `json:"teleport_radius_m"`
	InterCommandDelayMS   int     `json:"inter_command_delay_ms"`
	StaggerMS             int     `json:"stagger_ms"`
	SettleSeconds         int     `json:"settle_seconds"`
	WaypointSettleSeconds int     `json:"waypoint_settle_seconds"`
	// Assignment selects the formation slot strategy: "index" or "nearest".
	Assignment string `json:"assignment"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.FormationRadiusM == 0 {
		c.FormationRadiusM = 30
	}
	if c.TakeoffAltitudeM == 0 {
		c.TakeoffAltitudeM = 100
	}
	if c.TeleportRadiusM == 0 {
		c.TeleportRadiusM = 5
	}
	if c.InterCommandDelayMS == 0 {
		c.InterCommandDelayMS = 200
	}
	if c.StaggerMS == 0 {
		c.StaggerMS = 100
	}
	if c.SettleSeconds == 0 {
		c.SettleSeconds = 5
	}
	if c.WaypointSettleSeconds == 0 {
		c.WaypointSettleSeconds = 8
	}
	if c.Assignment == "" {
		c.Assignment = "index"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.FormationRadiusM <= 0 {
		return fmt.Errorf("formation radius must be positive")
	}
	if c.TakeoffAltitudeM <= 0 {
		return fmt.Errorf("takeoff altitude must be positive")
	}
	if c.Assignment != "index" && c.Assignment != "nearest" {
		return fmt.Errorf("unknown assignment strategy %q", c.Assignment)
	}
	return nil
}

// Timing converts the configured delays into a Timing.
func (c Config) Timing() Timing {
	return Timing{
		InterCommand:   time.Duration(c.InterCommandDelayMS) * time.Millisecond,
		Stagger:        time.Duration(c.StaggerMS) * time.Millisecond,
		Settle:         time.Duration(c.SettleSeconds) * time.Second,
		WaypointSettle: time.Duration(c.WaypointSettleSeconds) * time.Second,
	}
}

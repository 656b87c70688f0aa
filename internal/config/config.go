package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tiltmatrix/internal/firmata"
	"tiltmatrix/internal/orient"
	"tiltmatrix/internal/sensors/icm20948"
)

const (
	SourceIMU     = "imu"
	SourceFirmata = "firmata"
	SourceReplay  = "replay"
	SourceSim     = "sim"
)

type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Estimator EstimatorConfig `yaml:"estimator"`
	GDL90     GDL90Config     `yaml:"gdl90"`
	Record    RecordConfig    `yaml:"record"`

	// StatusInterval controls the periodic status log line. Zero disables it.
	StatusInterval time.Duration `yaml:"status_interval"`
}

type SourceConfig struct {
	Kind    string        `yaml:"kind"`
	IMU     IMUConfig     `yaml:"imu"`
	Firmata FirmataConfig `yaml:"firmata"`
	Replay  ReplayConfig  `yaml:"replay"`
	Sim     SimConfig     `yaml:"sim"`
}

type IMUConfig struct {
	// Pointer: bus 0 is a valid choice, absent means bus 1.
	I2CBus     *int   `yaml:"i2c_bus"`
	Addr       uint16 `yaml:"addr"`
	FullScaleG int    `yaml:"full_scale_g"`
	RateHz     int    `yaml:"rate_hz"`

	DataReady DataReadyConfig `yaml:"data_ready"`
}

// DataReadyConfig wires the IMU interrupt pin to a GPIO line so samples
// are read on edges instead of on a ticker.
type DataReadyConfig struct {
	Enable bool   `yaml:"enable"`
	Chip   string `yaml:"chip"`
	Line   int    `yaml:"line"`
}

// Bus returns the configured I2C bus number, 1 when unset.
func (c IMUConfig) Bus() int {
	if c.I2CBus == nil {
		return 1
	}
	return *c.I2CBus
}

type FirmataConfig struct {
	Port       string              `yaml:"port"`
	Serial     firmata.PortOptions `yaml:"serial"`
	AccelID    byte                `yaml:"accel_id"`
	PulseID    byte                `yaml:"pulse_id"`
	CountsPerG float64             `yaml:"counts_per_g"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type SimConfig struct {
	RateHz  int           `yaml:"rate_hz"`
	TiltDeg float64       `yaml:"tilt_deg"`
	Period  time.Duration `yaml:"period"`
	NoiseG  float64       `yaml:"noise_g"`
	Seed    int64         `yaml:"seed"`
}

type EstimatorConfig struct {
	// Pointers: an explicit 0 disables smoothing, absent means default.
	ForceSmoothing       *float64 `yaml:"force_smoothing"`
	OrientationSmoothing *float64 `yaml:"orientation_smoothing"`
	GuardZeroZ           bool     `yaml:"guard_zero_z"`
}

// Smoothing resolves the configured factors, using the estimator defaults
// for unset ones.
func (e EstimatorConfig) Smoothing() (force, orientation float64) {
	force, orientation = orient.DefaultForceSmoothing, orient.DefaultOrientationSmoothing
	if e.ForceSmoothing != nil {
		force = *e.ForceSmoothing
	}
	if e.OrientationSmoothing != nil {
		orientation = *e.OrientationSmoothing
	}
	return force, orientation
}

type GDL90Config struct {
	Enable   bool          `yaml:"enable"`
	Dest     string        `yaml:"dest"`
	Interval time.Duration `yaml:"interval"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() error {
	src := &cfg.Source
	src.Kind = strings.ToLower(strings.TrimSpace(src.Kind))
	if src.Kind == "" {
		return fmt.Errorf("source.kind is required")
	}

	switch src.Kind {
	case SourceIMU:
		if src.IMU.I2CBus == nil {
			bus := 1
			src.IMU.I2CBus = &bus
		}
		if *src.IMU.I2CBus < 0 {
			return fmt.Errorf("source.imu.i2c_bus must be >= 0")
		}
		if src.IMU.Addr == 0 {
			src.IMU.Addr = icm20948.DefaultAddress()
		}
		if src.IMU.FullScaleG == 0 {
			src.IMU.FullScaleG = 4
		}
		switch src.IMU.FullScaleG {
		case 2, 4, 8, 16:
		default:
			return fmt.Errorf("source.imu.full_scale_g must be 2, 4, 8 or 16")
		}
		if src.IMU.RateHz <= 0 {
			src.IMU.RateHz = 50
		}
		if src.IMU.DataReady.Enable {
			if src.IMU.DataReady.Chip == "" {
				src.IMU.DataReady.Chip = "gpiochip0"
			}
			if src.IMU.DataReady.Line < 0 {
				return fmt.Errorf("source.imu.data_ready.line must be >= 0")
			}
		}
	case SourceFirmata:
		if src.Firmata.Port == "" {
			return fmt.Errorf("source.firmata.port is required")
		}
		opts, err := src.Firmata.Serial.Normalize()
		if err != nil {
			return fmt.Errorf("source.firmata.serial: %w", err)
		}
		src.Firmata.Serial = opts
		if src.Firmata.AccelID == 0 {
			src.Firmata.AccelID = firmata.DefaultAccelID
		}
		if src.Firmata.PulseID == 0 {
			src.Firmata.PulseID = firmata.DefaultPulseID
		}
		if src.Firmata.AccelID > 0x7F || src.Firmata.PulseID > 0x7F {
			return fmt.Errorf("source.firmata sensor ids must be 7-bit values")
		}
		if src.Firmata.AccelID == src.Firmata.PulseID {
			return fmt.Errorf("source.firmata.accel_id and pulse_id must differ")
		}
		if src.Firmata.CountsPerG == 0 {
			src.Firmata.CountsPerG = firmata.DefaultCountsPerG
		}
		if src.Firmata.CountsPerG < 0 {
			return fmt.Errorf("source.firmata.counts_per_g must be > 0")
		}
	case SourceReplay:
		if src.Replay.Path == "" {
			return fmt.Errorf("source.replay.path is required")
		}
		if src.Replay.Speed == 0 {
			src.Replay.Speed = 1
		}
		if src.Replay.Speed < 0 {
			return fmt.Errorf("source.replay.speed must be > 0")
		}
	case SourceSim:
		if src.Sim.RateHz <= 0 {
			src.Sim.RateHz = 50
		}
		if src.Sim.TiltDeg == 0 {
			src.Sim.TiltDeg = 20
		}
		if src.Sim.Period <= 0 {
			src.Sim.Period = 10 * time.Second
		}
		if src.Sim.NoiseG < 0 {
			return fmt.Errorf("source.sim.noise_g must be >= 0")
		}
		if src.Sim.Seed == 0 {
			src.Sim.Seed = 1
		}
	default:
		return fmt.Errorf("source.kind must be one of %s, %s, %s, %s", SourceIMU, SourceFirmata, SourceReplay, SourceSim)
	}

	if cfg.GDL90.Enable {
		if cfg.GDL90.Dest == "" {
			return fmt.Errorf("gdl90.dest is required when gdl90.enable is true")
		}
		if cfg.GDL90.Interval <= 0 {
			cfg.GDL90.Interval = 200 * time.Millisecond
		}
	}

	if cfg.Record.Enable {
		if cfg.Record.Path == "" {
			return fmt.Errorf("record.path is required when record.enable is true")
		}
		if src.Kind == SourceReplay {
			return fmt.Errorf("record cannot be used with source.kind=replay")
		}
	}

	if cfg.StatusInterval < 0 {
		return fmt.Errorf("status_interval must be >= 0")
	}
	return nil
}

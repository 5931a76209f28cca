package config

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
	"periph.io/x/periph/conn/physic"

	"github.com/tracked-rc/go-controller/pkg/gamepad"
	"github.com/tracked-rc/go-controller/pkg/output"
)

const DefaultPath = "/cfg/trackctl.yaml"

type Config struct {
	Gamepad        GamepadConfig   `yaml:"gamepad"`
	PWM            PWMConfig       `yaml:"pwm"`
	Outputs        []BindingConfig `yaml:"outputs"`
	Sounds         SoundConfig     `yaml:"sounds"`
	UpdateInterval time.Duration   `yaml:"update_interval"`
}

type GamepadConfig struct {
	// Device node; empty auto-detects the first gamepad.
	Device               string        `yaml:"device"`
	Legacy               bool          `yaml:"legacy"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
}

type PWMConfig struct {
	Bus         string `yaml:"bus"`
	FrequencyHz int    `yaml:"frequency_hz"`
	// Simulate logs PWM writes instead of touching the I2C bus.
	Simulate bool `yaml:"simulate"`
	Verbose  bool `yaml:"verbose"`
}

type BindingConfig struct {
	Channel string `yaml:"channel"`
	Port    int    `yaml:"port"`
	Kind    string `yaml:"kind"`
	Invert  bool   `yaml:"invert"`
}

type SoundConfig struct {
	Connected    string `yaml:"connected"`
	Disconnected string `yaml:"disconnected"`
	GivenUp      string `yaml:"given_up"`
}

func Default() Config {
	return Config{
		Gamepad: GamepadConfig{
			MaxReconnectAttempts: gamepad.MaxReconnectAttempts,
			ReconnectDelay:       gamepad.DefaultReconnectDelay,
		},
		PWM: PWMConfig{
			Bus:         "/dev/i2c-1",
			FrequencyHz: 50,
			Simulate:    true,
		},
		Outputs: []BindingConfig{
			{Channel: gamepad.LeftJoystickY.String(), Port: 0, Kind: string(output.KindServo)},
			{Channel: gamepad.RightJoystickY.String(), Port: 1, Kind: string(output.KindServo)},
		},
		UpdateInterval: 100 * time.Millisecond,
	}
}

// Load reads a YAML config on top of Default. A missing file is not an
// error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	} else if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg and validates the result.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return err
	}
	_, err := cfg.Bindings()
	if err != nil {
		return err
	}
	if cfg.UpdateInterval <= 0 {
		return errors.Errorf("update_interval must be positive, not %v", cfg.UpdateInterval)
	}
	if cfg.PWM.FrequencyHz <= 0 {
		return errors.Errorf("pwm.frequency_hz must be positive, not %d", cfg.PWM.FrequencyHz)
	}
	return nil
}

// Bindings converts the configured outputs into output bindings.
func (c Config) Bindings() ([]output.Binding, error) {
	bindings := make([]output.Binding, 0, len(c.Outputs))
	for _, o := range c.Outputs {
		ch, err := gamepad.ParseChannel(o.Channel)
		if err != nil {
			return nil, err
		}
		b := output.Binding{
			Channel: ch,
			Port:    o.Port,
			Kind:    output.Kind(o.Kind),
			Invert:  o.Invert,
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func (c Config) PWMFrequency() physic.Frequency {
	return physic.Frequency(c.PWM.FrequencyHz) * physic.Hertz
}

// MonitorOptions returns the gamepad.Monitor settings from the config.
func (c Config) MonitorOptions() []gamepad.Option {
	return []gamepad.Option{
		gamepad.WithMaxReconnectAttempts(c.Gamepad.MaxReconnectAttempts),
		gamepad.WithReconnectDelay(c.Gamepad.ReconnectDelay),
	}
}

// Marshal renders the config as YAML, e.g. to record what is in use.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(&c)
}

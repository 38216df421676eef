package config

import (
	"io/ioutil"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/skinned_mesh/skeleton"
)

type Config struct {
	Listen string `yaml:"listen"`
	Model  string `yaml:"model"`
	Script string `yaml:"script"`
	// charmap name used for scripts that are not UTF-8, see ListEncodings
	ScriptEncoding string `yaml:"script_encoding"`

	TickRate           float32 `yaml:"tick_rate"`
	Workers            int     `yaml:"workers"`
	WeightSumTolerance float32 `yaml:"weight_sum_tolerance"`

	// tracking joint name -> mesh bone name
	BoneAliases map[string]string `yaml:"bone_aliases"`
}

func Default() Config {
	return Config{
		Listen:             ":8000",
		ScriptEncoding:     "Windows 1252",
		TickRate:           30,
		Workers:            1,
		WeightSumTolerance: skeleton.DEFAULT_WEIGHT_SUM_TOLERANCE,
	}
}

// Parse reads yaml over the defaults, so missing keys keep default values.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrapf(err, "Failed to parse config")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func Load(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "Failed to read config %q", path)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "Config %q", path)
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.TickRate <= 0 {
		return errors.Errorf("Invalid tick_rate %v", c.TickRate)
	}
	if c.Workers < 1 {
		return errors.Errorf("Invalid workers %v", c.Workers)
	}
	if c.WeightSumTolerance < 0 {
		return errors.Errorf("Invalid weight_sum_tolerance %v", c.WeightSumTolerance)
	}
	if c.ScriptEncoding != "" {
		if _, err := lookupEncoding(c.ScriptEncoding); err != nil {
			return err
		}
	}
	return nil
}

// ResolveBone maps a tracking joint name to a mesh bone name.
// Names without alias are returned unchanged.
func (c *Config) ResolveBone(name string) string {
	if alias, ok := c.BoneAliases[name]; ok {
		return alias
	}
	return name
}

var (
	currentLock sync.RWMutex
	current     = Default()
)

func Get() Config {
	currentLock.RLock()
	defer currentLock.RUnlock()
	return current
}

// Set replaces the process wide config and applies its script encoding.
func Set(c Config) error {
	if c.ScriptEncoding != "" {
		if err := SetEncoding(c.ScriptEncoding); err != nil {
			return err
		}
	}
	currentLock.Lock()
	defer currentLock.Unlock()
	current = c
	return nil
}

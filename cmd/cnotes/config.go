package main

import (
	"os"

	"go.dedis.ch/cnotes/cli"
	"go.dedis.ch/cnotes/core/pda"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// defaultProgramID is the identity of the program the trees are bound to when
// the configuration does not define one.
const defaultProgramID = "a47804b3fdc00b35b73f0256fae8e2ebd4bd33f157d76bc46d47a86ecdee245c"

const defaultConfigPath = "cnotes.yaml"

// Config is the configuration of the application. It is read from a YAML file
// and each value can be overridden by the flag of the same name.
type Config struct {
	ProgramID    string `yaml:"program_id"`
	DB           string `yaml:"db"`
	Key          string `yaml:"key"`
	LogLevel     string `yaml:"log_level"`
	MaxEventSize int    `yaml:"max_event_size"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() Config {
	return Config{
		ProgramID:    defaultProgramID,
		DB:           "cnotes.db",
		Key:          "private.key",
		LogLevel:     "warn",
		MaxEventSize: 0,
	}
}

// LoadConfig reads the configuration from the file. A missing file is not an
// error unless it is required, in which case the defaults are returned.
func LoadConfig(path string, required bool) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !required {
		return cfg, nil
	}

	if err != nil {
		return cfg, xerrors.Errorf("failed to read config: %v", err)
	}

	err = yaml.UnmarshalStrict(data, &cfg)
	if err != nil {
		return cfg, xerrors.Errorf("failed to parse config '%s': %v", path, err)
	}

	return cfg, nil
}

// Override returns the configuration with the values of the flags that are
// set.
func (c Config) Override(flags cli.Flags) Config {
	if flags.IsSet("program") {
		c.ProgramID = flags.String("program")
	}

	if flags.IsSet("db") {
		c.DB = flags.Path("db")
	}

	if flags.IsSet("key") {
		c.Key = flags.Path("key")
	}

	if flags.IsSet("log-level") {
		c.LogLevel = flags.String("log-level")
	}

	if flags.IsSet("max-event-size") {
		c.MaxEventSize = flags.Int("max-event-size")
	}

	return c
}

// Program returns the identity of the program.
func (c Config) Program() (pda.Address, error) {
	addr, err := pda.ParseAddress(c.ProgramID)
	if err != nil {
		return addr, xerrors.Errorf("invalid program id: %v", err)
	}

	return addr, nil
}

// readConfig loads the configuration of the file given by the flags and
// applies the flags on top of it.
func readConfig(flags cli.Flags) (Config, error) {
	path := flags.Path("config")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := LoadConfig(path, flags.IsSet("config"))
	if err != nil {
		return cfg, err
	}

	cfg = cfg.Override(flags)

	if cfg.MaxEventSize < 0 {
		return cfg, xerrors.Errorf("invalid max event size %d", cfg.MaxEventSize)
	}

	return cfg, nil
}

func configFlags() []cli.Flag {
	return []cli.Flag{
		cli.PathFlag{
			Name:    "config",
			Usage:   "path to the YAML configuration file",
			Value:   defaultConfigPath,
			EnvVars: []string{"CNOTES_CONFIG"},
		},
		cli.PathFlag{
			Name:  "db",
			Usage: "path to the database",
		},
		cli.PathFlag{
			Name:  "key",
			Usage: "path to the private key of the signer",
		},
		cli.StringFlag{
			Name:  "program",
			Usage: "hex-encoded identity of the program",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "level of the logs (trace, debug, info, warn, error)",
		},
		cli.IntFlag{
			Name:  "max-event-size",
			Usage: "maximum size in bytes of an event, 0 for no limit",
		},
	}
}

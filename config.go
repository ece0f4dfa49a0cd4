package fastcert

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/mcuadros/go-defaults"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Quiet bool `desc:"Suppress step output." flag:"quiet,q" env:"FASTCERT_QUIET" toml:"quiet"`

	CARoot string `desc:"Directory holding the root certificate and key." flag:"caroot" env:"CAROOT" toml:"caroot"`

	Trust struct {
		NoSudo bool `desc:"Disable sudo prompts." flag:"no-sudo" env:"FASTCERT_NO_SUDO" toml:"no-sudo"`

		Stores []string `default:"[system,nss,java]" desc:"Trust stores to synchronize." flag:"trust-stores" env:"FASTCERT_TRUST_STORES" toml:"trust-stores"`

		Timeout time.Duration `default:"2m" desc:"Execution timeout for trust store tooling." env:"FASTCERT_TRUST_TIMEOUT" toml:"timeout"`

		Install struct{} `cmd:"install"`

		Uninstall struct{} `cmd:"uninstall"`
	} `toml:"trust"`

	Issue struct {
		ECDSA  bool `desc:"Generate an ECDSA P-256 key instead of RSA-2048." flag:"ecdsa" env:"FASTCERT_ECDSA" toml:"ecdsa"`
		Client bool `desc:"Add client authentication to the extended key usages." flag:"client" env:"FASTCERT_CLIENT" toml:"client"`
		PKCS12 bool `desc:"Also write a PKCS#12 bundle." flag:"pkcs12" env:"FASTCERT_PKCS12" toml:"pkcs12"`

		CertFile string `desc:"Certificate output path." flag:"cert-file" env:"FASTCERT_CERT_FILE" toml:"cert-file"`
		KeyFile  string `desc:"Private key output path." flag:"key-file" env:"FASTCERT_KEY_FILE" toml:"key-file"`
		P12File  string `desc:"PKCS#12 output path." flag:"p12-file" env:"FASTCERT_P12_FILE" toml:"p12-file"`
	} `cmd:"issue" toml:"issue"`

	CARootCmd struct{} `cmd:"root"`

	Version struct{} `cmd:"version"`

	Test ConfigTest
}

// values used for testing
type ConfigTest struct {
	SkipRunE bool `desc:"skip RunE for testing purposes"`
}

var Defaults = defaultConfig()

func defaultConfig() *Config {
	cfg := new(Config)
	defaults.SetDefaults(cfg)
	return cfg
}

// LoadConfig hydrates a Config from defaults, then the optional TOML
// config file, then the environment. Environment values win.
func LoadConfig() (*Config, error) {
	cfg := new(Config)
	defaults.SetDefaults(cfg)

	if path := configFilePath(); path != "" {
		if err := decodeConfigFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, err
	}
	return cfg, nil
}

func configFilePath() string {
	if path := os.Getenv("FASTCERT_CONFIG"); path != "" {
		return path
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	path := filepath.Join(dir, "fastcert", "fastcert.toml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func decodeConfigFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && os.Getenv("FASTCERT_CONFIG") == "" {
			return nil
		}
		return err
	}
	defer f.Close()

	return toml.NewDecoder(f).Decode(cfg)
}

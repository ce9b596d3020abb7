package config

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/ini.v1"
)

const (
	envConfigPath = "CHAT_CONFIG"
	iniSection    = "server"
)

var (
	ErrParseFlags = errors.New("failed to parse command line arguments")
	ErrLoadConfig = errors.New("failed to load config file")
)

type Config struct {
	APIListenAddr string
	WSListenAddr  string
	LogLevel      string
	AllowedOrigin string
	WaitTTL       time.Duration
	SweepInterval time.Duration
}

// Parse reads flags from args. Values missing on the command line are taken
// from the [server] section of the ini file named by --config or CHAT_CONFIG.
func Parse(args []string) (*Config, error) {
	var (
		cfg Config
		fs  = pflag.NewFlagSet("main", pflag.ContinueOnError)
	)
	fs.StringVarP(&cfg.APIListenAddr, "api-listen-addr", "a", ":8080", "api listen address")
	fs.StringVarP(&cfg.WSListenAddr, "ws-listen-addr", "w", ":8888", "websocket chat listen address")
	fs.StringVarP(&cfg.LogLevel, "log-level", "l", "debug", "log level")
	fs.StringVar(&cfg.AllowedOrigin, "allowed-origin", "*", "allowed client origin")
	fs.DurationVar(&cfg.WaitTTL, "wait-ttl", 0, "max time in waiting pool, 0 waits forever")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", 5*time.Second, "waiting pool expiry check interval")
	configPath := fs.StringP("config", "c", os.Getenv(envConfigPath), "path to ini config file")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Join(ErrParseFlags, err)
	}
	if *configPath == "" {
		return &cfg, nil
	}
	if err := applyFile(fs, *configPath); err != nil {
		return nil, errors.Join(ErrLoadConfig, err)
	}
	return &cfg, nil
}

func applyFile(fs *pflag.FlagSet, path string) error {
	file, err := ini.Load(path)
	if err != nil {
		return err
	}
	section := file.Section(iniSection)

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "config" || !section.HasKey(f.Name) {
			return
		}
		if err := fs.Set(f.Name, section.Key(f.Name).String()); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	Viper *viper.Viper
	Conf  *Config
)

type Config struct {
	ZapConf    *ZapConfig  `mapstructure:"zap"`
	RaftConfig *RaftConfig `mapstructure:"raft"`
}

// InitConfig loads the yaml config at path and keeps watching it for edits.
func InitConfig(path string) error {
	Viper = viper.New()
	Viper.SetConfigFile(path)
	Viper.SetConfigType("yaml")
	if err := Viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	conf := defaultConfig()
	if err := Viper.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config file: %w", err)
	}
	Conf = conf

	Viper.WatchConfig()
	Viper.OnConfigChange(func(e fsnotify.Event) {
		reloaded := defaultConfig()
		if err := Viper.Unmarshal(reloaded); err != nil {
			fmt.Println("config file changed but not reloadable:", err)
			return
		}
		Conf = reloaded
	})
	return nil
}

func defaultConfig() *Config {
	return &Config{
		ZapConf:    defaultZapConfig(),
		RaftConfig: defaultRaftConfig(),
	}
}

func GetZapConf() *ZapConfig {
	if Conf == nil {
		return defaultZapConfig()
	}
	return Conf.ZapConf
}

func GetRaftConf() *RaftConfig {
	if Conf == nil {
		return defaultRaftConfig()
	}
	return Conf.RaftConfig
}

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

var ErrMissingLogin = errors.New("controller is missing login data, set shc.host, shc.user and shc.password")

type config struct {
	Shc struct {
		Host        string `mapstructure:"host"`
		User        string `mapstructure:"user"`
		Password    string `mapstructure:"password"`
		PollTimeout int    `mapstructure:"polltimeout"`
	} `mapstructure:"shc"`
	Mqtt struct {
		Broker   string `mapstructure:"broker"`
		ClientId string `mapstructure:"clientid"`
		Prefix   string `mapstructure:"prefix"`
	} `mapstructure:"mqtt"`
	Metrics struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Bridge struct {
		PathScheme string `mapstructure:"pathscheme"`
	} `mapstructure:"bridge"`
	Influxdb struct {
		Host   string `mapstructure:"host"`
		Token  string `mapstructure:"token"`
		Org    string `mapstructure:"org"`
		Bucket string `mapstructure:"bucket"`
	} `mapstructure:"influxdb"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("shc.host", "")
	v.SetDefault("shc.user", "")
	v.SetDefault("shc.password", "")
	v.SetDefault("shc.polltimeout", 30)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.clientid", "")
	v.SetDefault("mqtt.prefix", "smarthome/0")
	v.SetDefault("metrics.port", 9123)
	v.SetDefault("bridge.pathscheme", "id")
	v.SetDefault("influxdb.host", "")
	v.SetDefault("influxdb.token", "")
	v.SetDefault("influxdb.org", "")
	v.SetDefault("influxdb.bucket", "")
}

// readConfig layers the yaml file at path over the defaults. Environment
// variables (SHC_ prefix, "." replaced by "_") win over both.
func readConfig(v *viper.Viper, path string) error {
	setDefaults(v)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.SetEnvPrefix("shc")
	v.AutomaticEnv()
	v.SetConfigType("yaml")
	cfg, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("no configuration file found at %s: %w", path, err)
	}
	if err := v.ReadConfig(bytes.NewBuffer(cfg)); err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}
	return nil
}

func loadConfig(v *viper.Viper) (config, error) {
	var c config
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if c.Shc.Host == "" || c.Shc.User == "" || c.Shc.Password == "" {
		return c, ErrMissingLogin
	}
	return c, nil
}

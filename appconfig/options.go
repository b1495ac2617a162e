// Package appconfig loads and watches the gateway's configuration, built
// on github.com/spf13/viper the same way github.com/nabbar/golib/viper
// wraps it: a loader that accepts a config file path, a default
// fallback reader, and live reload via fsnotify.
package appconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/un9021/uniset2/directory"
)

// Options is the full recognized configuration surface of spec.md §6,
// one struct field per key.
type Options struct {
	Name string

	NodeID int32
	ProcID int32

	Host      string
	Port      int
	Broadcast bool

	SendTime    time.Duration
	SendTimeout time.Duration
	Timeout     time.Duration

	FilterField string
	FilterValue string

	HeartbeatID   int64
	HeartbeatMax  int64
	HeartbeatTime time.Duration

	SMReadyTimeout  time.Duration
	ActivateTimeout time.Duration

	WSMax           int
	WSHeartbeatTime time.Duration
	WSSendTime      time.Duration
	WSMaxSend       int

	HTTPServerHost        string
	HTTPServerPort        int
	HTTPServerMaxQueued   int
	HTTPServerMaxThreads  int
	HTTPServerCORSAllow   string
}

// defaults mirror spec.md §5's timeout table; zero in the loaded config
// resolves to these, a negative value is preserved as "wait indefinitely".
var defaults = map[string]interface{}{
	"node-id":             1,
	"proc-id":             1,
	"port":                8080,
	"send-time":           "1s",
	"send-timeout":        "2s",
	"timeout":             "1s",
	"heartbeat-time":      "5s",
	"sm-ready-timeout":    "15s",
	"activate-timeout":    "20s",
	"ws-max":              256,
	"ws-heartbeat-time":   "3s",
	"ws-send-time":        "1s",
	"ws-max-send":         64,
	"httpserver-host":     "0.0.0.0",
	"httpserver-port":     8081,
	"httpserver-max-queued":  128,
	"httpserver-max-threads": 16,
	"httpserver-cors-allow":  "*",
}

// resolveDuration implements spec.md §5's "negative means wait
// indefinitely, zero means default" rule for one duration-valued key.
func resolveDuration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := v.GetDuration(key)
	if raw == 0 {
		return fallback
	}
	return raw
}

func resolveDurationDefault(v *viper.Viper, key string) time.Duration {
	def, _ := time.ParseDuration(fmt.Sprintf("%v", defaults[key]))
	return resolveDuration(v, key, def)
}

// Load reads path into an Options, falling back to built-in defaults for
// any key not present. path may be empty, in which case only defaults
// and environment overrides (UNISET2_* prefix) apply.
func Load(path string) (Options, error) {
	v := viper.New()
	v.SetEnvPrefix("UNISET2")
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Options{}, err
		}
	}

	return fromViper(v), nil
}

// Watch calls onChange every time the file backing path is modified,
// passing the freshly reloaded Options. It is the config-reload
// counterpart referenced by spec.md §9's "reconfigurable without
// restart" intent, built directly on viper.WatchConfig/OnConfigChange
// (itself fsnotify-backed), matching the live-reload shape
// nabbar/golib/viper exposes via SetRemoteReloadFunc.
func Watch(path string, onChange func(Options)) error {
	v := viper.New()
	v.SetEnvPrefix("UNISET2")
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		onChange(fromViper(v))
	})
	v.WatchConfig()
	return nil
}

func fromViper(v *viper.Viper) Options {
	return Options{
		Name: v.GetString("name"),

		NodeID: int32(v.GetInt("node-id")),
		ProcID: int32(v.GetInt("proc-id")),

		Host:      v.GetString("host"),
		Port:      v.GetInt("port"),
		Broadcast: v.GetBool("broadcast"),

		SendTime:    resolveDurationDefault(v, "send-time"),
		SendTimeout: resolveDurationDefault(v, "send-timeout"),
		Timeout:     resolveDurationDefault(v, "timeout"),

		FilterField: v.GetString("filter-field"),
		FilterValue: v.GetString("filter-value"),

		HeartbeatID:   v.GetInt64("heartbeat-id"),
		HeartbeatMax:  v.GetInt64("heartbeat-max"),
		HeartbeatTime: resolveDurationDefault(v, "heartbeat-time"),

		SMReadyTimeout:  resolveDurationDefault(v, "sm-ready-timeout"),
		ActivateTimeout: resolveDurationDefault(v, "activate-timeout"),

		WSMax:           v.GetInt("ws-max"),
		WSHeartbeatTime: resolveDurationDefault(v, "ws-heartbeat-time"),
		WSSendTime:      resolveDurationDefault(v, "ws-send-time"),
		WSMaxSend:       v.GetInt("ws-max-send"),

		HTTPServerHost:       v.GetString("httpserver-host"),
		HTTPServerPort:       v.GetInt("httpserver-port"),
		HTTPServerMaxQueued:  v.GetInt("httpserver-max-queued"),
		HTTPServerMaxThreads: v.GetInt("httpserver-max-threads"),
		HTTPServerCORSAllow:  v.GetString("httpserver-cors-allow"),
	}
}

// Filter builds the directory.Filter spec.md §4.1 describes from the
// loaded filter-field/filter-value pair.
func (o Options) Filter() directory.Filter {
	return directory.Filter{Field: o.FilterField, Value: o.FilterValue}
}

// sensorRecord is the on-disk shape of one directory.Record.
type sensorRecord struct {
	Name   string            `json:"name"`
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// LoadRecords reads the declarative sensor list (the configuration
// source directory.Build scans) from a JSON array of {name, id, fields}
// objects, in declaration order — this is the "startup-time snapshot of
// which sensors a gateway instance cares about" spec.md §4.1 describes,
// kept separate from Options since it is a list, not a flat key set.
func LoadRecords(path string) ([]directory.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var recs []sensorRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}

	out := make([]directory.Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, directory.Record{Name: r.Name, ID: r.ID, Fields: r.Fields})
	}
	return out, nil
}

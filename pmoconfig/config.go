package pmoconfig

import (
	_ "embed"
	"fmt"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/fileutils"
)

//go:embed pmocontrol.yaml
var defaultConfig []byte

type Config struct {
	path   string
	mutex  sync.Mutex
	config map[string]interface{}
}

var _CONFIG *Config

const envConfigFile = "PMOCONTROL_CONFIG"
const envPrefix = "PMOCONTROL_CONFIG__"

// LoadConfig loads a configuration file from the given path or a default
// location.
//
// It prioritizes paths in this order:
//   - the provided path,
//   - the file specified by the environment variable PMOCONTROL_CONFIG
//   - the .pmocontrol.yml file in the current directory
//   - the .pmocontrol.yml file in the user's home directory
//
// If none of them can be read it falls back on the embedded default
// configuration. Environment variables prefixed by PMOCONTROL_CONFIG__ override
// individual keys, the double underscore separating the path elements:
//
//	PMOCONTROL_CONFIG__CONTROL__ATTEMPTS=3
//
// The resulting configuration is saved back to the first writable location of
// the same list. The function panics when the YAML is invalid or when no
// writable location exists, both being fatal at startup.
func LoadConfig(filename string) *Config {
	var data []byte
	var err error

	path := filename

	if path != "" {
		log.Infof("✅ Trying to load config %s", path)
		data, err = os.ReadFile(path)
		if err != nil {
			log.Warnf("❌ cannot read config file %s", path)
			path = ""
		}
	}

	if path == "" {
		path = os.Getenv(envConfigFile)
		if path != "" {
			log.Infof("✅ Trying to load config specified in env var %s", envConfigFile)
			data, err = os.ReadFile(path)
			if err != nil {
				log.Warnf("❌ cannot read config file %s specified in env var %s", path, envConfigFile)
				path = ""
			}
		}
	}

	if path == "" {
		path = ".pmocontrol.yml"
		dir, err := os.Getwd()
		if err != nil {
			dir = "."
		}
		log.Infof("✅ Trying to load config file %s/.pmocontrol.yml", dir)
		data, err = os.ReadFile(path)
		if err != nil {
			log.Warnf("❌ I cannot read config file %s/.pmocontrol.yml", dir)
			path = ""
		}
	}

	if path == "" {
		path = getHomeYmlPath()
		if path != "" {
			log.Infof("✅ Trying to load config file from user's home %s", path)
			data, err = os.ReadFile(path)
			if err != nil {
				log.Warnf("❌ I cannot read config file %s", path)
				path = ""
			}
		}
	}

	if path == "" {
		log.Infof("✅ Using default embeded config")
		data = defaultConfig
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		log.Panicf("invalid YAML config: %v", err)
	}

	if path == "" {
		switch {
		case filename != "" && fileutils.IsWriteable(filename):
			path = filename
		case os.Getenv(envConfigFile) != "" && fileutils.IsWriteable(os.Getenv(envConfigFile)):
			path = os.Getenv(envConfigFile)
		case fileutils.IsWriteable(".pmocontrol.yml"):
			path = ".pmocontrol.yml"
		case getHomeYmlPath() != "" && fileutils.IsWriteable(getHomeYmlPath()):
			path = getHomeYmlPath()
		}
	} else if !fileutils.IsWriteable(path) {
		path = ""
	}

	if path == "" {
		log.Panic("I cannot find a place to store config file")
	}

	log.Infof("✅ Config file will be stored in  %s", path)

	cfg.path = path
	if err := cfg.Save(); err != nil {
		log.Warnf("❌ Cannot save config to %s: %v", path, err)
	}
	return cfg
}

// ParseConfig builds an in-memory configuration from YAML data, applying the
// environment overrides. Such a configuration is never written to disk.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}

	if err := yaml.Unmarshal(data, &cfg.config); err != nil {
		return nil, err
	}
	if cfg.config == nil {
		cfg.config = make(map[string]interface{})
	}

	cfg.config = lowerKeysMap(cfg.config)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func (cfg *Config) Path() string {
	return cfg.path
}

func (cfg *Config) Save() error {
	cfg.mutex.Lock()
	defer cfg.mutex.Unlock()

	if cfg.path == "" {
		return nil
	}

	cfg.config = lowerKeysMap(cfg.config)

	data, err := yaml.Marshal(cfg.config)
	if err != nil {
		return err
	}

	return os.WriteFile(cfg.path, data, 0644)
}

func (cfg *Config) SetValue(path []string, value interface{}) {
	cfg.setValue(path, value)
	if err := cfg.Save(); err != nil {
		log.Warnf("❌ Cannot save config: %v", err)
	}
}

func (cfg *Config) GetValue(path []string) (interface{}, error) {
	cfg.mutex.Lock()
	defer cfg.mutex.Unlock()

	current := cfg.config
	for i, key := range path {
		key = strings.ToLower(key)

		next, ok := current[key]
		if !ok {
			return nil, fmt.Errorf("path %s does not exist", strings.Join(path[:i+1], "."))
		}
		if i < len(path)-1 {
			current, ok = next.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("path  %s is not a Config", strings.Join(path[:i+1], "."))
			}
			continue
		}
		return next, nil
	}
	return nil, fmt.Errorf("path %s does not exist", strings.Join(path, "."))
}

// setValue sets a value in the nested map at the given path, creating the
// intermediate maps.
func (cfg *Config) setValue(path []string, value interface{}) {
	cfg.mutex.Lock()
	defer cfg.mutex.Unlock()

	current := cfg.config
	for i, key := range path {
		key = strings.ToLower(key)
		if i == len(path)-1 {
			current[key] = value
			return
		}
		next, ok := current[key].(map[string]interface{})
		if !ok {
			// If the path conflicts with a non-object, overwrite it
			next = make(map[string]interface{})
			current[key] = next
		}
		current = next
	}
}

// getHomeYmlPath returns "$HOME/.pmocontrol.yml", or "" when the current user
// cannot be determined.
func getHomeYmlPath() string {
	usr, err := user.Current()
	if err != nil {
		log.Warnf("❌ Cannot determine current user: %v", err)
		return ""
	}
	return path.Join(usr.HomeDir, ".pmocontrol.yml")
}

func applyEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, envPrefix) {
			continue
		}

		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		keyPath := strings.Split(strings.TrimPrefix(parts[0], envPrefix), "__")
		cfg.setValue(keyPath, convertYAMLScalar(parts[1]))
	}
}

func convertYAMLScalar(s string) interface{} {
	var out interface{}
	if err := yaml.Unmarshal([]byte(s), &out); err != nil {
		// on garde la chaîne brute
		return s
	}
	return out
}

func lowerKeysMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range m {
		lk := strings.ToLower(k)
		switch vv := v.(type) {
		case map[string]interface{}:
			out[lk] = lowerKeysMap(vv)
		default:
			out[lk] = v
		}
	}
	return out
}

func GetConfig() *Config {
	if _CONFIG == nil {
		_CONFIG = LoadConfig("")
	}
	return _CONFIG
}

// SetConfig replaces the process wide configuration returned by GetConfig.
func SetConfig(cfg *Config) {
	_CONFIG = cfg
}

func (conf *Config) getInt(def int, path ...string) int {
	v, err := conf.GetValue(path)
	if err != nil {
		return def
	}
	switch iv := v.(type) {
	case int:
		return iv
	case int64:
		return int(iv)
	case float64:
		return int(iv)
	}
	return def
}

func (conf *Config) getString(def string, path ...string) string {
	v, err := conf.GetValue(path)
	if err != nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

func (conf *Config) getMillis(def int, path ...string) time.Duration {
	return time.Duration(conf.getInt(def, path...)) * time.Millisecond
}

func (conf *Config) GetBaseURL() string {
	return conf.getString("", "host", "base_url")
}

func (conf *Config) GetHTTPPort() int {
	return conf.getInt(1401, "host", "http_port")
}

// GetInterface returns the network interface used for SSDP and for the base
// URL given to renderers. Empty means "guess".
func (conf *Config) GetInterface() string {
	return conf.getString("", "host", "interface")
}

func (conf *Config) GetActionAttempts() int {
	n := conf.getInt(7, "control", "attempts")
	if n < 1 {
		return 1
	}
	return n
}

func (conf *Config) GetActionTimeout() time.Duration {
	return conf.getMillis(2000, "control", "timeout_ms")
}

func (conf *Config) GetCompletionThreshold() time.Duration {
	return conf.getMillis(500, "control", "completion_threshold_ms")
}

func (conf *Config) GetRedirectHops() int {
	return conf.getInt(10, "control", "redirect_hops")
}

func (conf *Config) GetPositionInterval() time.Duration {
	return conf.getMillis(1000, "player", "position_interval_ms")
}

func (conf *Config) GetVolumeStep() int {
	return conf.getInt(5, "player", "volume_step")
}

func (conf *Config) GetDiscoveryWait() int {
	return conf.getInt(3, "discovery", "wait_seconds")
}

func (conf *Config) GetSearchInterval() time.Duration {
	return time.Duration(conf.getInt(60, "discovery", "search_interval_seconds")) * time.Second
}

func (conf *Config) GetCoverCacheDir() string {
	dir := conf.getString("", "covers", "dir")
	if dir != "" {
		return dir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "pmocontrol", "covers")
}

func (conf *Config) GetCoverCacheSize() int {
	return conf.getInt(500, "covers", "size")
}

func (conf *Config) GetCoverVariantSize() int {
	return conf.getInt(300, "covers", "variant")
}

func (conf *Config) GetLogLevel() string {
	return conf.getString("info", "log", "level")
}

// GetControlPointUDN returns the persistent identifier of this control point,
// generating it on first use.
func (conf *Config) GetControlPointUDN() string {
	udn, err := conf.GetValue([]string{"controlpoint", "udn"})
	if s, ok := udn.(string); err == nil && ok && s != "" {
		return s
	}

	s := uuid.New().String()
	conf.SetValue([]string{"controlpoint", "udn"}, s)
	return s
}

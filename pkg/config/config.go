package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v2"
)

const (
	configDir       string = "dlv-ql"
	configDirHidden string = ".dlv-ql"
	configFile      string = "config.yml"
)

// DefaultMaxStringLen is the maximum length of strings, and therefore of
// file names, loaded from the return values of injected calls.
const DefaultMaxStringLen = 1024

// DefaultAccessibilityMarker is the file whose presence signals that GUI
// scripting of Finder is allowed on macOS.
const DefaultAccessibilityMarker = "/private/var/db/.AccessibilityAPIEnabled"

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// TempDir is the root under which extracted files are saved, one
	// subdirectory per target.
	TempDir string `yaml:"temp-dir,omitempty"`

	// Lite makes the quicklook command use the lightweight previewer by
	// default.
	Lite bool `yaml:"lite"`

	// PreviewCommand replaces the platform's lightweight previewer. The
	// path of the extracted file is appended as the last argument.
	PreviewCommand string `yaml:"preview-command,omitempty"`

	// AccessibilityMarker overrides the file checked to decide whether the
	// full preview can be driven through GUI scripting.
	AccessibilityMarker string `yaml:"accessibility-marker,omitempty"`

	// MaxStringLen is the maximum string length loaded by print and by the
	// file name accessor.
	MaxStringLen *int `yaml:"max-string-len,omitempty"`
	// MaxArrayValues is the maximum number of array items that the print
	// command should read.
	MaxArrayValues *int `yaml:"max-array-values,omitempty"`

	// UnsafeCall disables the escape check of injected accessor calls.
	UnsafeCall bool `yaml:"unsafe-call"`

	// Prompt is the prompt of the interactive terminal.
	Prompt string `yaml:"prompt,omitempty"`
}

// GetTempDir returns the configured temporary root or the platform default.
func (c *Config) GetTempDir() string {
	if c != nil && c.TempDir != "" {
		return c.TempDir
	}
	if runtime.GOOS == "windows" {
		return os.TempDir()
	}
	return "/tmp"
}

// GetMaxStringLen returns the configured maximum string length.
func (c *Config) GetMaxStringLen() int {
	if c != nil && c.MaxStringLen != nil {
		return *c.MaxStringLen
	}
	return DefaultMaxStringLen
}

// GetAccessibilityMarker returns the configured marker file or the default one.
func (c *Config) GetAccessibilityMarker() string {
	if c != nil && c.AccessibilityMarker != "" {
		return c.AccessibilityMarker
	}
	return DefaultAccessibilityMarker
}

// PreviewArgv splits PreviewCommand into arguments. Double quotes group
// arguments containing spaces.
func (c *Config) PreviewArgv() []string {
	if c == nil || c.PreviewCommand == "" {
		return nil
	}
	return SplitQuotedFields(c.PreviewCommand, '"')
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() (*Config, error) {
	err := createConfigPath()
	if err != nil {
		return &Config{}, fmt.Errorf("could not create config directory: %v", err)
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to get config file path: %v", err)
	}

	if _, err := os.Stat(fullConfigFile); errors.Is(err, os.ErrNotExist) {
		f, err := createDefaultConfig(fullConfigFile)
		if err != nil {
			return &Config{}, fmt.Errorf("error creating default config file: %v", err)
		}
		f.Close()
	}

	return LoadConfigFrom(fullConfigFile)
}

// LoadConfigFrom reads the configuration stored at path.
func LoadConfigFrom(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to open config file: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to read config data: %v", err)
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return &Config{}, fmt.Errorf("unable to decode config file: %v", err)
	}

	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}
	return SaveConfigTo(conf, fullConfigFile)
}

// SaveConfigTo marshals conf into the file at path.
func SaveConfigTo(conf *Config, path string) error {
	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	return f, nil
}

func writeDefaultConfig(f io.Writer) error {
	_, err := io.WriteString(f,
		`# Configuration file for dlv-ql.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]

# Directory under which extracted data is saved, in a subdirectory named after the target.
# temp-dir: /tmp

# Always use the lightweight previewer (same as passing -l to quicklook).
# lite: true

# Command used as the lightweight previewer, the file path is appended to it.
# preview-command: "feh --scale-down"

# File whose presence enables the full Finder preview on macOS.
# accessibility-marker: /private/var/db/.AccessibilityAPIEnabled

# Maximum loaded string length, also bounds file names returned by QuickLookDebugFilename.
# max-string-len: 1024

# Maximum number of elements loaded from an array by print.
# max-array-values: 64

# Disable the escape check when calling the accessor methods.
# unsafe-call: true
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	if configPath := os.Getenv("XDG_CONFIG_HOME"); configPath != "" {
		return filepath.Join(configPath, configDir, file), nil
	}

	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDirHidden, file), nil
}

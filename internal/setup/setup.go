// Package setup registers the SCDAid MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ServerName is the key the server is registered under in the client config
const ServerName = "scdaid"

// Environment variables written into the client config
const (
	EnvDataDir      = "SCDAID_DATA_DIR"
	EnvPhenotypeURL = "SCDAID_PHENOTYPE_URL"
	EnvLanguage     = "SCDAID_LANGUAGE"
)

// ServerEntry is one MCP server in the client configuration file.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// DesktopConfig is the client configuration file. Keys other than mcpServers are
// preserved on save.
type DesktopConfig struct {
	MCPServers map[string]ServerEntry
	other      map[string]json.RawMessage
}

// Options controls how the server is registered.
type Options struct {
	BinaryPath   string // Path to the server binary; searched for when empty
	DataDir      string
	PhenotypeURL string
	Language     string
}

// DesktopConfigPath returns the location of the desktop client's config file.
func DesktopConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadDesktopConfig reads the config file. A missing file yields an empty config.
func LoadDesktopConfig(path string) (*DesktopConfig, error) {
	cfg := &DesktopConfig{
		MCPServers: make(map[string]ServerEntry),
		other:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.other); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.other["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.other, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]ServerEntry)
	}
	return cfg, nil
}

// SaveDesktopConfig writes cfg back to path, creating the directory when needed.
func SaveDesktopConfig(path string, cfg *DesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]any, len(cfg.other)+1)
	for k, v := range cfg.other {
		out[k] = v
	}
	out["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the scdaid entry in the config file at path.
func Register(path string, opts Options) (*ServerEntry, error) {
	cfg, err := LoadDesktopConfig(path)
	if err != nil {
		return nil, err
	}

	binary := opts.BinaryPath
	if binary == "" {
		if binary, err = findBinary(); err != nil {
			return nil, fmt.Errorf("could not find server binary: %w", err)
		}
	}

	entry := ServerEntry{Command: binary, Env: map[string]string{}}
	if opts.DataDir != "" {
		entry.Env[EnvDataDir] = opts.DataDir
	}
	if opts.PhenotypeURL != "" {
		entry.Env[EnvPhenotypeURL] = opts.PhenotypeURL
	}
	if opts.Language != "" {
		entry.Env[EnvLanguage] = opts.Language
	}
	cfg.MCPServers[ServerName] = entry

	if err := SaveDesktopConfig(path, cfg); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Unregister removes the scdaid entry. It reports whether an entry was present.
func Unregister(path string) (bool, error) {
	cfg, err := LoadDesktopConfig(path)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.MCPServers[ServerName]; !ok {
		return false, nil
	}
	delete(cfg.MCPServers, ServerName)
	return true, SaveDesktopConfig(path, cfg)
}

var binaryNames = []string{"scdaid-mcp", "mcp-server"}

func findBinary() (string, error) {
	for _, name := range binaryNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	home, _ := os.UserHomeDir()
	for _, name := range binaryNames {
		for _, loc := range []string{
			filepath.Join(".", name),
			filepath.Join(".", "build", name),
			filepath.Join(home, ".local", "bin", name),
			filepath.Join("/usr/local/bin", name),
		} {
			if _, err := os.Stat(loc); err == nil {
				if abs, err := filepath.Abs(loc); err == nil {
					return abs, nil
				}
				return loc, nil
			}
		}
	}
	return "", fmt.Errorf("none of %v found in PATH or common locations", binaryNames)
}

// Status describes the current registration.
type Status struct {
	ConfigPath   string
	Registered   bool
	BinaryPath   string
	BinaryFound  bool
	DataDir      string
	DataDirFound bool
	FeedbackDB   bool
	Issues       []string
}

// GetStatus inspects the config file at path and the files it points to.
func GetStatus(path string) (*Status, error) {
	cfg, err := LoadDesktopConfig(path)
	if err != nil {
		return nil, err
	}

	status := &Status{ConfigPath: path, DataDir: DefaultDataDir(), Issues: []string{}}
	if entry, ok := cfg.MCPServers[ServerName]; ok {
		status.Registered = true
		status.BinaryPath = entry.Command
		if dir := entry.Env[EnvDataDir]; dir != "" {
			status.DataDir = dir
		}
		if info, err := os.Stat(entry.Command); err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
		} else if info.Mode()&0o111 == 0 {
			status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
		} else {
			status.BinaryFound = true
		}
	} else {
		status.Issues = append(status.Issues, "scdaid is not registered with the desktop client")
	}

	if _, err := os.Stat(status.DataDir); err == nil {
		status.DataDirFound = true
		if _, err := os.Stat(filepath.Join(status.DataDir, "feedback.db")); err == nil {
			status.FeedbackDB = true
		}
	}
	return status, nil
}

// Validate reports whether the registration is usable. A missing data directory is not
// an issue; the server creates it on first run.
func Validate(path string) (bool, []string) {
	status, err := GetStatus(path)
	if err != nil {
		return false, []string{err.Error()}
	}
	return len(status.Issues) == 0, status.Issues
}

// DefaultDataDir returns the data directory the server uses when none is configured.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scdaid"
	}
	return filepath.Join(home, ".scdaid")
}

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
)

// copilotConfigDir determines the directory holding the github-copilot
// credential files.
func copilotConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && isValidDir(xdg) {
		return xdg, nil
	}

	if runtime.GOOS == "windows" {
		if path := windowsConfigDir(); path != "" {
			return path, nil
		}
	}

	usr, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}

	configDir := filepath.Join(usr.HomeDir, ".config")
	if isValidDir(configDir) {
		return configDir, nil
	}

	return "", errors.New("no valid config path found")
}

func isValidDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func windowsConfigDir() string {
	if path := os.Getenv("LOCALAPPDATA"); path != "" && isValidDir(path) {
		return path
	}

	if home := os.Getenv("HOME"); home != "" {
		if path := filepath.Join(home, "AppData", "Local"); isValidDir(path) {
			return path
		}
	}

	return ""
}

// githubOAuthToken resolves the OAuth token used to mint Copilot API tokens.
// Inside Codespaces GITHUB_TOKEN wins; otherwise the editor plugin files are read.
func githubOAuthToken() (string, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" && os.Getenv("CODESPACES") != "" {
		return token, nil
	}

	configDir, err := copilotConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config path: %w", err)
	}
	return tokenFromDir(configDir)
}

// tokenFromDir scans hosts.json then apps.json under dir/github-copilot.
func tokenFromDir(dir string) (string, error) {
	for _, name := range []string{"hosts.json", "apps.json"} {
		data, err := os.ReadFile(filepath.Join(dir, "github-copilot", name))
		if err != nil {
			continue
		}

		var hosts map[string]any
		if err := json.Unmarshal(data, &hosts); err != nil {
			continue
		}

		if token := oauthTokenFor(hosts); token != "" {
			return token, nil
		}
	}

	return "", errors.New("GitHub token not found in environment or config files")
}

// oauthTokenFor returns the first oauth_token stored for a github.com host.
func oauthTokenFor(hosts map[string]any) string {
	for host, data := range hosts {
		if !strings.Contains(host, "github.com") {
			continue
		}

		entry, ok := data.(map[string]any)
		if !ok {
			continue
		}

		if token, ok := entry["oauth_token"].(string); ok && token != "" {
			return token
		}
	}
	return ""
}

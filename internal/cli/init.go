package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/mastodon2memos/internal/config"
	"github.com/spf13/cobra"
)

const exampleEnvFile = ".env.example"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with example files",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	created := 0

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig), 0o644)
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	envPath := filepath.Join(configDir, exampleEnvFile)
	wrote, err = writeIfNotExists(envPath, []byte(exampleEnv), 0o600)
	if err != nil {
		return err
	}
	if wrote {
		created++
	}

	if created == 0 {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s with %d config files.\n", configDir, created)
		fmt.Printf("Copy %s to %s and fill in your tokens.\n", envPath, filepath.Join(configDir, config.DefaultEnvFile))
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte, perm os.FileMode) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# mastodon2memos configuration
# Credentials come from the environment (or a .env file), never from here.

source:
  url_env: MASTODON_URL
  token_env: MASTODON_TOKEN
  trigger_tag: memos
  page_size: 5

sink:
  url_env: MEMOS_URL
  token_env: MEMOS_TOKEN
  visibility: PRIVATE

relay:
  interval: 60s
  request_timeout: 30s
  rate_limit_cooldown: 5m
  tags: [mastodon, mastodon2memos]

storage:
  path: .mastodon2memos/relay.db
  retain_days: 90
  disabled: false

privacy:
  redact:
    patterns: []
    # - "(?i)internal\\.example\\.com"
`

const exampleEnv = `# Mastodon instance and an access token with read, write:statuses scopes
MASTODON_URL=https://mastodon.social
MASTODON_TOKEN=

# Memos instance and an access token
MEMOS_URL=https://memos.example.com
MEMOS_TOKEN=
`

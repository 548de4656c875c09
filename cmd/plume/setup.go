package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create a config file interactively",
	Long: `Create a config.yaml interactively.

You will be prompted for:
  - Server port
  - Database backend and connection string
  - Image storage backend and its settings
  - Token signing secret (generated when left empty)`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().String("out", "config.yaml", "output config file path")
	rootCmd.AddCommand(setupCmd)
}

// setupFile mirrors the config package's structure for YAML output. Kept
// separate so only prompted keys end up in the file.
type setupFile struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Type string `yaml:"type"`
		DSN  string `yaml:"dsn"`
		Name string `yaml:"name,omitempty"`
	} `yaml:"database"`
	Blob struct {
		Type      string `yaml:"type"`
		Path      string `yaml:"path,omitempty"`
		Endpoint  string `yaml:"endpoint,omitempty"`
		AccessKey string `yaml:"access_key,omitempty"`
		SecretKey string `yaml:"secret_key,omitempty"`
		Bucket    string `yaml:"bucket,omitempty"`
	} `yaml:"blob"`
	Auth struct {
		Secret        string `yaml:"secret"`
		TokenTTLHours int    `yaml:"token_ttl_hours"`
	} `yaml:"auth"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func runSetup(cmd *cobra.Command, _ []string) error {
	outPath, _ := cmd.Flags().GetString("out")

	if _, err := os.Stat(outPath); err == nil {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("%s already exists. Overwrite it", outPath),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	var file setupFile

	portPrompt := promptui.Prompt{
		Label:   "Server port",
		Default: "5000",
		Validate: func(input string) error {
			port, err := strconv.Atoi(input)
			if err != nil || port < 1 || port > 65535 {
				return errors.New("port must be a number between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}
	file.Server.Port, _ = strconv.Atoi(portStr)

	dbSelect := promptui.Select{
		Label: "Database backend",
		Items: []string{"mongo", "sqlite", "postgres"},
	}
	_, dbType, err := dbSelect.Run()
	if err != nil {
		return handlePromptError(err)
	}
	file.Database.Type = dbType

	dsnDefault := map[string]string{
		"mongo":    "mongodb://localhost:27017",
		"sqlite":   "plume.db",
		"postgres": "postgres://localhost:5432/plume",
	}[dbType]

	dsnPrompt := promptui.Prompt{
		Label:   "Database connection string",
		Default: dsnDefault,
		Validate: func(input string) error {
			if input == "" {
				return errors.New("connection string is required")
			}
			return nil
		},
	}
	if file.Database.DSN, err = dsnPrompt.Run(); err != nil {
		return handlePromptError(err)
	}

	if dbType == "mongo" {
		namePrompt := promptui.Prompt{Label: "Database name", Default: "plume"}
		if file.Database.Name, err = namePrompt.Run(); err != nil {
			return handlePromptError(err)
		}
	}

	blobSelect := promptui.Select{
		Label: "Image storage backend",
		Items: []string{"filesystem", "minio"},
	}
	_, blobType, err := blobSelect.Run()
	if err != nil {
		return handlePromptError(err)
	}
	file.Blob.Type = blobType

	if blobType == "filesystem" {
		pathPrompt := promptui.Prompt{Label: "Image storage directory", Default: "./data"}
		if file.Blob.Path, err = pathPrompt.Run(); err != nil {
			return handlePromptError(err)
		}
	} else {
		endpointPrompt := promptui.Prompt{
			Label:   "MinIO endpoint",
			Default: "localhost:9000",
		}
		if file.Blob.Endpoint, err = endpointPrompt.Run(); err != nil {
			return handlePromptError(err)
		}

		accessPrompt := promptui.Prompt{Label: "MinIO access key"}
		if file.Blob.AccessKey, err = accessPrompt.Run(); err != nil {
			return handlePromptError(err)
		}

		secretPrompt := promptui.Prompt{Label: "MinIO secret key", Mask: '*'}
		if file.Blob.SecretKey, err = secretPrompt.Run(); err != nil {
			return handlePromptError(err)
		}

		bucketPrompt := promptui.Prompt{Label: "MinIO bucket", Default: "plume-images"}
		if file.Blob.Bucket, err = bucketPrompt.Run(); err != nil {
			return handlePromptError(err)
		}
	}

	tokenSecretPrompt := promptui.Prompt{
		Label: "Token signing secret (leave empty to generate)",
		Mask:  '*',
	}
	secret, err := tokenSecretPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}
	if secret == "" {
		secret, err = generateSecret()
		if err != nil {
			return fmt.Errorf("generate secret: %w", err)
		}
		fmt.Println("Generated a random token signing secret.")
	}
	file.Auth.Secret = secret
	file.Auth.TokenTTLHours = 168
	file.Log.Level = "info"

	out, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	// The file holds secrets; keep it out of other users' reach.
	if err := os.WriteFile(outPath, out, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote %s. Start the server with 'plume serve'.\n", outPath)
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}

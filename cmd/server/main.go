package main

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/alkime/followup/internal/config"
	"github.com/alkime/followup/internal/content"
	"github.com/alkime/followup/internal/keyring"
	"github.com/alkime/followup/internal/logger"
	"github.com/alkime/followup/internal/mailer"
	"github.com/alkime/followup/internal/server"
	openaiopt "github.com/openai/openai-go/option"
)

// CLI defines the server command structure.
type CLI struct {
	Serve  ServeCmd  `cmd:"" default:"1" help:"Run the draft and finalize API"`
	Config ConfigCmd `cmd:"" help:"Manage configuration"`
}

// ServeCmd runs the HTTP server. Settings come from the environment.
type ServeCmd struct{}

// Run executes the serve command.
func (s *ServeCmd) Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logger.SetupLogger(cfg)

	// Resolve API keys: environment variables take priority, fallback to keychain
	cfg.OpenAIAPIKey = keyring.Resolve(cfg.OpenAIAPIKey, keyring.OpenAI)
	cfg.AnthropicAPIKey = keyring.Resolve(cfg.AnthropicAPIKey, keyring.Anthropic)

	var missing []string
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "openai")
	}

	if cfg.AnthropicAPIKey == "" {
		missing = append(missing, "anthropic")
	}

	// notes still draft without a transcription key, so only warn
	if len(missing) > 0 {
		logger.Warn("API keys not configured; affected requests will fail",
			"missing", strings.Join(missing, ", "),
			"hint", "set via environment variables or run 'server config set-key'",
		)
	}

	var transcribeOpts []openaiopt.RequestOption
	if cfg.OpenAIBaseURL != "" {
		transcribeOpts = append(transcribeOpts, openaiopt.WithBaseURL(cfg.OpenAIBaseURL))
	}

	transcriber := content.NewTranscriber(cfg.OpenAIAPIKey, cfg.TranscribeModel, transcribeOpts...)
	writer := content.NewWriter(cfg.AnthropicAPIKey, cfg.TextModel)

	var opts []server.Option
	if cfg.SMTPConfigured() {
		m, err := mailer.New(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.FromEmail,
			AppName:  cfg.AppName,
		})
		if err != nil {
			return fmt.Errorf("failed to configure mailer: %w", err)
		}

		opts = append(opts, server.WithMailer(m))
	} else {
		logger.Info("SMTP not configured; finalized plans will not be emailed")
	}

	logger.Info("Starting FollowUp server",
		"env", cfg.Env,
		"port", cfg.Port,
		"public_dir", cfg.PublicDir,
		"transcribe_model", cfg.TranscribeModel,
	)

	return server.Run(server.New(cfg, logger, transcriber, writer, opts...))
}

// ConfigCmd groups configuration-related subcommands.
type ConfigCmd struct {
	SetKey   SetKeyCmd   `cmd:"" help:"Store an API key in system keychain"`
	ListKeys ListKeysCmd `cmd:"" name:"list-keys" help:"Show which API keys are configured"`
}

// SetKeyCmd stores an API key in the system keychain.
type SetKeyCmd struct {
	Service string `arg:"" enum:"openai,anthropic" help:"Service name (openai or anthropic)"`
	Secret  string `arg:"" help:"API key value"`
}

// Run executes the set-key command.
func (c *SetKeyCmd) Run() error {
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("API key cannot be empty")
	}

	apiKey, err := keyring.APIKeyFromServiceName(c.Service)
	if err != nil {
		return fmt.Errorf("invalid service: %w", err)
	}

	if err := keyring.Set(apiKey, c.Secret); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}

	fmt.Printf("%s API key stored in keychain\n", c.Service)

	return nil
}

// ListKeysCmd shows which API keys are configured.
type ListKeysCmd struct{}

// Run executes the list-keys command.
//
//nolint:unparam // error return required by Kong interface
func (c *ListKeysCmd) Run() error {
	allSet := true

	for _, apiKey := range keyring.AllAPIKeys() {
		if keyring.IsSet(apiKey) {
			fmt.Printf("%s: configured\n", apiKey.DisplayName())
		} else {
			fmt.Printf("%s: not set\n", apiKey.DisplayName())
			allSet = false
		}
	}

	if !allSet {
		fmt.Println("\nRun 'server config set-key <service> <key>' to configure.")
	}

	return nil
}

func main() {
	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("server"),
		kong.Description("FollowUp draft and finalize API."),
	)

	if err := ctx.Run(); err != nil {
		log.Fatalf("Fatal: %v", err)
	}
}

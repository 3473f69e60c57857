package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/alkime/followup/internal/audio"
	"github.com/alkime/followup/internal/capture"
	"github.com/alkime/followup/internal/input"
	"github.com/alkime/followup/internal/logger"
	"github.com/alkime/followup/internal/remote"
	"github.com/alkime/followup/internal/telemetry"
	"github.com/alkime/followup/internal/tui"
	"github.com/alkime/followup/internal/workdir"
	"github.com/alkime/followup/internal/workflow"
	"github.com/alkime/followup/pkg/collections"
	tea "github.com/charmbracelet/bubbletea"
)

// CLI defines the followup command structure.
type CLI struct {
	// Default TUI command (runs when no subcommand given)
	Run     RunCmd     `cmd:"" default:"withargs" help:"Launch terminal UI for a follow-up session"`
	Devices DevicesCmd `cmd:"" help:"List available audio capture devices"`
}

// RunCmd is the default command that runs the TUI.
type RunCmd struct {
	Server      string `flag:"" env:"FOLLOWUP_SERVER" default:"http://localhost:8000" help:"Draft service base URL"`
	Email       string `flag:"" env:"FOLLOWUP_EMAIL" help:"Pre-fill the contact email"`
	File        string `flag:"" optional:"" type:"existingfile" help:"Use a text file instead of typed notes"`
	MaxBytes    int64  `flag:"" default:"26214400" help:"Stop recording at this size (25MB, the upload limit)"`
	DraftOnStop bool   `flag:"" help:"Request a draft as soon as a recording stops"`
	Editor      string `flag:"" env:"FOLLOWUP_EDITOR" help:"Editor command for the draft (default: $VISUAL, $EDITOR)"`
	LogFile     string `flag:"" optional:"" help:"Log file (default: <workdir>/logs/followup.log)"`
	LogLevel    string `flag:"" default:"info" enum:"debug,info,warn,error" help:"Log level"`
	TraceFile   string `flag:"" optional:"" help:"Write request traces to this file"`
}

// Run executes the TUI command.
//
//nolint:funlen // CLI command with multiple setup steps
func (c *RunCmd) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if c.LogFile == "" {
		path, err := workdir.LogPath()
		if err != nil {
			return fmt.Errorf("failed to determine log path: %w", err)
		}
		c.LogFile = path
	}

	// stdout belongs to the UI
	log, closer, err := logger.SetupFileLogger(c.LogFile, c.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	if c.TraceFile != "" {
		shutdown, err := telemetry.Setup(ctx, "followup", c.TraceFile)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer shutdown()
	}

	previewDir, err := workdir.PreviewDir()
	if err != nil {
		return fmt.Errorf("failed to determine preview directory: %w", err)
	}

	if _, err := workdir.Prep(previewDir); err != nil {
		return err
	}

	previews, err := capture.NewFilePreviews(previewDir)
	if err != nil {
		return fmt.Errorf("failed to create preview store: %w", err)
	}

	opts := tui.Options{
		DraftOnStop: c.DraftOnStop,
		Email:       c.Email,
		Editor:      &tui.ExternalEditor{EditorCmd: c.Editor},
		Logger:      log,
	}

	// assign only when set; a nil *LocalFile in the interface is non-nil
	if c.File != "" {
		file, err := input.OpenFile(c.File)
		if err != nil {
			return fmt.Errorf("failed to open notes file: %w", err)
		}

		opts.File = file
		opts.FileLabel = filepath.Base(c.File)
	}

	mic := audio.NewMicrophone(audio.FramerConfig{}, log)
	recorder := capture.NewController(mic, previews, capture.Config{
		Format:   capture.MP3Format,
		MaxBytes: c.MaxBytes,
	}, log)

	client := remote.NewClient(c.Server, remote.WithLogger(log))
	machine := workflow.NewMachine(recorder, client, log)
	defer machine.Close()

	log.Info("starting followup", "server", c.Server, "session", machine.SessionID())

	p := tea.NewProgram(tui.New(ctx, machine, client, recorder, opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to start TUI: %w", err)
	}

	fmt.Println("\nfinished. bye!")

	return nil
}

// DevicesCmd lists available audio capture devices.
type DevicesCmd struct {
	DefaultOnly bool `flag:"" help:"Only show the default capture device"`
}

// Run executes the devices command.
func (dcmd *DevicesCmd) Run() error {
	slog.Info("Enumerating audio devices...")

	adev := audio.NewDevice(nil)
	devices, err := adev.EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	if dcmd.DefaultOnly {
		devices = collections.Filter(devices, func(d audio.Info) bool { return d.IsDefault })
	}

	for _, dev := range devices {
		slog.Info("Audio Device",
			"name", dev.Name,
			"isDefault", dev.IsDefault,
			"formatCount", dev.FormatCount,
			"formats", dev.Formats,
		)
	}

	return nil
}

func main() {
	// Set up text-based logger for CLI output
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("followup"),
		kong.Description("Turn meeting notes or a recording into an action plan."),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
	os.Exit(0)
}

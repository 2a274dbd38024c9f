package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zapdesk/zapdesk/internal/bus"
	"github.com/zapdesk/zapdesk/internal/channels"
	"github.com/zapdesk/zapdesk/internal/composer"
	"github.com/zapdesk/zapdesk/internal/config"
	"github.com/zapdesk/zapdesk/internal/convstate"
	"github.com/zapdesk/zapdesk/internal/pipeline"
	"github.com/zapdesk/zapdesk/internal/provider"
	"github.com/zapdesk/zapdesk/internal/settings"
	"github.com/zapdesk/zapdesk/internal/store"
	"github.com/zapdesk/zapdesk/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the auto-reply bot",
	Run:   runBot,
}

func runBot(cmd *cobra.Command, args []string) {
	printHeader("💬 ZapDesk")
	fmt.Println("Starting ZapDesk...")

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		fmt.Printf("Data dir error: %v\n", err)
		os.Exit(1)
	}

	// 2. Open Store
	st, err := store.Open(filepath.Join(cfg.Paths.DataDir, "zapdesk.db"))
	if err != nil {
		fmt.Printf("Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	// 3. Settings
	settingsSvc := settings.NewService(st)
	if err := settingsSvc.EnsureDefaults(); err != nil {
		fmt.Printf("Failed to seed settings: %v\n", err)
		os.Exit(1)
	}

	// 4. Conversation State + Provider + Composer
	state := convstate.NewManager(st)
	prov := provider.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model)
	comp := composer.New(st, prov)

	// 5. Telemetry
	emitter := telemetry.NewEmitter(strings.Join(cfg.Telemetry.KafkaBrokers, ","), cfg.Telemetry.Topic)
	defer emitter.Close()
	if len(cfg.Telemetry.KafkaBrokers) > 0 {
		fmt.Printf("📡 Decision events publishing to %s\n", cfg.Telemetry.Topic)
	}

	// 6. Bus + Pipeline
	msgBus := bus.NewMessageBus()
	pipe := pipeline.New(pipeline.Options{
		Bus:       msgBus,
		Settings:  settingsSvc,
		State:     state,
		Composer:  comp,
		Telemetry: emitter,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// 7. Channels
	var active []channels.Channel

	wa := channels.NewWhatsAppChannel(cfg.Channels.WhatsApp, cfg.Paths.DataDir, msgBus)
	if cfg.Channels.WhatsApp.Enabled {
		if err := wa.Start(ctx); err != nil {
			fmt.Printf("WhatsApp channel error: %v\n", err)
			os.Exit(1)
		}
		pipe.RegisterTransport(wa.Name(), wa.Transport())
		active = append(active, wa)
		fmt.Println("✅ WhatsApp channel ready")
	}

	slackCh := channels.NewSlackChannel(cfg.Channels.Slack, msgBus)
	if cfg.Channels.Slack.Enabled {
		if err := slackCh.Start(ctx); err != nil {
			fmt.Printf("Slack channel error: %v\n", err)
			os.Exit(1)
		}
		pipe.RegisterTransport(slackCh.Name(), slackCh.Transport())
		active = append(active, slackCh)
		fmt.Println("✅ Slack channel ready")
	}

	if len(active) == 0 {
		fmt.Println("No channels enabled. Enable one in the config and restart.")
		os.Exit(1)
	}

	go func() {
		_ = msgBus.DispatchOutbound(ctx)
	}()
	go func() {
		_ = pipe.Run(ctx)
	}()

	fmt.Println("ZapDesk running. Press Ctrl+C to stop.")
	<-sigChan

	fmt.Println("Shutting down...")
	cancel()
	for _, ch := range active {
		_ = ch.Stop()
	}
	fmt.Println("Goodbye!")
}

package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/partybot/api/routes"
	"example.com/partybot/config"
	"example.com/partybot/internal/bot"
	"example.com/partybot/internal/cache"
	"example.com/partybot/internal/database"
	"example.com/partybot/internal/discord"
	"example.com/partybot/internal/metrics"
	"example.com/partybot/internal/party"
	"example.com/partybot/internal/repositories"
	"example.com/partybot/internal/signup"
	"example.com/partybot/internal/tracing"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Start the bot",
	Long:  `Start the Discord gateway connection, the reminder sweeper and the ops HTTP server`,
	RunE:  runBot,
}

func init() {
	rootCmd.AddCommand(botCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	nameCache, err := cache.NewNameCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without name caching")
		nameCache, _ = cache.NewNameCache(config.RedisConfig{})
	}
	defer nameCache.Close()

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer, _ = tracing.NewTracer(config.TracingConfig{})
	}

	metricsCollector := metrics.NewMetrics()
	displayCache := cache.NewDisplayCache()

	templates, err := party.LoadTemplates(cfg.Party.TemplatesPath)
	if err != nil {
		return err
	}

	eventRepo := repositories.NewEventRepository(db)
	laneRepo := repositories.NewLaneRepository(db)
	signupRepo := repositories.NewSignupRepository(db)
	logRepo := repositories.NewPartyLogRepository(db)
	characterRepo := repositories.NewCharacterRepository(db)

	engine := signup.NewEngine(eventRepo, laneRepo, signupRepo, logRepo, tracer, metricsCollector)

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return errors.Wrap(err, "failed to create Discord session")
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	platform := discord.NewPlatform(session, nameCache, cfg.Discord.VoiceCategoryID)
	manager := party.NewManager(
		eventRepo, laneRepo, characterRepo, engine, templates,
		displayCache, platform, tracer, metricsCollector,
		cfg.Party.AdminIDs, cfg.Party.MinLeadTime,
	)

	handler := bot.NewHandler(
		session, engine, manager, characterRepo, eventRepo,
		platform, displayCache, metricsCollector,
		cfg.Discord.PartyChannelID, cfg.Party.CalloutCooldown,
	)
	handler.Register()

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		metricsCollector.SetHealthCheck("discord", true)
		log.Info().Str("username", r.User.Username).Msg("Discord gateway connected")
	})
	session.AddHandler(func(s *discordgo.Session, d *discordgo.Disconnect) {
		metricsCollector.SetHealthCheck("discord", false)
		log.Warn().Msg("Discord gateway disconnected")
	})

	if err := session.Open(); err != nil {
		return errors.Wrap(err, "failed to open Discord gateway")
	}
	defer session.Close()

	metricsCollector.SetHealthCheck("database", true)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	routes.SetupRoutes(router, eventRepo, engine, metricsCollector, tracer, log.Logger)

	server := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  cfg.ServerTimeout,
		WriteTimeout: cfg.ServerTimeout,
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "failed to create scheduler")
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Party.ReminderSweep),
		gocron.NewTask(func() {
			sweepCtx, cancel := context.WithTimeout(context.Background(), cfg.Party.ReminderSweep)
			defer cancel()
			if err := manager.SweepReminders(sweepCtx); err != nil {
				log.Error().Err(err).Msg("Reminder sweep failed")
			}
		}),
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule reminder sweep")
	}
	scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("address", cfg.ServerAddress).Msg("Starting ops server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "ops server failed")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ops server shutdown error")
		}
		if err := scheduler.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Shutting down bot")
	return nil
}

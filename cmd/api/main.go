package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"
	"google.golang.org/adk/model"

	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/calendly"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog"
	catalogrepo "github.com/JuhDomingues/BS-Consultoria-sub001/internal/catalog/repository"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/dialogue"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/email"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/events"
	apphttp "github.com/JuhDomingues/BS-Consultoria-sub001/internal/http"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/http/router"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/idempotency"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/scoring"
	leadservice "github.com/JuhDomingues/BS-Consultoria-sub001/internal/leads/service"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/notification"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/sanitizer"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/scheduler"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/scheduling"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/webhook"
	"github.com/JuhDomingues/BS-Consultoria-sub001/internal/whatsapp"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/ai/moonshot"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/broker"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/config"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/logger"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/phone"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/validator"
	"github.com/JuhDomingues/BS-Consultoria-sub001/platform/workers"
)

const businessTimezone = "America/Sao_Paulo"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		log.Error("failed to load tuning", "error", err, "path", cfg.TuningFile)
		panic("failed to load tuning: " + err.Error())
	}

	loc, err := time.LoadLocation(businessTimezone)
	if err != nil {
		panic("failed to load timezone: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open stores", "error", err)
		panic("failed to open stores: " + err.Error())
	}
	defer st.Close()

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	closePublisher := initEventForwarding(ctx, cfg, eventBus, log)
	defer closePublisher()

	var sender email.Sender = email.NoopSender{}
	if cfg.IsSMTPEnabled() {
		sender = email.NewSMTPSender(cfg, loc)
	} else {
		log.Warn("SMTP not configured; broker notifications disabled")
	}
	notification.New(sender, log).RegisterHandlers(eventBus)

	val := validator.New()
	normalizer := phone.NewNormalizer(cfg.GetDefaultPhoneRegion())
	whatsappClient := whatsapp.NewClient(cfg, log)
	calendlyClient := calendly.NewClient(cfg)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	catalogModule := catalog.NewModule(catalogSource(cfg, log), st.signer, cfg, log)

	leadSvc := leadservice.New(st.leads, st.sessions, scoring.New(tuning.Scoring), st.locker, eventBus, log)
	leadsModule := leads.NewModule(leadSvc, normalizer)

	schedOrch := scheduling.NewOrchestrator(scheduling.Deps{
		Sessions:  st.sessions,
		Leads:     leadSvc,
		Locker:    st.locker,
		Resolver:  catalogModule.Service(),
		Links:     calendlyClient,
		Reminders: st.reminders,
		Phone:     normalizer,
		Bus:       eventBus,
		Log:       log,
	})
	schedulingModule := scheduling.NewModule(schedOrch, scheduling.NewHandler(schedOrch, st.reminders, normalizer, val, log))

	dialogueOrch := dialogue.NewOrchestrator(dialogue.Deps{
		Sessions:          st.sessions,
		Leads:             leadSvc,
		Locker:            st.locker,
		Generator:         newGenerator(cfg, log),
		Catalog:           catalogModule.Service(),
		Scheduler:         schedOrch,
		Sanitizer:         sanitizer.New(tuning.Sanitizer),
		Messenger:         whatsappClient,
		Replies:           tuning.Replies,
		FallbackPhone:     cfg.GetHumanFallbackPhone(),
		GenerationTimeout: cfg.GetLLMTimeout(),
		Log:               log,
	})

	// Webhook handoff runs off the request goroutine; each job gets the
	// generation budget plus room for delivery.
	pool := workers.NewPool(cfg.GetWorkerConcurrency(), cfg.GetLLMTimeout()+time.Minute, log)

	webhookSvc := webhook.NewService(webhook.Deps{
		Gate:       idempotency.NewGate(st.receipts, log),
		Dispatcher: pool,
		Dialogue:   dialogueOrch,
		Calendar:   schedOrch,
		Leads:      leadSvc,
		Extractor:  webhook.NewExtractor(tuning.Typebot, normalizer),
		Phone:      normalizer,
		Messenger:  whatsappClient,
		Welcome:    cfg.GetTypebotWelcomeMessage(),
		Log:        log,
	})
	webhookModule := webhook.NewModule(webhookSvc, cfg, log)

	reminderSender := scheduling.NewReminderSender(st.reminders, whatsappClient, tuning.Replies, loc, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   st.health,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			webhookModule,
			schedulingModule,
			leadsModule,
			catalogModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if st.pool == nil || st.redis == nil {
		// Without the scheduler process the API delivers reminders itself.
		poller := scheduling.NewPoller(st.reminders, reminderSender, cfg.GetReminderPollInterval(), 0, log)
		g.Go(func() error {
			poller.Run(gctx)
			return nil
		})
		log.Info("in-process reminder poller started", "interval", cfg.GetReminderPollInterval())

		if pruner, ok := st.receipts.(scheduler.ReceiptPruner); ok {
			cleanup := scheduler.NewReceiptCleanup(pruner, log, 0, cfg.GetIdempotencyTTL())
			g.Go(func() error {
				cleanup.Run(gctx)
				return nil
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown incomplete", "error", err)
		}
		if err := pool.Shutdown(shutdownCtx); err != nil {
			log.Warn("webhook jobs still running at shutdown", "error", err)
		}
		eventBus.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func newGenerator(cfg config.LLMConfig, log *logger.Logger) dialogue.Generator {
	if cfg.GetMoonshotAPIKey() == "" {
		log.Warn("MOONSHOT_API_KEY not configured; using keyword replies")
		return dialogue.RulesGenerator{}
	}
	var llm model.LLM = moonshot.NewModel(moonshot.Config{
		APIKey:  cfg.GetMoonshotAPIKey(),
		Model:   cfg.GetLLMModel(),
		Timeout: cfg.GetLLMTimeout(),
	})
	log.Info("reply generation enabled", "model", llm.Name())
	return dialogue.NewAgentGenerator(llm)
}

func catalogSource(cfg config.CatalogConfig, log *logger.Logger) catalogrepo.Source {
	baserow := catalogrepo.NewBaserow(cfg)
	if baserow == nil || cfg.GetBaserowAPIToken() == "" {
		log.Warn("Baserow not configured; property catalog is empty")
		return catalogrepo.NewStatic()
	}
	return baserow
}

// initEventForwarding subscribes the AMQP forwarder when a broker URL is set.
// It returns a close function that is always safe to call.
func initEventForwarding(ctx context.Context, cfg config.BrokerConfig, bus events.Bus, log *logger.Logger) func() {
	if cfg.GetAMQPURL() == "" {
		log.Warn("AMQP_URL not configured; domain events stay in-process")
		return func() {}
	}

	publisher, err := broker.Dial(ctx, cfg.GetAMQPURL(), cfg.GetAMQPExchange(), 5, log)
	if err != nil {
		log.Error("failed to connect event broker; forwarding disabled", "error", err)
		return func() {}
	}
	notification.NewForwarder(publisher, log).RegisterHandlers(bus)
	log.Info("event forwarding enabled", "exchange", cfg.GetAMQPExchange())

	return func() { _ = publisher.Close() }
}

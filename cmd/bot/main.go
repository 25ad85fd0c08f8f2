package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filing_compliance_bot/internal/app"
	"filing_compliance_bot/internal/infra/config"
	idb "filing_compliance_bot/internal/infra/database"
	"filing_compliance_bot/internal/infra/fulfillment"
	"filing_compliance_bot/internal/infra/httpserver"
	"filing_compliance_bot/internal/infra/logger"
	"filing_compliance_bot/internal/infra/responder"
	"filing_compliance_bot/internal/infra/scheduler"
	"filing_compliance_bot/internal/infra/telegram"

	"filing_compliance_bot/internal/domain/deadline"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	log := logger.Get().WithField("component", "main")
	log.WithField("environment", cfg.Environment).Info("Filing compliance bot starting")

	// Database
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	log.Info("Database connection established")

	// Repositories
	subjectRepo := idb.NewPostgresSubjectRepository(db)
	deadlineRepo := idb.NewPostgresDeadlineRepository(db)
	transactionRepo := idb.NewPostgresTransactionRepository(db)
	notificationRepo := idb.NewPostgresNotificationRepository(db)
	reviewRepo := idb.NewPostgresReviewRepository(db)

	// Outbound channel (Telegram)
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			logger.Get().WithError(err).Error("Telebot error")
		},
	})
	if err != nil {
		log.WithError(err).Fatal("Could not create Telegram bot")
	}
	channelClient := telegram.NewTelebotAdapter(bot)

	// Core services
	clock := deadline.Clock(time.Now)
	engine := deadline.NewEngine(clock)
	dispatcher := app.NewDispatcher(notificationRepo, channelClient, "telegram",
		logger.Get().WithField("component", "dispatcher"), clock)

	operatorRecipient := ""
	if cfg.OperatorChatID != 0 {
		operatorRecipient = fmt.Sprintf("%d", cfg.OperatorChatID)
	}
	operator := app.NewOperatorNotifier(channelClient, operatorRecipient,
		logger.Get().WithField("component", "operator"))

	responderClient := responder.NewClient(cfg.ResponderURL, cfg.ResponderTimeout)
	router := app.NewRouter(responderClient, logger.Get().WithField("component", "router"))
	contexts := app.NewContextStore(cfg.ContextTTL, clock)

	conversationService := app.NewConversationService(
		subjectRepo, transactionRepo, engine, router, dispatcher, contexts,
		logger.Get().WithField("component", "conversation"), clock)

	fulfillerClient := fulfillment.NewClient(cfg.FulfillmentURL, cfg.FulfillmentTimeout)
	paymentService := app.NewPaymentService(
		transactionRepo, subjectRepo, reviewRepo, dispatcher, fulfillerClient, operator,
		logger.Get().WithField("component", "payment"))
	fulfillmentService := app.NewFulfillmentService(
		transactionRepo, subjectRepo, deadlineRepo, reviewRepo, dispatcher, fulfillerClient, operator,
		logger.Get().WithField("component", "fulfillment"), clock)

	sweepService := app.NewSweepService(
		subjectRepo, deadlineRepo, transactionRepo, engine, dispatcher, cfg.QuoteTTL,
		logger.Get().WithField("component", "sweep"), clock)

	// Scheduler
	sweepScheduler := scheduler.NewSweepScheduler(
		sweepService, contexts,
		logger.Get().WithField("component", "scheduler"),
		cfg.CronSpecDeadlineSweep, cfg.CronSpecQuoteExpiry, cfg.CronSpecContextPrune)
	if err := sweepScheduler.Start(); err != nil {
		log.WithError(err).Fatal("Could not start sweep scheduler")
	}

	// Operator bot commands
	botCtx, cancelBot := context.WithCancel(context.Background())
	defer cancelBot()
	telegram.RegisterOperatorHandlers(botCtx, bot, fulfillmentService, reviewRepo, cfg.OperatorChatID)
	go bot.Start()

	// HTTP webhook server
	httpLog := logger.Get().WithField("component", "http")
	ginRouter := httpserver.NewRouter(
		httpserver.NewMessageHandler(conversationService, cfg.MessagingWebhookSecret, httpLog),
		httpserver.NewPaymentHandler(paymentService, cfg.PaymentWebhookSecret, httpLog),
		httpserver.NewFulfillmentHandler(fulfillmentService, cfg.FulfillmentWebhookSecret, httpLog),
		httpLog, cfg.Environment)
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      ginRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("Webhook server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Webhook server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Webhook server shutdown failed")
	}
	sweepScheduler.Stop()
	bot.Stop()
	log.Info("Application shut down gracefully")
}

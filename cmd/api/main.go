package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/alexeldeib/claude-taxmate/internal/billing"
	"github.com/alexeldeib/claude-taxmate/internal/controller"
	"github.com/alexeldeib/claude-taxmate/internal/middleware"
	"github.com/alexeldeib/claude-taxmate/internal/model"
	"github.com/alexeldeib/claude-taxmate/internal/repository"
	"github.com/alexeldeib/claude-taxmate/pkg/categorize"
	"github.com/alexeldeib/claude-taxmate/pkg/config"
	"github.com/alexeldeib/claude-taxmate/pkg/cron"
	"github.com/alexeldeib/claude-taxmate/pkg/database"
	"github.com/alexeldeib/claude-taxmate/pkg/subscription"
	"github.com/alexeldeib/claude-taxmate/pkg/utils/jwt"
	"github.com/alexeldeib/claude-taxmate/pkg/utils/storage"
	"github.com/alexeldeib/claude-taxmate/pkg/worker"
)

type controllers struct {
	auth          *controller.AuthController
	transactions  *controller.TransactionController
	subscriptions *controller.SubscriptionController
	webhooks      *controller.WebhookController
	forms         *controller.FormController
}

func setupRoutes(app *fiber.App, ctrl controllers, tokens *jwt.Manager, subs middleware.SubscriptionQuery) {
	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", ctrl.auth.Register)
	auth.Post("/login", ctrl.auth.Login)

	// Stripe webhook: raw body, no auth middleware
	api.Post("/stripe/webhook", ctrl.webhooks.HandleStripeWebhook)

	// Worker callback: service-key authenticated inside the handler
	api.Put("/forms/jobs/:id", ctrl.forms.UpdateFormJob)

	// Protected routes
	protected := api.Group("/", middleware.AuthMiddleware(tokens))
	protected.Get("/me", ctrl.auth.GetMe)

	transactions := protected.Group("/transactions")
	transactions.Get("/", ctrl.transactions.ListTransactions)
	transactions.Post("/import", ctrl.transactions.ImportCSV)
	transactions.Get("/export", middleware.CheckFeatureAccess(subs, subscription.CSVExport), ctrl.transactions.ExportCSV)
	transactions.Post("/categorize", middleware.CheckFeatureAccess(subs, subscription.AutoCategorize), ctrl.transactions.CategorizeTransactions)
	transactions.Put("/:id", ctrl.transactions.UpdateTransaction)
	transactions.Delete("/:id", ctrl.transactions.DeleteTransaction)

	forms := protected.Group("/forms")
	forms.Get("/jobs", ctrl.forms.ListFormJobs)
	forms.Post("/generate", middleware.RequirePaidPlan(subs), ctrl.forms.GenerateForm)

	subscriptions := protected.Group("/subscriptions")
	subscriptions.Get("/my", ctrl.subscriptions.GetMySubscription)
	subscriptions.Post("/cancel", ctrl.subscriptions.CancelSubscription)

	protected.Post("/stripe/create-checkout-session", ctrl.subscriptions.CreateCheckoutSession)
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.Database.URL)
	if err != nil {
		log.Fatal(err)
	}

	err = database.Migrate(db,
		&model.User{},
		&model.Subscription{},
		&model.Transaction{},
		&model.FormJob{},
		&model.ErrorLog{},
	)
	if err != nil {
		log.Printf("Migration warning: %v", err)
	}

	tokens := jwt.NewManager(cfg.JWT.Secret)
	subStore := repository.NewSubscriptionRepository(db)
	users := repository.NewUserRepository(db)
	errLog := repository.NewErrorLogRepository(db)
	stripeClient := billing.NewStripeClient(cfg.Stripe.SecretKey)
	verifier := billing.NewVerifier(cfg.Stripe.WebhookSecret)
	reconciler := billing.NewReconciler(subStore, errLog)
	categorizer := categorize.NewClient(cfg.OpenAI.APIKey)
	workerClient := worker.NewClient(cfg.Worker.URL, cfg.Worker.ServiceKey)

	var archiver *storage.Archiver
	if cfg.Storage.Bucket != "" {
		archiver, err = storage.NewArchiver(cfg.Storage)
		if err != nil {
			log.Printf("Object storage disabled: %v", err)
		}
	}

	ctrl := controllers{
		auth:          controller.NewAuthController(db, tokens),
		transactions:  controller.NewTransactionController(db, categorizer, archiver),
		subscriptions: controller.NewSubscriptionController(subStore, users, stripeClient, cfg),
		webhooks:      controller.NewWebhookController(verifier, reconciler),
		forms:         controller.NewFormController(db, workerClient, errLog, cfg.Worker.ServiceKey),
	}

	if _, err := cron.StartSubscriptionExpirySweep(db); err != nil {
		log.Printf("Could not start subscription expiry sweep: %v", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	setupRoutes(app, ctrl, tokens, subStore)

	log.Printf("Server is running on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}

package main

import (
	"log"
	"time"

	config "github.com/wanjiru254/tutor_connect/configs"
	"github.com/wanjiru254/tutor_connect/audit"
	"github.com/wanjiru254/tutor_connect/database"
	"github.com/wanjiru254/tutor_connect/jobs"
	"github.com/wanjiru254/tutor_connect/notifications"
	"github.com/wanjiru254/tutor_connect/payments"
	"github.com/wanjiru254/tutor_connect/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()
	notifications.InitEmailService()
	payments.InitStripe()

	auditSink := audit.NewService(database.DB)
	notifier := notifications.NewQueueDispatcher(database.DB)
	defer auditSink.Close()
	defer notifier.Close()

	accountStore := &payments.GormAccountStore{DB: database.DB}
	payoutStore := &payments.GormPayoutStore{DB: database.DB}
	eventLedger := &payments.GormEventLedger{DB: database.DB}

	reconciler := payments.NewAccountReconciler(accountStore, auditSink, notifier)
	tracker := payments.NewPayoutTracker(payoutStore, accountStore, auditSink, notifier)
	verifier := payments.NewSignatureVerifier(config.Config("STRIPE_WEBHOOK_SECRET"))
	processor := payments.NewWebhookProcessor(verifier, eventLedger, reconciler, tracker, auditSink)

	jobs.InitConnectSync(reconciler, accountStore)
	c := cron.New()
	c.AddFunc("0 */6 * * *", jobs.SyncPendingConnectAccounts)
	go c.Start()
	log.Println("✅ Cron job for connect account re-sync scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "Tutor Connect",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Stripe-Signature",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Africa/Nairobi",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to Tutor Connect API",
		})
	})

	routes.AuthRoutes(app)
	routes.TeacherRoutes(app)
	routes.AdminRoutes(app)
	routes.PaymentRoutes(app, processor)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	log.Println("✅ Server is running on port 8080")
	err := app.Listen(":8080")
	if err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}

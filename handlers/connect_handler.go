package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wanjiru254/tutor_connect/database"
	"github.com/wanjiru254/tutor_connect/models"
	"github.com/wanjiru254/tutor_connect/payments"
)

func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	return uuid.Parse(claims["user_id"].(string))
}

// CreateConnectAccount creates the teacher's Stripe Express account and
// stores its id. From this point on the account's state is maintained
// exclusively by the webhook pipeline.
func CreateConnectAccount(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var teacher models.Teacher
	if err := database.DB.Preload("User").First(&teacher, "user_id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher profile not found"})
	}

	if teacher.StripeAccountID != nil && teacher.ConnectStatus != models.ConnectStatusDisconnected {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A payout account is already connected"})
	}

	type Request struct {
		Country string `json:"country" validate:"required,iso3166_1_alpha2"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	acct, err := payments.CreateExpressAccount(teacher.User.Email, req.Country)
	if err != nil {
		log.Printf("🔥 Stripe account creation failed for teacher %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create payout account"})
	}

	updates := map[string]interface{}{
		"stripe_account_id": acct.ID,
		"connect_status":    models.ConnectStatusPending,
		"health_score":      30,
	}
	if err := database.DB.Model(&teacher).Updates(updates).Error; err != nil {
		log.Printf("🔥 Failed to store Stripe account id for teacher %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save payout account"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"stripe_account_id": acct.ID,
		"connect_status":    models.ConnectStatusPending,
	})
}

// CreateOnboardingLink returns a fresh onboarding URL for the teacher's
// pending account.
func CreateOnboardingLink(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var teacher models.Teacher
	if err := database.DB.First(&teacher, "user_id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher profile not found"})
	}
	if teacher.StripeAccountID == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No payout account to onboard"})
	}

	link, err := payments.CreateOnboardingLink(*teacher.StripeAccountID)
	if err != nil {
		log.Printf("🔥 Onboarding link creation failed for teacher %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create onboarding link"})
	}

	if err := database.DB.Model(&teacher).Update("onboarding_url", link.URL).Error; err != nil {
		log.Printf("Failed to store onboarding URL for teacher %s: %v", userID, err)
	}

	return c.JSON(fiber.Map{"url": link.URL, "expires_at": link.ExpiresAt})
}

// GetDashboardLink returns a login link into the Stripe Express dashboard
// for a verified account.
func GetDashboardLink(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var teacher models.Teacher
	if err := database.DB.First(&teacher, "user_id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher profile not found"})
	}
	if teacher.StripeAccountID == nil || teacher.ConnectStatus != models.ConnectStatusConnected {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Payout account is not connected"})
	}

	link, err := payments.CreateLoginLink(*teacher.StripeAccountID)
	if err != nil {
		log.Printf("🔥 Login link creation failed for teacher %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create dashboard link"})
	}

	return c.JSON(fiber.Map{"url": link.URL})
}

// GetConnectStatus returns the teacher's connected-account projection,
// including the audit trail.
func GetConnectStatus(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var teacher models.Teacher
	if err := database.DB.First(&teacher, "user_id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher profile not found"})
	}

	var trail []models.ConnectAuditEntry
	database.DB.Where("teacher_id = ?", userID).Order("created_at asc").Limit(50).Find(&trail)

	return c.JSON(fiber.Map{
		"connect_status":      teacher.ConnectStatus,
		"verified":            teacher.ConnectVerified,
		"onboarding_complete": teacher.OnboardingComplete,
		"requirements":        teacher.Requirements,
		"capabilities":        teacher.Capabilities,
		"health_score":        teacher.HealthScore,
		"failure_reason":      teacher.FailureReason,
		"last_status_update":  teacher.LastStatusUpdate,
		"audit_trail":         trail,
	})
}

// GetMyPayouts lists the teacher's payouts, newest first, with their attempt
// history.
func GetMyPayouts(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var payouts []models.Payout
	if err := database.DB.Preload("Attempts").
		Where("teacher_id = ?", userID).
		Order("created_at desc").
		Find(&payouts).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
		}
	}

	return c.JSON(fiber.Map{"payouts": payouts})
}

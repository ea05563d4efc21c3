package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	config "github.com/wanjiru254/tutor_connect/configs"
)

const brevoSendURL = "https://api.brevo.com/v3/smtp/email"

// BrevoService sends transactional email through the Brevo SMTP API.
type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	client      *http.Client
}

var EmailClient *BrevoService

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

func InitEmailService() {
	apiKey := config.Config("BREVO_API_KEY")
	senderEmail := config.Config("EMAIL_SENDER")
	senderName := config.Config("EMAIL_SENDER_NAME")

	if apiKey == "" || senderEmail == "" || senderName == "" {
		log.Println("⚠️ Email service not configured, payout and account emails will be skipped.")
		EmailClient = nil
		return
	}

	EmailClient = &BrevoService{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
	log.Printf("✅ Email service initialized, sending as %s <%s>", senderName, senderEmail)
}

// renderEmail wraps a notification in the shared transactional layout.
// Urgent notifications get an attention banner above the body.
func renderEmail(title, body, priority string) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family:sans-serif;max-width:560px;margin:0 auto">`)
	if priority == PriorityUrgent {
		b.WriteString(`<p style="background:#fde8e8;color:#9b1c1c;padding:8px 12px;border-radius:4px"><strong>Action needed</strong></p>`)
	}
	fmt.Fprintf(&b, "<h2>%s</h2><p>%s</p>", title, body)
	b.WriteString(`<p style="color:#6b7280;font-size:12px">You are receiving this because of activity on your TutorConnect payout account.</p></div>`)
	return b.String()
}

func (s *BrevoService) send(toEmail, toName, subject, htmlContent string) error {
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}

	recipientName := toName
	if recipientName == "" {
		recipientName = toEmail[:strings.Index(toEmail, "@")]
	}

	payload := brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": recipientName}},
		Subject:     subject,
		HTMLContent: htmlContent,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %v", err)
	}

	req, err := http.NewRequest("POST", brevoSendURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		log.Printf("Brevo API error: Status %d, Body: %s", resp.StatusCode, string(respBody))
		return fmt.Errorf("failed to send email via Brevo: %s", string(respBody))
	}
	return nil
}

// SendEmail delivers one transactional email, logging failures instead of
// returning them. Safe to call from a goroutine off the request path.
func SendEmail(toName, toEmail, subject, htmlContent string) {
	if EmailClient == nil {
		log.Println("Email client not initialized, skipping email send.")
		return
	}

	if err := EmailClient.send(toEmail, toName, subject, htmlContent); err != nil {
		log.Printf("🔥 Failed to send email to %s: %v", toEmail, err)
		return
	}
	log.Printf("✅ Email sent successfully to %s", toEmail)
}

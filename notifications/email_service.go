package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/dubrovnikcoast/coastal_stays/configs"
	"github.com/dubrovnikcoast/coastal_stays/models"
)

type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string
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
		log.Println("⚠️ Email service not configured. Missing API Key, Sender Email, or Sender Name.")
		EmailClient = nil
		return
	}

	EmailClient = &BrevoService{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
	}
	log.Println("✅ Email service initialized successfully.")
}

func (s *BrevoService) send(toEmail, toName, subject, htmlContent string) error {
	endpoint := "https://api.brevo.com/v3/smtp/email"

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

	req, err := http.NewRequest("POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	client := &http.Client{
		Timeout: 10 * time.Second,
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		log.Printf("Brevo API error: Status %d, Body: %s", resp.StatusCode, string(bodyBytes))
		return fmt.Errorf("failed to send email via Brevo: %s", string(bodyBytes))
	}

	return nil
}

// SendEmail delivers one transactional email, fire-and-forget. Failures are
// logged and reported to the caller as a non-nil error so handlers can
// surface a warning, but never roll back committed state.
func SendEmail(toName, toEmail, subject, htmlContent string) error {
	if EmailClient == nil {
		log.Println("Email client not initialized, skipping email send.")
		return nil
	}

	if err := EmailClient.send(toEmail, toName, subject, htmlContent); err != nil {
		log.Printf("🔥 Failed to send email to %s: %v", toEmail, err)
		return err
	}

	log.Printf("✅ Email sent successfully to %s", toEmail)
	return nil
}

// Booking email kinds.
const (
	EmailVerify    = "verify"
	EmailConfirmed = "confirmed"
	EmailCancelled = "cancelled"
)

// SendBookingEmail renders and sends one of the booking lifecycle emails.
// The booking must have its Contact preloaded; the verify kind additionally
// needs a live EmailToken.
func SendBookingEmail(booking *models.Booking, kind string) error {
	if booking == nil || booking.Contact == nil {
		return fmt.Errorf("booking contact missing, cannot send %s email", kind)
	}

	name := booking.Contact.FullName
	baseURL := config.Config("SITE_BASE_URL")

	var subject, body string
	switch kind {
	case EmailVerify:
		if booking.EmailToken == nil {
			return fmt.Errorf("booking %s has no verification token", booking.Reference)
		}
		verifyURL := fmt.Sprintf("%s/booking/verify?token=%s", baseURL, url.QueryEscape(*booking.EmailToken))
		subject = "Confirm your email for booking " + booking.Reference
		body = fmt.Sprintf(
			`<p>Hi %s,</p>
<p>Thank you for choosing Coastal Stays. Please confirm your email address to continue with your booking.</p>
<p><a href="%s" style="padding:10px 16px;background:#4f46e5;color:#ffffff;text-decoration:none;border-radius:6px;">Confirm email</a></p>
<p>If the button does not work, copy this link: %s</p>`,
			name, verifyURL, verifyURL)

	case EmailConfirmed:
		subject = "Booking confirmed - " + booking.Reference
		body = fmt.Sprintf(
			`<p>Hi %s,</p>
<p>Your stay from %s to %s is confirmed.</p>
<p>Total amount: %.2f %s</p>
<p>We look forward to welcoming you.</p>`,
			name, booking.ArrivalDate.Format("2006-01-02"), booking.DepartureDate.Format("2006-01-02"),
			booking.TotalAmount, booking.Currency)

	case EmailCancelled:
		subject = "Booking cancelled - " + booking.Reference
		body = fmt.Sprintf(
			`<p>Hi %s,</p>
<p>Your booking %s has been cancelled. If this is unexpected, please contact us.</p>`,
			name, booking.Reference)

	default:
		return fmt.Errorf("unknown booking email kind %q", kind)
	}

	return SendEmail(name, booking.Email, subject, body)
}

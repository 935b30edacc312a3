// Package email sends transactional mail through the SendGrid v3 API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const DefaultEndpoint = "https://api.sendgrid.com/v3/mail/send"

type Sender struct {
	apiKey      string
	senderEmail string
	senderName  string
	frontend    string
	endpoint    string
	client      *http.Client
	log         *zap.Logger
}

type Option func(*Sender)

// WithEndpoint points the sender at another mail API URL.
func WithEndpoint(endpoint string) Option {
	return func(s *Sender) { s.endpoint = endpoint }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) { s.client = c }
}

func NewSender(apiKey, senderEmail, frontend string, log *zap.Logger, opts ...Option) *Sender {
	s := &Sender{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  "LearnPlatform",
		frontend:    frontend,
		endpoint:    DefaultEndpoint,
		client:      &http.Client{Timeout: 15 * time.Second},
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendGrid request format
type sgEmail struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}
type sgPersonalization struct {
	To []sgEmail `json:"to"`
}
type sgRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgEmail             `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

func (s *Sender) SendWelcome(ctx context.Context, to, username string) error {
	body := fmt.Sprintf(`<h3>Welcome, %s!</h3>
<p>Your account is ready. Browse the catalog and start your first course.</p>
<p><a href="%s/courses">Explore courses</a></p>`, html.EscapeString(username), s.frontend)
	return s.send(ctx, to, "Welcome to LearnPlatform", body)
}

func (s *Sender) SendPasswordReset(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.frontend, url.QueryEscape(token))
	body := fmt.Sprintf(`<h3>Password reset</h3>
<p>You asked to reset your password. The link below is valid for one hour.</p>
<p><a href="%s">Reset password</a></p>
<p>If you did not request a reset, ignore this email.</p>`, link)
	return s.send(ctx, to, "Reset your password", body)
}

func (s *Sender) SendPasswordChanged(ctx context.Context, to string) error {
	body := `<h3>Password changed</h3>
<p>Your password was changed and every device was signed out.</p>
<p>If this was not you, reset your password right away.</p>`
	return s.send(ctx, to, "Your password was changed", body)
}

func (s *Sender) send(ctx context.Context, to, subject, htmlBody string) error {
	payload := sgRequest{
		Personalizations: []sgPersonalization{{To: []sgEmail{{Email: to}}}},
		From:             sgEmail{Email: s.senderEmail, Name: s.senderName},
		Subject:          subject,
		Content:          []sgContent{{Type: "text/html", Value: htmlBody}},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	// SendGrid answers 202 on success
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sendgrid error: status=%d body=%s", resp.StatusCode, body)
	}
	s.log.Debug("email sent", zap.String("subject", subject), zap.Int("status", resp.StatusCode))
	return nil
}

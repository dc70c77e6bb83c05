package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches Brevo API v3 send transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoSender   `json:"sender"`
	To          []BrevoTo     `json:"to"`
	Subject     string        `json:"subject"`
	HTMLContent string        `json:"htmlContent"`
	ReplyTo     *BrevoReplyTo `json:"replyTo,omitempty"`
}

type BrevoSender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type BrevoTo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type BrevoReplyTo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Lead is what an agent needs to follow up on a contact request.
type Lead struct {
	Name         string
	Email        string
	Phone        string
	Message      string
	ListingTitle string
	ListingURL   string
}

// Sender sends transactional emails. Nil = no-op.
type Sender interface {
	SendNewLead(ctx context.Context, toEmail string, lead Lead) error
}

// BrevoClient sends emails via Brevo (Sendinblue) API using SENDINBLUE_API_KEY and MAIL_FROM.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	Brand    string
	// APIURL overrides the Brevo endpoint.
	APIURL string
	Client *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@example.com"
}

func (c *BrevoClient) brand() string {
	if c.Brand != "" {
		return c.Brand
	}
	return "Listings"
}

func (c *BrevoClient) endpoint() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	return brevoAPI
}

// send sends one email via Brevo API.
func (c *BrevoClient) send(ctx context.Context, toEmail, subject, html string, replyTo *BrevoReplyTo) error {
	if c.APIKey == "" {
		return nil
	}
	body := BrevoSendRequest{
		Sender:      BrevoSender{Email: c.from(), Name: c.brand()},
		To:          []BrevoTo{{Email: toEmail}},
		Subject:     subject,
		HTMLContent: html,
		ReplyTo:     replyTo,
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

// SendNewLead notifies an agent of a contact request. Replies go straight to the lead.
func (c *BrevoClient) SendNewLead(ctx context.Context, toEmail string, lead Lead) error {
	if c.APIKey == "" || toEmail == "" {
		return nil
	}
	subject := "New inquiry from " + lead.Name
	if lead.ListingTitle != "" {
		subject += " about " + lead.ListingTitle
	}
	replyTo := &BrevoReplyTo{Email: lead.Email, Name: lead.Name}
	return c.send(ctx, toEmail, subject, EmailLayout(c.brand(), newLeadContent(lead)), replyTo)
}

func newLeadContent(lead Lead) string {
	var rows strings.Builder
	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&rows, `<tr><td class="lead-label">%s</td><td>%s</td></tr>`, label, EscapeHTML(value))
	}
	row("Name", lead.Name)
	row("Email", lead.Email)
	row("Phone", lead.Phone)
	row("Listing", lead.ListingTitle)

	message := ""
	if lead.Message != "" {
		message = fmt.Sprintf(`<h2>Message</h2><p>%s</p>`, strings.ReplaceAll(EscapeHTML(lead.Message), "\n", "<br>"))
	}
	cta := ""
	if lead.ListingURL != "" {
		cta = fmt.Sprintf(`<center><a href="%s" class="cta-button">View listing</a></center>`, EscapeHTML(lead.ListingURL))
	}
	return fmt.Sprintf(`
    <h1>You have a new lead</h1>
    <table class="lead-table" role="presentation" width="100%%">%s</table>
    %s
    %s
    <p style="margin-top: 20px; font-size: 14px; color: #666;">Reply to this email to answer %s directly.</p>
`, rows.String(), message, cta, EscapeHTML(lead.Name))
}

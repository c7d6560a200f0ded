package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	goption "google.golang.org/api/option"
)

// GmailConfig holds the OAuth material produced by cmd/oauth-init.
type GmailConfig struct {
	ClientJSON []byte // OAuth client credentials downloaded from the console
	TokenFile  string // token saved by oauth-init
	From       string // e.g. "SavvyCent <no-reply@example.com>"
}

// GmailTransport sends mail through the Gmail API as the authorized user.
type GmailTransport struct {
	svc  *gmail.Service
	from string
}

var _ Transport = (*GmailTransport)(nil)

// NewGmailTransport builds a Gmail service from an OAuth client and a saved
// refresh token. The token source refreshes access tokens on its own.
func NewGmailTransport(ctx context.Context, cfg GmailConfig) (*GmailTransport, error) {
	if len(cfg.ClientJSON) == 0 {
		return nil, errors.New("missing gmail oauth client credentials")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("missing sender address")
	}

	oauthCfg, err := google.ConfigFromJSON(cfg.ClientJSON, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tok, err := LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	svc, err := gmail.NewService(ctx, goption.WithTokenSource(oauthCfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}

	slog.InfoContext(ctx, "Gmail transport ready", "from", cfg.From)
	return &GmailTransport{svc: svc, from: cfg.From}, nil
}

// LoadToken reads an OAuth token saved as JSON.
func LoadToken(path string) (*oauth2.Token, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("missing gmail token file")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	if tok.RefreshToken == "" && tok.AccessToken == "" {
		return nil, errors.New("token file holds no token")
	}
	return &tok, nil
}

func (g *GmailTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	raw := buildRawMessage(g.from, msg)
	sent, err := g.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail send: %w", err)
	}
	slog.DebugContext(ctx, "Email sent", "to", msg.To, "gmail_id", sent.Id)
	return nil
}

// buildRawMessage renders an RFC 5322 message with an HTML body.
func buildRawMessage(from string, msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")

	body := base64.StdEncoding.EncodeToString([]byte(msg.HTML))
	for len(body) > 76 {
		b.WriteString(body[:76])
		b.WriteString("\r\n")
		body = body[76:]
	}
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.Bytes()
}

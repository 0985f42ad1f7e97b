package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// PushConnector implements ports.Connector by POSTing each outbound chunk to
// a callback URL. The receiving gateway renders it on the actual platform.
type PushConnector struct {
	url    string
	client *http.Client
}

// PushPayload is the JSON body delivered to the callback URL, one POST per
// chunk.
type PushPayload struct {
	UserID         string        `json:"user_id"`
	Text           string        `json:"text"`
	Buttons        []string      `json:"buttons,omitempty"`
	Format         domain.Format `json:"format,omitempty"`
	RequestContact bool          `json:"request_contact,omitempty"`
}

// NewPushConnector creates a connector targeting the given callback URL.
// A nil client falls back to one with a 15s timeout.
func NewPushConnector(url string, client *http.Client) *PushConnector {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &PushConnector{url: url, client: client}
}

// Send delivers one message to the callback endpoint.
func (c *PushConnector) Send(ctx context.Context, userID string, msg domain.Message) error {
	payload := PushPayload{
		UserID:         userID,
		Text:           msg.Text,
		Buttons:        msg.Buttons,
		Format:         msg.Format,
		RequestContact: msg.RequestContact,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("push to callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("callback rejected message: status %d", resp.StatusCode)
	}
	return nil
}

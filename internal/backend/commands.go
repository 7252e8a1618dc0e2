package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kiwari-pos/terminal/internal/command"
)

const commandsPath = "/api/orders/commands"

// CommandClient posts envelopes to the backend command endpoint.
// It satisfies command.Transport.
type CommandClient struct {
	*Client
}

var _ command.Transport = (*CommandClient)(nil)

// NewCommandClient creates a CommandClient sharing c.
func NewCommandClient(c *Client) *CommandClient {
	return &CommandClient{Client: c}
}

// Send posts env. A returned error means the command may not have reached the
// backend. Any decodable body, whatever the status, is the backend's verdict;
// an undecodable one becomes an INVALID_RESPONSE failure.
func (c *CommandClient) Send(ctx context.Context, env command.Envelope) (command.Response, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return command.Response{}, fmt.Errorf("encode envelope: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, commandsPath, bytes.NewReader(body))
	if err != nil {
		return command.Response{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return command.Response{}, fmt.Errorf("POST %s: %w", commandsPath, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return command.Response{}, fmt.Errorf("read command response: %w", err)
	}

	var out command.Response
	if err := json.Unmarshal(raw, &out); err != nil || (!out.Success && out.Error == nil && resp.StatusCode >= 300) {
		msg := fmt.Sprintf("undecodable response (%s)", resp.Status)
		return command.Failure(env.CommandID, command.CodeInvalidResponse, msg), nil
	}
	if out.CommandID == "" {
		out.CommandID = env.CommandID
	}
	return out, nil
}

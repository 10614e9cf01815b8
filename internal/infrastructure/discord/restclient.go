package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultAPIBase = "https://discord.com/api/v10"

// APIError is a non-2xx response from the Discord REST API.
type APIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord API error: status %d code %d: %s", e.Status, e.Code, e.Message)
}

// IsPermission reports whether the error is a missing-access or
// missing-permissions rejection.
func (e *APIError) IsPermission() bool {
	return e.Status == http.StatusForbidden
}

// RestClient talks to the Discord REST API with a bot token.
type RestClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewRestClient creates a REST client for the given bot token.
func NewRestClient(token string) *RestClient {
	return &RestClient{
		token:   token,
		baseURL: defaultAPIBase,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateMessage posts a message to a channel.
func (c *RestClient) CreateMessage(ctx context.Context, channelID string, payload MessagePayload) (*Message, error) {
	var msg Message
	path := fmt.Sprintf("/channels/%s/messages", channelID)
	if err := c.do(ctx, http.MethodPost, path, payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessage replaces the content and components of an existing message.
func (c *RestClient) EditMessage(ctx context.Context, channelID, messageID string, payload MessagePayload) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	return c.do(ctx, http.MethodPatch, path, payload, nil)
}

// GetGuildChannels lists a guild's channels.
func (c *RestClient) GetGuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var channels []Channel
	path := fmt.Sprintf("/guilds/%s/channels", guildID)
	if err := c.do(ctx, http.MethodGet, path, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// LeaveGuild removes the bot from a guild.
func (c *RestClient) LeaveGuild(ctx context.Context, guildID string) error {
	path := fmt.Sprintf("/users/@me/guilds/%s", guildID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// AddMemberRole assigns a role to a guild member.
func (c *RestClient) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, userID, roleID)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// RemoveMemberRole removes a role from a guild member.
func (c *RestClient) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, userID, roleID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// CreateInteractionResponse answers an interaction within its 3-second window.
func (c *RestClient) CreateInteractionResponse(ctx context.Context, interactionID, token string, resp InteractionResponse) error {
	path := fmt.Sprintf("/interactions/%s/%s/callback", interactionID, token)
	return c.do(ctx, http.MethodPost, path, resp, nil)
}

// EditOriginalResponse edits the deferred or initial interaction response.
func (c *RestClient) EditOriginalResponse(ctx context.Context, applicationID, token string, payload MessagePayload) error {
	path := fmt.Sprintf("/webhooks/%s/%s/messages/@original", applicationID, token)
	return c.do(ctx, http.MethodPatch, path, payload, nil)
}

// EditOriginalResponseWithFile edits the deferred response attaching a file.
// Discord expects multipart form data with a payload_json part.
func (c *RestClient) EditOriginalResponseWithFile(ctx context.Context, applicationID, token string, payload MessagePayload, filename string, file []byte) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := writer.WriteField("payload_json", string(payloadJSON)); err != nil {
		return fmt.Errorf("failed to write payload part: %w", err)
	}
	part, err := writer.CreateFormFile("files[0]", filename)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(file); err != nil {
		return fmt.Errorf("failed to write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	url := fmt.Sprintf("%s/webhooks/%s/%s/messages/@original", c.baseURL, applicationID, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bot "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	return c.checkStatus(resp)
}

// BulkOverwriteCommands replaces the application's global slash commands.
func (c *RestClient) BulkOverwriteCommands(ctx context.Context, applicationID string, commands []ApplicationCommand) error {
	path := fmt.Sprintf("/applications/%s/commands", applicationID)
	return c.do(ctx, http.MethodPut, path, commands, nil)
}

// GetGatewayURL asks the API for the websocket gateway endpoint.
func (c *RestClient) GetGatewayURL(ctx context.Context) (string, error) {
	var result struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/gateway/bot", nil, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

func (c *RestClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bot "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *RestClient) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		_ = json.Unmarshal(data, apiErr)
	}
	return apiErr
}

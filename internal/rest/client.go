// Package rest binds the backend's conversation REST endpoints. It is a thin
// collaborator of the sync core: list and history fetches feed the session
// loop, group and mute operations are plain request/response calls.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/arklim/chatsync/internal/auth"
	"github.com/arklim/chatsync/internal/proto"
)

// Client calls the conversation API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zerolog.Logger
}

// New constructs a client for the given API root, e.g.
// "http://localhost:8080/api".
func New(baseURL, token string, httpClient *http.Client, logger *zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{baseURL: baseURL, token: token, http: httpClient, log: logger}
}

// ListConversations fetches all conversation summaries for the current user.
func (c *Client) ListConversations(ctx context.Context) ([]proto.Conversation, error) {
	var out []proto.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation fetches one conversation summary.
func (c *Client) GetConversation(ctx context.Context, conversationID int64) (*proto.Conversation, error) {
	var out proto.Conversation
	if err := c.do(ctx, http.MethodGet, conversationPath(conversationID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMessages fetches the message history of a conversation.
func (c *Client) GetMessages(ctx context.Context, conversationID int64) ([]proto.Message, error) {
	var out []proto.Message
	if err := c.do(ctx, http.MethodGet, conversationPath(conversationID)+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchMessages runs a content search within one conversation.
func (c *Client) SearchMessages(ctx context.Context, conversationID int64, query string, limit int) ([]proto.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	path := conversationPath(conversationID) + "/messages/search?" + url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(limit)},
	}.Encode()

	var out []proto.Message
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateMute sets the mute flag for a conversation.
func (c *Client) UpdateMute(ctx context.Context, conversationID int64, muted bool) error {
	body := map[string]bool{"muted": muted}
	return c.do(ctx, http.MethodPatch, conversationPath(conversationID)+"/mute", body, nil)
}

// CreateGroup creates a group conversation with the given members.
func (c *Client) CreateGroup(ctx context.Context, name string, memberIDs []int64) (*proto.Conversation, error) {
	body := map[string]any{"name": name, "memberIds": memberIDs}
	var out proto.Conversation
	if err := c.do(ctx, http.MethodPost, "/conversations/groups", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddMembers adds members to a group conversation.
func (c *Client) AddMembers(ctx context.Context, conversationID int64, memberIDs []int64) (*proto.Conversation, error) {
	body := map[string]any{"memberIds": memberIDs}
	var out proto.Conversation
	if err := c.do(ctx, http.MethodPost, conversationPath(conversationID)+"/members", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// KickMember removes a member from a group conversation.
func (c *Client) KickMember(ctx context.Context, conversationID, memberID int64) error {
	path := conversationPath(conversationID) + "/kick/" + strconv.FormatInt(memberID, 10)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// TransferAdmin hands group administration to another member.
func (c *Client) TransferAdmin(ctx context.Context, conversationID, newAdminID int64) error {
	body := map[string]any{"newAdminId": newAdminID}
	return c.do(ctx, http.MethodPost, conversationPath(conversationID)+"/transfer-admin", body, nil)
}

// LeaveGroup leaves a group. A leaving admin must name a successor.
func (c *Client) LeaveGroup(ctx context.Context, conversationID int64, newAdminID int64) error {
	var body any
	if newAdminID != 0 {
		body = map[string]any{"newAdminId": newAdminID}
	} else {
		body = map[string]any{}
	}
	return c.do(ctx, http.MethodPost, conversationPath(conversationID)+"/leave", body, nil)
}

// DissolveGroup deletes a group conversation entirely.
func (c *Client) DissolveGroup(ctx context.Context, conversationID int64) error {
	return c.do(ctx, http.MethodDelete, conversationPath(conversationID), nil, nil)
}

func conversationPath(conversationID int64) string {
	return "/conversations/" + strconv.FormatInt(conversationID, 10)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", auth.BearerHeader(c.token))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Bound the diagnostic read; error bodies are small or absent.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Bytes("body", snippet).Msg("api error")
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

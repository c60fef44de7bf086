// Package client is a Go client for the PingPal API: a thin REST wrapper, a
// websocket event stream, and a local state layer that applies optimistic
// updates and reconciles them against server confirmations and live events.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pingpal/backend/internal/chat"
	"pingpal/backend/internal/models"
	"pingpal/backend/internal/relationship"
)

// APIError is a non-2xx response decoded from the server's error body. Reason
// carries the machine-readable conflict code when the server supplied one.
type APIError struct {
	Status  int
	Message string `json:"error"`
	Reason  string `json:"reason"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Client talks to a PingPal server.
type Client struct {
	baseURL string
	http    *http.Client

	// Token is the bearer token attached to authenticated requests. Set by
	// Login/Register, refreshed by Refresh.
	Token        string
	RefreshToken string
}

// New creates a Client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL + "/api/v1",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// AuthResult mirrors the server's auth response.
type AuthResult struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	User         models.User `json:"user"`
}

// Paginated mirrors the server's paginated envelope.
type Paginated[T any] struct {
	Data []T `json:"data"`
	Meta struct {
		TotalItems  int64 `json:"total_items"`
		TotalPages  int   `json:"total_pages"`
		CurrentPage int   `json:"current_page"`
		PageSize    int   `json:"page_size"`
	} `json:"meta"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Register creates an account and stores the returned tokens on the client.
func (c *Client) Register(ctx context.Context, fullName, email, password string) (*AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"fullName": fullName,
		"email":    email,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	c.Token, c.RefreshToken = res.Token, res.RefreshToken
	return &res, nil
}

// Login authenticates and stores the returned tokens on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	c.Token, c.RefreshToken = res.Token, res.RefreshToken
	return &res, nil
}

// Refresh exchanges the stored refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context) error {
	var res AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": c.RefreshToken,
	}, &res)
	if err != nil {
		return err
	}
	c.Token = res.Token
	return nil
}

// Logout revokes the stored refresh token and clears both tokens.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", map[string]string{
		"refreshToken": c.RefreshToken,
	}, nil)
	if err != nil {
		return err
	}
	c.Token, c.RefreshToken = "", ""
	return nil
}

// Me fetches the current user's profile.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchUsers looks up users by name or email fragment.
func (c *Client) SearchUsers(ctx context.Context, query string, page, limit int) (*Paginated[models.PublicProfile], error) {
	path := "/users?q=" + url.QueryEscape(query) +
		"&page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)

	var res Paginated[models.PublicProfile]
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SendFriendRequest requests friendship with userID.
func (c *Client) SendFriendRequest(ctx context.Context, userID uint) (*models.Relationship, error) {
	var rel models.Relationship
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/request", userID), nil, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// AcceptFriendRequest accepts the pending request from userID.
func (c *Client) AcceptFriendRequest(ctx context.Context, userID uint) (*models.Relationship, error) {
	var rel models.Relationship
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/accept", userID), nil, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// DeclineFriendRequest declines the pending request from userID.
func (c *Client) DeclineFriendRequest(ctx context.Context, userID uint) (*models.Relationship, error) {
	var rel models.Relationship
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/decline", userID), nil, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// BlockUser blocks userID.
func (c *Client) BlockUser(ctx context.Context, userID uint) (*models.Relationship, error) {
	var rel models.Relationship
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/block", userID), nil, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// Invites lists incoming friend requests, most recent first.
func (c *Client) Invites(ctx context.Context, page, limit int) (*Paginated[relationship.InviteView], error) {
	path := "/users/me/invites?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)

	var res Paginated[relationship.InviteView]
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Suggestions lists candidate friends.
func (c *Client) Suggestions(ctx context.Context, page, limit int) (*Paginated[models.PublicProfile], error) {
	path := "/users/me/suggestions?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)

	var res Paginated[models.PublicProfile]
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SendMessage sends a direct message to userID.
func (c *Client) SendMessage(ctx context.Context, userID uint, text, attachmentURL string) (*models.Message, error) {
	var msg models.Message
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/messages/%d", userID), map[string]string{
		"text":          text,
		"attachmentUrl": attachmentURL,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Conversation fetches the full history with userID, oldest first.
func (c *Client) Conversation(ctx context.Context, userID uint) ([]models.Message, error) {
	var msgs []models.Message
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/messages/%d", userID), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkSeen marks the conversation with userID as seen and returns how many
// messages flipped.
func (c *Client) MarkSeen(ctx context.Context, userID uint) (int64, error) {
	var res struct {
		Updated int64 `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/messages/%d/seen", userID), nil, &res); err != nil {
		return 0, err
	}
	return res.Updated, nil
}

// DeleteConversation deletes the history with userID and returns how many
// messages were removed.
func (c *Client) DeleteConversation(ctx context.Context, userID uint) (int64, error) {
	var res struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/messages/%d", userID), nil, &res); err != nil {
		return 0, err
	}
	return res.Deleted, nil
}

// Sidebar fetches the conversation list.
func (c *Client) Sidebar(ctx context.Context) ([]chat.SidebarEntry, error) {
	var entries []chat.SidebarEntry
	if err := c.do(ctx, http.MethodGet, "/messages/sidebar", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

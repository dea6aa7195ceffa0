package api

import (
	"context"

	"simguard/client/internal/models"
)

type TokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	User         models.User `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (c *Client) Login(ctx context.Context, email, password string) (TokenResponse, error) {
	payload := map[string]string{
		"email":    email,
		"password": password,
	}
	var out TokenResponse
	if err := c.postJSON(ctx, "/auth/login", payload, &out); err != nil {
		return TokenResponse{}, err
	}
	return out, nil
}

func (c *Client) RegisterAccount(ctx context.Context, email, fullName, password string) (MessageResponse, error) {
	payload := map[string]string{
		"email":     email,
		"full_name": fullName,
		"password":  password,
	}
	var out MessageResponse
	if err := c.postJSON(ctx, "/auth/register", payload, &out); err != nil {
		return MessageResponse{}, err
	}
	return out, nil
}

func (c *Client) Me(ctx context.Context) (models.User, error) {
	var out models.User
	if err := c.getJSON(ctx, "/auth/me", &out); err != nil {
		return models.User{}, err
	}
	return out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, fullName string) (models.User, error) {
	payload := map[string]string{"full_name": fullName}
	var out models.User
	if err := c.putJSON(ctx, "/auth/profile", payload, &out); err != nil {
		return models.User{}, err
	}
	return out, nil
}

func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) (MessageResponse, error) {
	payload := map[string]string{
		"current_password": currentPassword,
		"new_password":     newPassword,
	}
	var out MessageResponse
	if err := c.putJSON(ctx, "/auth/change-password", payload, &out); err != nil {
		return MessageResponse{}, err
	}
	return out, nil
}

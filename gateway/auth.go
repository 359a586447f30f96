package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"taskboard/domain"
)

// User is the account returned by the auth endpoints.
type User struct {
	ID       domain.ID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// Session is the outcome of a login or registration.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login exchanges credentials for a bearer token.
func (g *Gateway) Login(ctx context.Context, identifier, password string) (Session, error) {
	if strings.TrimSpace(identifier) == "" {
		return Session{}, &domain.ValidationError{Field: "identifier", Reason: "required"}
	}
	if password == "" {
		return Session{}, &domain.ValidationError{Field: "password", Reason: "required"}
	}
	body := map[string]any{"identifier": strings.TrimSpace(identifier), "password": password}
	ep := g.cfg.Endpoints.Login
	payload, err := g.client.send(ctx, "login", http.MethodPost, ep, ep, body)
	if err != nil {
		return Session{}, err
	}
	return decodeSession(payload)
}

// Register creates an account and returns its session.
func (g *Gateway) Register(ctx context.Context, username, email, password string) (Session, error) {
	switch {
	case strings.TrimSpace(username) == "":
		return Session{}, &domain.ValidationError{Field: "username", Reason: "required"}
	case strings.TrimSpace(email) == "":
		return Session{}, &domain.ValidationError{Field: "email", Reason: "required"}
	case !strings.Contains(email, "@"):
		return Session{}, &domain.ValidationError{Field: "email", Reason: "must be an email address"}
	case password == "":
		return Session{}, &domain.ValidationError{Field: "password", Reason: "required"}
	}
	body := map[string]any{
		"username": strings.TrimSpace(username),
		"email":    strings.TrimSpace(email),
		"password": password,
	}
	ep := g.cfg.Endpoints.Register
	payload, err := g.client.send(ctx, "register", http.MethodPost, ep, ep, body)
	if err != nil {
		return Session{}, err
	}
	return decodeSession(payload)
}

// Me returns the account the configured token belongs to.
func (g *Gateway) Me(ctx context.Context) (User, error) {
	if g.cfg.Token == "" {
		return User{}, ErrNoToken
	}
	ep := g.cfg.Endpoints.Me
	payload, err := g.client.send(ctx, "me", http.MethodGet, ep, ep, nil)
	if err != nil {
		return User{}, err
	}
	var raw any
	if err := wireAPI.Unmarshal(payload, &raw); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	rec, ok := unwrap(raw)
	if !ok {
		return User{}, fmt.Errorf("decode user: %w", errUnexpectedShape)
	}
	return userOf(rec), nil
}

func decodeSession(payload []byte) (Session, error) {
	var raw any
	if err := wireAPI.Unmarshal(payload, &raw); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	rec, ok := unwrap(raw)
	if !ok {
		return Session{}, fmt.Errorf("decode session: %w", errUnexpectedShape)
	}
	s := Session{Token: rec.str("token", "jwt")}
	if s.Token == "" {
		return Session{}, fmt.Errorf("decode session: missing token")
	}
	if v, ok := rec.value("user"); ok {
		if urec, ok := unwrap(v); ok {
			s.User = userOf(urec)
		}
	}
	return s, nil
}

func userOf(rec record) User {
	return User{
		ID:       rec.identity(IDFieldID),
		Username: rec.str("username"),
		Email:    rec.str("email"),
	}
}

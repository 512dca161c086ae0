// Package google connects a user's Google account: the OAuth token exchange
// and the Gmail and Calendar API adapters the scanners consume.
package google

import (
	"database/sql"
	"time"

	"golang.org/x/oauth2"

	"github.com/stampbook/stampbook/errors"
)

// Token is a user's stored Google OAuth credential.
type Token struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

// oauth2Token converts to the oauth2 representation.
func (t *Token) oauth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// TokenStore persists Google OAuth tokens, one row per user.
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a token store
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Save upserts the user's token
func (s *TokenStore) Save(token *Token) error {
	query := `
		INSERT OR REPLACE INTO google_tokens (user_id, email, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	_, err := s.db.Exec(query,
		token.UserID,
		token.Email,
		token.AccessToken,
		token.RefreshToken,
		tokenType,
		token.Expiry,
		time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to save google token")
	}
	return nil
}

// Get loads the user's token, or ErrNotFound when the account is not connected
func (s *TokenStore) Get(userID string) (*Token, error) {
	query := `SELECT user_id, email, access_token, refresh_token, token_type, expiry FROM google_tokens WHERE user_id = ?`

	var token Token
	err := s.db.QueryRow(query, userID).Scan(
		&token.UserID,
		&token.Email,
		&token.AccessToken,
		&token.RefreshToken,
		&token.TokenType,
		&token.Expiry,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("google token for user %s", userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get google token")
	}

	return &token, nil
}

// Delete removes the user's token, disconnecting the account
func (s *TokenStore) Delete(userID string) error {
	_, err := s.db.Exec(`DELETE FROM google_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return errors.Wrap(err, "failed to delete google token")
	}
	return nil
}

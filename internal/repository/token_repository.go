package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TokenRepo persists refresh tokens and password reset tokens.  Only SHA-256
// hashes are stored.  Each refresh token belongs to a portal session id, so a
// session can be revoked as a whole.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, sessionID, userID, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (session_id, user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?,?)",
		sessionID, userID, tokenHash, exp.UTC(), time.Now().UTC())
	return err
}

// ValidateRefresh returns the session and user of a non-revoked, non-expired
// token.  Anything else is ErrNotFound.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (sessionID, userID string, err error) {
	var (
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err = r.DB.QueryRowContext(ctx,
		"SELECT session_id, user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&sessionID, &userID, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	if revokedAt.Valid || time.Now().UTC().After(expiresAt) {
		return "", "", ErrNotFound
	}
	return sessionID, userID, nil
}

// SessionActive reports whether the session still holds a live refresh token.
func (r *TokenRepo) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT expires_at, revoked_at FROM refresh_tokens WHERE session_id=?", sessionID)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	now := time.Now().UTC()
	active := false
	for rows.Next() {
		var (
			expiresAt time.Time
			revokedAt sql.NullTime
		)
		if err := rows.Scan(&expiresAt, &revokedAt); err != nil {
			return false, err
		}
		if !revokedAt.Valid && now.Before(expiresAt) {
			active = true
		}
	}
	return active, rows.Err()
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		time.Now().UTC(), tokenHash)
	return err
}

// RevokeSession revokes every token of one portal session.
func (r *TokenRepo) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE session_id=? AND revoked_at IS NULL",
		time.Now().UTC(), sessionID)
	return err
}

// RevokeAllForUser revokes all of a user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		time.Now().UTC(), userID)
	return err
}

// StoreReset records a password reset token hash.
func (r *TokenRepo) StoreReset(ctx context.Context, userID, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_resets (token_hash, user_id, expires_at, created_at) VALUES (?,?,?,?)",
		tokenHash, userID, exp.UTC(), time.Now().UTC())
	return err
}

// ConsumeReset marks a reset token as used and returns its user.  A token
// can be consumed once; expired, used or unknown tokens are ErrNotFound.
func (r *TokenRepo) ConsumeReset(ctx context.Context, tokenHash string) (string, error) {
	var (
		userID    string
		expiresAt time.Time
		usedAt    sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at, used_at FROM password_resets WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt, &usedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if usedAt.Valid || time.Now().UTC().After(expiresAt) {
		return "", ErrNotFound
	}
	if err := execOne(ctx, r.DB,
		"UPDATE password_resets SET used_at=? WHERE token_hash=? AND used_at IS NULL",
		time.Now().UTC(), tokenHash); err != nil {
		return "", err
	}
	return userID, nil
}

// ActiveSessions lists the distinct session ids that still hold a live
// refresh token for the user.
func (r *TokenRepo) ActiveSessions(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT session_id, expires_at FROM refresh_tokens WHERE user_id=? AND revoked_at IS NULL ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now().UTC()
	seen := map[string]bool{}
	var out []string
	for rows.Next() {
		var (
			sid       string
			expiresAt time.Time
		)
		if err := rows.Scan(&sid, &expiresAt); err != nil {
			return nil, err
		}
		if now.Before(expiresAt) && !seen[sid] {
			seen[sid] = true
			out = append(out, sid)
		}
	}
	return out, rows.Err()
}

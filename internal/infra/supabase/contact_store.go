package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"
	"github.com/clouddrive/clouddrive-bfa-go/internal/infra/resilience"
)

// ============================================================
// Contact store — contact_messages table via PostgREST
// (implements port.ContactStore)
// ============================================================

type contactRow struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Message   string  `json:"message"`
	CreatedAt *string `json:"created_at"`
}

// InsertContactMessage appends one message. Append-only; no read-back needed
// by the public form, so insert errors are the only failure mode.
func (c *Client) InsertContactMessage(ctx context.Context, msg *domain.ContactMessage) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertContactMessage")
	defer span.End()

	row := map[string]any{
		"id":         msg.ID,
		"name":       msg.Name,
		"email":      msg.Email,
		"message":    msg.Message,
		"created_at": msg.CreatedAt.Format(time.RFC3339),
	}

	if _, err := c.doPost(ctx, "contact_messages", row); err != nil {
		return &domain.ErrStoreUnavailable{Op: "contact_messages.insert", Err: err}
	}
	return nil
}

// ListRecentContactMessages returns the latest messages for the admin
// overview, newest first.
func (c *Client) ListRecentContactMessages(ctx context.Context, limit int) ([]domain.ContactMessage, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRecentContactMessages")
	defer span.End()

	if limit <= 0 {
		limit = 10
	}

	var messages []domain.ContactMessage

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("contact_messages?order=created_at.desc&limit=%d", limit)
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				messages = []domain.ContactMessage{}
				return nil
			}

			var rows []contactRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode contact messages: %w", err)
			}

			messages = make([]domain.ContactMessage, 0, len(rows))
			for _, r := range rows {
				m := domain.ContactMessage{
					ID:      r.ID,
					Name:    r.Name,
					Email:   r.Email,
					Message: r.Message,
				}
				if t := parseTimePtr(r.CreatedAt); t != nil {
					m.CreatedAt = *t
				}
				messages = append(messages, m)
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrStoreUnavailable{Op: "contact_messages.list", Err: err}
	}

	return messages, nil
}

package conversation

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func newPublicID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

func openMarker() *string {
	m := StatusOpen
	return &m
}

func (r *Repo) GetByID(ctx context.Context, id uint64) (*Conversation, error) {
	var conv Conversation
	if err := r.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// LookupConversation satisfies commerce.ConversationLookup.
func (r *Repo) LookupConversation(ctx context.Context, id uint64) (uint64, string, error) {
	conv, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, "", err
	}
	return conv.CustomerID, conv.Channel, nil
}

func (r *Repo) findOpen(ctx context.Context, customerID uint64, channel string) (*Conversation, error) {
	var conv Conversation
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND channel = ? AND status = ?", customerID, channel, StatusOpen).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetOrCreateOpen returns the single open conversation for (customer, channel),
// creating one when none exists. Concurrent creators race on the unique
// (customer_id, channel, open_marker) index; losers fetch the winner's row.
func (r *Repo) GetOrCreateOpen(ctx context.Context, tenant string, customerID uint64, channel, source string) (*Conversation, bool, error) {
	if conv, err := r.findOpen(ctx, customerID, channel); err == nil {
		return conv, false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	conv := Conversation{
		TenantID:   tenant,
		PublicID:   newPublicID(),
		CustomerID: customerID,
		Channel:    channel,
		Status:     StatusOpen,
		OpenMarker: openMarker(),
		Metadata:   map[string]string{"source": source},
	}
	if err := r.db.WithContext(ctx).Create(&conv).Error; err != nil {
		if existing, getErr := r.findOpen(ctx, customerID, channel); getErr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	return &conv, true, nil
}

// Close resolves or closes a conversation, clearing the open marker so a new
// thread may open later. Closed rows are immutable history.
func (r *Repo) Close(ctx context.Context, id uint64, status string) error {
	if status != StatusResolved && status != StatusClosed {
		return errors.New("conversation: close status must be resolved or closed")
	}
	now := time.Now()
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ? AND status = ?", id, StatusOpen).
		Updates(map[string]any{
			"status":      status,
			"open_marker": nil,
			"closed_at":   &now,
		}).Error
}

func (r *Repo) SetAgent(ctx context.Context, id, agentID uint64) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", id).
		Update("agent_id", agentID).Error
}

// InsertInboundOrSkip persists an inbound message unless its external id was
// already recorded. Returns created=false for a duplicate delivery; the caller
// must not re-trigger the model call.
func (r *Repo) InsertInboundOrSkip(ctx context.Context, m *Message) (bool, error) {
	if m.ExternalMessageID != nil && *m.ExternalMessageID == "" {
		m.ExternalMessageID = nil
	}
	if m.ExternalMessageID != nil {
		var count int64
		if err := r.db.WithContext(ctx).Model(&Message{}).
			Where("external_message_id = ?", *m.ExternalMessageID).
			Count(&count).Error; err != nil {
			return false, err
		}
		if count > 0 {
			return false, nil
		}
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if m.ExternalMessageID != nil {
			// lost the race with a concurrent delivery of the same message
			var count int64
			if r.db.WithContext(ctx).Model(&Message{}).
				Where("external_message_id = ?", *m.ExternalMessageID).
				Count(&count).Error == nil && count > 0 {
				return false, nil
			}
		}
		return false, err
	}
	return true, nil
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) UpdateRawPayload(ctx context.Context, id uint64, payload map[string]any) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Update("raw_payload", payload).Error
}

func (r *Repo) GetMessage(ctx context.Context, id uint64) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) UpdateMessageText(ctx context.Context, id uint64, text string) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Update("text", text).Error
}

func (r *Repo) UpdateMessageAttachments(ctx context.Context, id uint64, attachments []map[string]any) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Update("attachments", attachments).Error
}

// ListRecent returns the newest messages in chronological (oldest first) order.
func (r *Repo) ListRecent(ctx context.Context, conversationID uint64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 5
	}
	var desc []Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&desc).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(desc)-1; i < j; i, j = i+1, j-1 {
		desc[i], desc[j] = desc[j], desc[i]
	}
	return desc, nil
}

func (r *Repo) LastInbound(ctx context.Context, conversationID uint64) (*Message, error) {
	var m Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND direction = ?", conversationID, DirectionInbound).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexusdesk/nexus-core/internal/commerce"
	"github.com/nexusdesk/nexus-core/internal/customer"
	"gorm.io/gorm"
)

// DetectLanguage applies the routing heuristic: any Arabic-script rune in the
// text selects "ar", otherwise the base language "en".
func DetectLanguage(text string) string {
	for _, r := range text {
		if r >= 0x0600 && r <= 0x06FF {
			return "ar"
		}
	}
	return "en"
}

// ContextBuilder assembles the bounded conversation summary injected into the
// model request. The output is opaque to the orchestrator.
type ContextBuilder struct {
	db        *gorm.DB
	msgs      *Repo
	customers *customer.Repo
	limit     int
}

func NewContextBuilder(db *gorm.DB, msgs *Repo, customers *customer.Repo, limit int) *ContextBuilder {
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	return &ContextBuilder{db: db, msgs: msgs, customers: customers, limit: limit}
}

// Language returns the detected language of the conversation's most recent
// inbound message.
func (b *ContextBuilder) Language(ctx context.Context, conversationID uint64) string {
	last, err := b.msgs.LastInbound(ctx, conversationID)
	if err != nil {
		return DetectLanguage("")
	}
	return DetectLanguage(last.Text)
}

func (b *ContextBuilder) Build(ctx context.Context, conv *Conversation) (string, error) {
	cust, err := b.customers.GetByID(ctx, conv.CustomerID)
	if err != nil {
		return "", err
	}
	language := b.Language(ctx, conv.ID)

	recent, err := b.msgs.ListRecent(ctx, conv.ID, b.limit)
	if err != nil {
		return "", err
	}

	var orders []commerce.Order
	if err := b.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", conv.TenantID, conv.CustomerID).
		Order("created_at DESC, id DESC").
		Limit(5).
		Find(&orders).Error; err != nil {
		return "", err
	}

	var tickets []commerce.Ticket
	if err := b.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", conv.TenantID, conv.CustomerID).
		Order("created_at DESC, id DESC").
		Limit(5).
		Find(&tickets).Error; err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Customer ID: %d\n", cust.ID)
	fmt.Fprintf(&sb, "Attributes: %v\n", cust.Attributes)
	fmt.Fprintf(&sb, "Language: %s\n", language)
	sb.WriteString("Recent messages:\n")
	for _, m := range recent {
		fmt.Fprintf(&sb, "- %s: %s\n", m.Direction, m.Text)
	}
	if len(orders) > 0 {
		sb.WriteString("Recent orders:\n")
		for _, o := range orders {
			fmt.Fprintf(&sb, "- %s %s %.2f %s\n", o.ExternalOrderID, o.Status, o.Total, o.Currency)
		}
	}
	if len(tickets) > 0 {
		sb.WriteString("Tickets:\n")
		for _, t := range tickets {
			fmt.Fprintf(&sb, "- %d %s %s\n", t.ID, t.Status, t.Summary)
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

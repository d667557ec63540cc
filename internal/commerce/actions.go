package commerce

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationLookup breaks the dependency on the conversation package; the
// conversation repo satisfies it.
type ConversationLookup interface {
	LookupConversation(ctx context.Context, id uint64) (customerID uint64, channel string, err error)
}

// Actions is the closed set of domain operations the tool gateway may invoke.
// Domain failures come back as {"error": ...} results, not Go errors; an error
// return means the storage layer itself failed.
type Actions struct {
	db     *gorm.DB
	tenant string
	convs  ConversationLookup
}

func NewActions(db *gorm.DB, tenant string, convs ConversationLookup) *Actions {
	return &Actions{db: db, tenant: tenant, convs: convs}
}

// WithTx rebinds the actions to a transaction handle so a tool invocation,
// its log row and its audit row commit together.
func (a *Actions) WithTx(tx *gorm.DB) *Actions {
	return &Actions{db: tx, tenant: a.tenant, convs: a.convs}
}

func (a *Actions) ListCustomerOrders(ctx context.Context, customerID uint64) (map[string]any, error) {
	var orders []Order
	err := a.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", a.tenant, customerID).
		Order("created_at DESC, id DESC").
		Limit(10).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		items = append(items, map[string]any{
			"id":                o.ID,
			"external_order_id": o.ExternalOrderID,
			"status":            o.Status,
			"total":             o.Total,
			"currency":          o.Currency,
			"source":            o.Source,
		})
	}
	return map[string]any{"orders": items}, nil
}

// RefundOrder queues a refund for downstream settlement; the order row itself
// is untouched here.
func (a *Actions) RefundOrder(ctx context.Context, orderID uint64, amount *float64) (map[string]any, error) {
	var order Order
	err := a.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", a.tenant, orderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return map[string]any{"error": "order_not_found"}, nil
	}
	if err != nil {
		return nil, err
	}
	result := map[string]any{"status": "queued", "order_id": order.ID}
	if amount != nil {
		result["amount"] = *amount
	}
	return result, nil
}

func (a *Actions) CreatePaymentIntent(ctx context.Context, customerID uint64, amount float64, currency string, orderID *uint64) (map[string]any, error) {
	if currency == "" {
		currency = "USD"
	}
	intent := PaymentIntent{
		TenantID:          a.tenant,
		CustomerID:        customerID,
		OrderID:           orderID,
		Amount:            amount,
		Currency:          currency,
		Status:            PaymentInitiated,
		ProviderReference: uuid.NewString(),
	}
	if err := a.db.WithContext(ctx).Create(&intent).Error; err != nil {
		return nil, err
	}
	return map[string]any{"payment_intent_id": intent.ID, "status": intent.Status}, nil
}

func (a *Actions) ScheduleFollowup(ctx context.Context, conversationID uint64, topic string) (map[string]any, error) {
	customerID, channel, err := a.convs.LookupConversation(ctx, conversationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return map[string]any{"error": "conversation_not_found"}, nil
	}
	if err != nil {
		return nil, err
	}
	task := FollowUpTask{
		TenantID:       a.tenant,
		CustomerID:     customerID,
		ConversationID: &conversationID,
		Topic:          topic,
		ScheduledFor:   time.Now().Add(24 * time.Hour),
		Status:         FollowUpPending,
		Channel:        channel,
	}
	if err := a.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, err
	}
	return map[string]any{"status": "scheduled", "conversation_id": conversationID, "topic": topic}, nil
}

func (a *Actions) UpdateOrderStatus(ctx context.Context, orderID uint64, status string) (map[string]any, error) {
	var order Order
	err := a.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", a.tenant, orderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return map[string]any{"error": "order_not_found"}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := a.db.WithContext(ctx).Model(&order).Update("status", status).Error; err != nil {
		return nil, err
	}
	return map[string]any{"order_id": order.ID, "status": status}, nil
}

// CapturePaymentIntent settles an initiated intent and records the capture
// transaction alongside it.
func (a *Actions) CapturePaymentIntent(ctx context.Context, paymentIntentID uint64) (map[string]any, error) {
	var intent PaymentIntent
	err := a.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", a.tenant, paymentIntentID).
		First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return map[string]any{"error": "payment_intent_not_found"}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := a.db.WithContext(ctx).Model(&intent).Update("status", PaymentSucceeded).Error; err != nil {
		return nil, err
	}
	txRow := Transaction{
		TenantID:        a.tenant,
		PaymentIntentID: intent.ID,
		TransactionType: "capture",
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		Status:          PaymentSucceeded,
	}
	if err := a.db.WithContext(ctx).Create(&txRow).Error; err != nil {
		return nil, err
	}
	return map[string]any{"payment_intent_id": intent.ID, "status": PaymentSucceeded}, nil
}

package toolgw

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/nexusdesk/nexus-core/internal/agent"
	"github.com/nexusdesk/nexus-core/internal/audit"
	"github.com/nexusdesk/nexus-core/internal/commerce"
	"github.com/nexusdesk/nexus-core/internal/llm"
)

// Tool is one of the closed set of domain actions the model may request. The
// registry is deliberately not extensible at runtime: dispatch is a switch
// over these identifiers so an unhandled tool is unrepresentable.
type Tool string

const (
	ToolListCustomerOrders   Tool = "list_customer_orders"
	ToolRefundOrder          Tool = "refund_order"
	ToolCreatePaymentIntent  Tool = "create_payment_intent"
	ToolScheduleFollowup     Tool = "schedule_followup"
	ToolUpdateOrderStatus    Tool = "update_order_status"
	ToolCapturePaymentIntent Tool = "capture_payment_intent"
)

// AllTools is the advertised registry, in the order the model is told about it.
var AllTools = []Tool{
	ToolListCustomerOrders,
	ToolRefundOrder,
	ToolCreatePaymentIntent,
	ToolScheduleFollowup,
	ToolUpdateOrderStatus,
	ToolCapturePaymentIntent,
}

func knownTool(name string) (Tool, bool) {
	for _, t := range AllTools {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}

// mutating tools are gated behind the explicit confirmed flag
func mutating(t Tool) bool {
	switch t {
	case ToolRefundOrder, ToolCreatePaymentIntent, ToolUpdateOrderStatus, ToolCapturePaymentIntent:
		return true
	}
	return false
}

const actor = "llm_orchestrator"

type Metrics interface {
	IncrToolCall(ctx context.Context, tool string, success bool)
}

// Gateway validates, confirms, executes and audits model-requested tool calls.
// The model is an untrusted caller: nothing it sends reaches a handler without
// passing the registry, allow-list, argument and confirmation checks.
type Gateway struct {
	db      *gorm.DB
	actions *commerce.Actions
	metrics Metrics
	tenant  string

	// dispatchFn defaults to dispatch; tests swap it to exercise handler
	// failure modes the real handlers cannot produce on demand.
	dispatchFn func(ctx context.Context, act *commerce.Actions, tool Tool, args map[string]any) (map[string]any, error)
}

func NewGateway(db *gorm.DB, actions *commerce.Actions, metrics Metrics, tenant string) *Gateway {
	g := &Gateway{db: db, actions: actions, metrics: metrics, tenant: tenant}
	g.dispatchFn = g.dispatch
	return g
}

func failed(result map[string]any) bool {
	_, hasErr := result["error"]
	return hasErr
}

// Execute runs one tool invocation through the full state machine and returns
// the result object. Validation rejections come back as {"error": ...} values;
// Execute never returns a Go error and never panics.
func (g *Gateway) Execute(ctx context.Context, profile *agent.AgentProfile, call llm.ToolCall, messageID *uint64) map[string]any {
	tool, ok := knownTool(call.Tool)
	if !ok {
		result := map[string]any{"error": "unknown_tool"}
		if err := g.logToolCall(ctx, g.db, call.Tool, call.Arguments, result, false, messageID); err != nil {
			log.Error().Err(err).Str("tool", call.Tool).Msg("record unknown tool call")
		}
		g.incr(ctx, call.Tool, false)
		return result
	}

	if profile != nil && !profile.ToolSchema.Allows(string(tool)) {
		// blocked before execution, intentionally unlogged
		g.incr(ctx, string(tool), false)
		return map[string]any{"error": "not_allowed"}
	}

	if missing := missingArgs(tool, call.Arguments); len(missing) > 0 {
		g.incr(ctx, string(tool), false)
		return map[string]any{"error": "missing_args", "missing": missing}
	}

	if mutating(tool) && !confirmed(call.Arguments) {
		g.incr(ctx, string(tool), false)
		return map[string]any{"error": "confirmation_required"}
	}

	if mutating(tool) && profile != nil && len(profile.ToolSchema.AllowedTools) == 0 {
		log.Warn().
			Str("tool", string(tool)).
			Uint64("agent_id", profile.ID).
			Msg("mutating tool executed under agent with no declared allow-list")
	}

	result := g.run(ctx, tool, call.Arguments, messageID)
	g.incr(ctx, string(tool), !failed(result))
	return result
}

// run executes the handler plus its log and audit rows in one transaction, so
// a partial failure never leaves an audit row without a log row or a mutation
// without either.
func (g *Gateway) run(ctx context.Context, tool Tool, args map[string]any, messageID *uint64) (result map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			log.Error().Str("tool", string(tool)).Str("panic", msg).Msg("tool handler panicked")
			failure := map[string]any{"error": msg}
			if err := g.logToolCall(ctx, g.db, string(tool), args, failure, false, messageID); err != nil {
				log.Error().Err(err).Str("tool", string(tool)).Msg("record panicked tool call")
			}
			result = map[string]any{"error": "tool_failed", "message": msg}
		}
	}()

	err := g.db.Transaction(func(tx *gorm.DB) error {
		var handlerErr error
		result, handlerErr = g.dispatchFn(ctx, g.actions.WithTx(tx), tool, args)
		if handlerErr != nil {
			return handlerErr
		}
		if err := g.logToolCall(ctx, tx, string(tool), args, result, !failed(result), messageID); err != nil {
			return err
		}
		if mutating(tool) {
			entry := &audit.AuditLog{
				TenantID:  g.tenant,
				EventType: string(tool),
				Actor:     actor,
				Target:    auditTarget(args),
				Payload:   map[string]any{"args": args, "result": result},
			}
			if err := audit.RecordAudit(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("tool", string(tool)).Msg("tool execution failed")
		failure := map[string]any{"error": err.Error()}
		if logErr := g.logToolCall(ctx, g.db, string(tool), args, failure, false, messageID); logErr != nil {
			log.Error().Err(logErr).Str("tool", string(tool)).Msg("record failed tool call")
		}
		return map[string]any{"error": "tool_failed", "message": err.Error()}
	}
	return result
}

func (g *Gateway) dispatch(ctx context.Context, act *commerce.Actions, tool Tool, args map[string]any) (map[string]any, error) {
	switch tool {
	case ToolListCustomerOrders:
		id, _ := argUint64(args, "customer_id")
		return act.ListCustomerOrders(ctx, id)
	case ToolRefundOrder:
		orderID, _ := argUint64(args, "order_id")
		var amount *float64
		if v, ok := argFloat(args, "amount"); ok {
			amount = &v
		}
		return act.RefundOrder(ctx, orderID, amount)
	case ToolCreatePaymentIntent:
		customerID, _ := argUint64(args, "customer_id")
		amount, _ := argFloat(args, "amount")
		currency, _ := argString(args, "currency")
		var orderID *uint64
		if v, ok := argUint64(args, "order_id"); ok {
			orderID = &v
		}
		return act.CreatePaymentIntent(ctx, customerID, amount, currency, orderID)
	case ToolScheduleFollowup:
		convID, _ := argUint64(args, "conversation_id")
		topic, _ := argString(args, "topic")
		return act.ScheduleFollowup(ctx, convID, topic)
	case ToolUpdateOrderStatus:
		orderID, _ := argUint64(args, "order_id")
		status, _ := argString(args, "status")
		return act.UpdateOrderStatus(ctx, orderID, status)
	case ToolCapturePaymentIntent:
		intentID, _ := argUint64(args, "payment_intent_id")
		return act.CapturePaymentIntent(ctx, intentID)
	}
	// unreachable: knownTool gates dispatch
	return map[string]any{"error": "unknown_tool"}, nil
}

func (g *Gateway) logToolCall(ctx context.Context, tx *gorm.DB, tool string, args, result map[string]any, success bool, messageID *uint64) error {
	return audit.RecordToolCall(ctx, tx, &audit.ToolCallLog{
		TenantID:  g.tenant,
		ToolName:  tool,
		Arguments: args,
		Result:    result,
		Success:   success,
		MessageID: messageID,
	})
}

func (g *Gateway) incr(ctx context.Context, tool string, success bool) {
	if g.metrics != nil {
		g.metrics.IncrToolCall(ctx, tool, success)
	}
}

func missingArgs(tool Tool, args map[string]any) []string {
	var required []string
	switch tool {
	case ToolRefundOrder, ToolCreatePaymentIntent:
		required = []string{"customer_id"}
	}
	var missing []string
	for _, name := range required {
		if v, ok := argUint64(args, name); !ok || v == 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

func confirmed(args map[string]any) bool {
	switch v := args["confirmed"].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

func auditTarget(args map[string]any) string {
	for _, key := range []string{"order_id", "payment_intent_id", "customer_id", "conversation_id"} {
		if v, ok := argUint64(args, key); ok && v > 0 {
			return strconv.FormatUint(v, 10)
		}
	}
	return ""
}

// JSON numbers decode as float64; operators occasionally paste ids as strings.
func argUint64(args map[string]any, key string) (uint64, bool) {
	switch v := args[key].(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case uint64:
		return v, true
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func argFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func argString(args map[string]any, key string) (string, bool) {
	s, ok := args[key].(string)
	return s, ok
}

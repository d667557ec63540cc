package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/nexusdesk/nexus-core/internal/agent"
	"github.com/nexusdesk/nexus-core/internal/audit"
	"github.com/nexusdesk/nexus-core/internal/channel"
	"github.com/nexusdesk/nexus-core/internal/commerce"
	"github.com/nexusdesk/nexus-core/internal/customer"
	"github.com/nexusdesk/nexus-core/internal/llm"
	"github.com/nexusdesk/nexus-core/internal/secrets"
	"github.com/nexusdesk/nexus-core/internal/toolgw"
)

const testTenant = "default"

type recordingModel struct {
	output string
	err    error
	calls  []llm.InferRequest
}

func (m *recordingModel) Infer(ctx context.Context, req llm.InferRequest) (string, error) {
	_ = ctx
	m.calls = append(m.calls, req)
	if m.err != nil {
		return "", m.err
	}
	return m.output, nil
}

type recordingSender struct {
	sent   bool
	reason string
	calls  []struct{ to, body string }
}

func (s *recordingSender) SendText(ctx context.Context, to, body string) channel.SendResult {
	_ = ctx
	s.calls = append(s.calls, struct{ to, body string }{to, body})
	return channel.SendResult{Sent: s.sent, Reason: s.reason, StatusCode: 200}
}

type recordingPublisher struct {
	tasks []struct {
		name string
		args map[string]any
	}
}

func (p *recordingPublisher) PublishTask(ctx context.Context, name string, args map[string]any) (string, error) {
	_ = ctx
	p.tasks = append(p.tasks, struct {
		name string
		args map[string]any
	}{name, args})
	return "task-1", nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&customer.Customer{}, &customer.CustomerIdentity{},
		&Conversation{}, &Message{},
		&agent.AgentProfile{}, &agent.AgentPromptVersion{},
		&commerce.Order{}, &commerce.PaymentIntent{}, &commerce.Transaction{},
		&commerce.FollowUpTask{}, &commerce.Ticket{},
		&audit.ToolCallLog{}, &audit.AuditLog{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fixture struct {
	db     *gorm.DB
	orch   *Orchestrator
	model  *recordingModel
	sender *recordingSender
	pub    *recordingPublisher
	convs  *Repo
}

func newFixture(t *testing.T, model *recordingModel) *fixture {
	t.Helper()
	db := openTestDB(t)

	sealer, err := secrets.NewSealer("")
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	custRepo := customer.NewRepo(db)
	custSvc := customer.NewService(custRepo, sealer)
	convs := NewRepo(db)
	agentRepo := agent.NewRepo(db)
	router := agent.NewRouter(agentRepo)
	contexts := NewContextBuilder(db, convs, custRepo, 5)

	actions := commerce.NewActions(db, testTenant, convs)
	gateway := toolgw.NewGateway(db, actions, nil, testTenant)

	sender := &recordingSender{sent: true}
	pub := &recordingPublisher{}

	orch := NewOrchestrator(
		testTenant, custSvc, convs, router, contexts, model, gateway,
		map[string]channel.Sender{channel.WhatsApp: sender}, pub,
	)
	return &fixture{db: db, orch: orch, model: model, sender: sender, pub: pub, convs: convs}
}

func inbound(externalMsgID, text string) channel.Normalized {
	return channel.Normalized{
		Channel:           channel.WhatsApp,
		ExternalID:        "15550001",
		ExternalMessageID: externalMsgID,
		MessageType:       TypeText,
		Text:              text,
	}
}

func TestHandleNormalized_FirstContactFullTurn(t *testing.T) {
	f := newFixture(t, &recordingModel{output: "Hello! How can I help?"})

	if err := f.orch.HandleNormalized(context.Background(), inbound("wamid.001", "hi")); err != nil {
		t.Fatalf("handle normalized: %v", err)
	}

	// one customer with one identity
	var customers []customer.Customer
	if err := f.db.Find(&customers).Error; err != nil {
		t.Fatalf("query customers: %v", err)
	}
	if len(customers) != 1 {
		t.Fatalf("expected 1 customer, got %d", len(customers))
	}
	var idents []customer.CustomerIdentity
	if err := f.db.Find(&idents).Error; err != nil {
		t.Fatalf("query identities: %v", err)
	}
	if len(idents) != 1 || idents[0].ExternalID != "15550001" || idents[0].Channel != channel.WhatsApp {
		t.Fatalf("unexpected identity: %+v", idents)
	}

	// one open conversation with the default agent assigned
	var convs []Conversation
	if err := f.db.Find(&convs).Error; err != nil {
		t.Fatalf("query conversations: %v", err)
	}
	if len(convs) != 1 || convs[0].Status != StatusOpen {
		t.Fatalf("expected 1 open conversation, got %+v", convs)
	}
	if convs[0].AgentID == nil {
		t.Fatalf("expected agent assigned to conversation")
	}
	var profile agent.AgentProfile
	if err := f.db.First(&profile, *convs[0].AgentID).Error; err != nil {
		t.Fatalf("load agent: %v", err)
	}
	if profile.Slug != agent.DefaultSlug {
		t.Fatalf("expected default agent, got %q", profile.Slug)
	}

	// inbound + outbound rows
	var msgs []Message
	if err := f.db.Order("id ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Direction != DirectionInbound || msgs[0].Text != "hi" {
		t.Fatalf("unexpected inbound row: %+v", msgs[0])
	}
	if msgs[1].Direction != DirectionOutbound || msgs[1].Text != "Hello! How can I help?" {
		t.Fatalf("unexpected outbound row: %+v", msgs[1])
	}
	if msgs[1].LLMMetadata["model"] != profile.ModelName {
		t.Fatalf("outbound missing model metadata: %v", msgs[1].LLMMetadata)
	}

	if len(f.model.calls) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(f.model.calls))
	}
	req := f.model.calls[0]
	if req.Model != profile.ModelName || req.Backend != profile.ModelBackend {
		t.Fatalf("model call used wrong profile: %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[1].Content != "hi" {
		t.Fatalf("unexpected prompt: %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[0].Content, "Customer ID:") {
		t.Fatalf("system prompt missing context: %q", req.Messages[0].Content)
	}

	if len(f.sender.calls) != 1 || f.sender.calls[0].to != "15550001" {
		t.Fatalf("expected 1 send to customer, got %+v", f.sender.calls)
	}

	// successful whatsapp send schedules voice synthesis
	foundTTS := false
	for _, task := range f.pub.tasks {
		if task.name == taskGenerateTTS {
			foundTTS = true
		}
	}
	if !foundTTS {
		t.Fatalf("expected generate_tts task, got %+v", f.pub.tasks)
	}
}

func TestHandleNormalized_DuplicateDeliveryIsNoOp(t *testing.T) {
	f := newFixture(t, &recordingModel{output: "reply"})

	msg := inbound("wamid.dup", "hello")
	if err := f.orch.HandleNormalized(context.Background(), msg); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := f.orch.HandleNormalized(context.Background(), msg); err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}

	var count int64
	if err := f.db.Model(&Message{}).Where("direction = ?", DirectionInbound).Count(&count).Error; err != nil {
		t.Fatalf("count inbound: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 inbound row, got %d", count)
	}
	if len(f.model.calls) != 1 {
		t.Fatalf("duplicate must not re-trigger the model, got %d calls", len(f.model.calls))
	}
	if len(f.sender.calls) != 1 {
		t.Fatalf("duplicate must not re-send, got %d sends", len(f.sender.calls))
	}
}

func TestHandleNormalized_SecondMessageReusesConversation(t *testing.T) {
	f := newFixture(t, &recordingModel{output: "reply"})

	if err := f.orch.HandleNormalized(context.Background(), inbound("wamid.a", "first")); err != nil {
		t.Fatalf("first message: %v", err)
	}
	if err := f.orch.HandleNormalized(context.Background(), inbound("wamid.b", "second")); err != nil {
		t.Fatalf("second message: %v", err)
	}

	var convCount int64
	if err := f.db.Model(&Conversation{}).Count(&convCount).Error; err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if convCount != 1 {
		t.Fatalf("expected 1 conversation, got %d", convCount)
	}
	var custCount int64
	if err := f.db.Model(&customer.Customer{}).Count(&custCount).Error; err != nil {
		t.Fatalf("count customers: %v", err)
	}
	if custCount != 1 {
		t.Fatalf("expected 1 customer, got %d", custCount)
	}
}

func TestHandleNormalized_ModelFailureProducesNoOutbound(t *testing.T) {
	f := newFixture(t, &recordingModel{err: errors.New("router timeout")})

	if err := f.orch.HandleNormalized(context.Background(), inbound("wamid.fail", "hi")); err != nil {
		t.Fatalf("handle normalized: %v", err)
	}

	var msgs []Message
	if err := f.db.Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Direction != DirectionInbound {
		t.Fatalf("model failure must leave only the inbound row, got %+v", msgs)
	}
	if len(f.sender.calls) != 0 {
		t.Fatalf("model failure must not send, got %+v", f.sender.calls)
	}
	var logCount int64
	if err := f.db.Model(&audit.ToolCallLog{}).Count(&logCount).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if logCount != 0 {
		t.Fatalf("model failure must not log tool calls, got %d", logCount)
	}
}

func TestHandleNormalized_EmptyModelOutputSkipsSend(t *testing.T) {
	f := newFixture(t, &recordingModel{output: ""})

	if err := f.orch.HandleNormalized(context.Background(), inbound("wamid.empty", "hi")); err != nil {
		t.Fatalf("handle normalized: %v", err)
	}
	if len(f.sender.calls) != 0 {
		t.Fatalf("empty output must not send, got %+v", f.sender.calls)
	}
}

func TestHandleNormalized_RefundWithoutConfirmation(t *testing.T) {
	f := newFixture(t, &recordingModel{
		output: `{"tool":"refund_order","arguments":{"customer_id":1,"order_id":5}}`,
	})

	if err := f.orch.HandleNormalized(context.Background(), inbound("wamid.refund1", "refund my order")); err != nil {
		t.Fatalf("handle normalized: %v", err)
	}

	var msgs []Message
	if err := f.db.Where("direction = ?", DirectionOutbound).Find(&msgs).Error; err != nil {
		t.Fatalf("query outbound: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 outbound row, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "confirmation_required") {
		t.Fatalf("expected confirmation_required in reply, got %q", msgs[0].Text)
	}

	var logCount int64
	if err := f.db.Model(&audit.ToolCallLog{}).Count(&logCount).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	if logCount != 0 {
		t.Fatalf("gated refund must not be logged, got %d rows", logCount)
	}
	var auditCount int64
	if err := f.db.Model(&audit.AuditLog{}).Count(&auditCount).Error; err != nil {
		t.Fatalf("count audit: %v", err)
	}
	if auditCount != 0 {
		t.Fatalf("gated refund must not be audited, got %d rows", auditCount)
	}
}

func TestHandleNormalized_RefundConfirmedExecutesAndAudits(t *testing.T) {
	model := &recordingModel{
		output: `{"tool":"refund_order","arguments":{"customer_id":1,"order_id":1,"confirmed":true},"final_answer":"Refund queued."}`,
	}
	f := newFixture(t, model)

	if err := f.db.Create(&commerce.Order{TenantID: testTenant, CustomerID: 1, Status: "paid", Total: 30}).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	if err := f.orch.HandleNormalized(context.Background(), inbound("wamid.refund2", "yes, refund it")); err != nil {
		t.Fatalf("handle normalized: %v", err)
	}

	var msgs []Message
	if err := f.db.Where("direction = ?", DirectionOutbound).Find(&msgs).Error; err != nil {
		t.Fatalf("query outbound: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "Refund queued." {
		t.Fatalf("expected final answer reply, got %+v", msgs)
	}

	var logs []audit.ToolCallLog
	if err := f.db.Find(&logs).Error; err != nil {
		t.Fatalf("query logs: %v", err)
	}
	if len(logs) != 1 || !logs[0].Success || logs[0].ToolName != "refund_order" {
		t.Fatalf("expected 1 successful refund log, got %+v", logs)
	}
	if logs[0].MessageID == nil {
		t.Fatalf("tool call log not linked to inbound message")
	}

	var audits []audit.AuditLog
	if err := f.db.Find(&audits).Error; err != nil {
		t.Fatalf("query audit: %v", err)
	}
	if len(audits) != 1 || audits[0].EventType != "refund_order" {
		t.Fatalf("expected 1 refund audit row, got %+v", audits)
	}
}

func TestHandleNormalized_WebChannelDoesNotAutoReply(t *testing.T) {
	f := newFixture(t, &recordingModel{output: "reply"})

	if err := f.orch.HandleNormalized(context.Background(), channel.Normalized{
		Channel:    channel.Web,
		ExternalID: "web-user-1",
		Text:       "hi",
	}); err != nil {
		t.Fatalf("handle normalized: %v", err)
	}
	if len(f.model.calls) != 0 {
		t.Fatalf("web channel must not auto-reply, got %d model calls", len(f.model.calls))
	}
}

func TestHandleNormalized_SchedulesMediaDownloads(t *testing.T) {
	f := newFixture(t, &recordingModel{output: "reply"})

	n := inbound("wamid.media", "")
	n.MessageType = TypeVoice
	n.Attachments = []map[string]any{
		{"type": "voice", "id": "media-123", "mime_type": "audio/ogg"},
	}
	if err := f.orch.HandleNormalized(context.Background(), n); err != nil {
		t.Fatalf("handle normalized: %v", err)
	}

	if len(f.pub.tasks) != 1 || f.pub.tasks[0].name != taskDownloadMedia {
		t.Fatalf("expected 1 download_media task, got %+v", f.pub.tasks)
	}
	if f.pub.tasks[0].args["media_id"] != "media-123" {
		t.Fatalf("task missing media id: %+v", f.pub.tasks[0].args)
	}
	// no text, so no model turn
	if len(f.model.calls) != 0 {
		t.Fatalf("voice note without text must not trigger the model")
	}
}

func TestSendOutbound_PersistsBeforeDelivery(t *testing.T) {
	f := newFixture(t, &recordingModel{output: "unused"})
	f.sender.sent = false
	f.sender.reason = "missing_credentials"

	conv, msg, err := f.orch.SendOutbound(context.Background(), channel.WhatsApp, "15550002", "your order shipped")
	if err != nil {
		t.Fatalf("send outbound: %v", err)
	}
	if conv == nil || conv.Status != StatusOpen {
		t.Fatalf("expected open conversation, got %+v", conv)
	}

	var fresh Message
	if err := f.db.First(&fresh, msg.ID).Error; err != nil {
		t.Fatalf("outbound row must persist even when delivery fails: %v", err)
	}
	sendResult, _ := fresh.RawPayload["send_result"].(map[string]any)
	if sendResult == nil {
		t.Fatalf("send result not recorded: %v", fresh.RawPayload)
	}
	if sent, _ := sendResult["sent"].(bool); sent {
		t.Fatalf("expected sent=false, got %v", sendResult)
	}
	// failed delivery must not schedule speech synthesis
	for _, task := range f.pub.tasks {
		if task.name == taskGenerateTTS {
			t.Fatalf("failed send must not schedule tts")
		}
	}
}

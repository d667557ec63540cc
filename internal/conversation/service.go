package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/nexusdesk/nexus-core/internal/agent"
	"github.com/nexusdesk/nexus-core/internal/channel"
	"github.com/nexusdesk/nexus-core/internal/customer"
	"github.com/nexusdesk/nexus-core/internal/llm"
	"github.com/nexusdesk/nexus-core/internal/toolgw"
)

// ToolGateway executes a parsed tool call and returns its result object.
type ToolGateway interface {
	Execute(ctx context.Context, profile *agent.AgentProfile, call llm.ToolCall, messageID *uint64) map[string]any
}

// TaskPublisher submits fire-and-forget async work and returns a task handle.
type TaskPublisher interface {
	PublishTask(ctx context.Context, name string, args map[string]any) (string, error)
}

const (
	taskDownloadMedia = "download_media"
	taskGenerateTTS   = "generate_tts"
)

// Orchestrator drives one inbound turn end to end: dedup, identity,
// conversation, routing, model call, optional tool execution, outbound send.
type Orchestrator struct {
	tenant    string
	customers *customer.Service
	convs     *Repo
	router    *agent.Router
	contexts  *ContextBuilder
	model     llm.Client
	gateway   ToolGateway
	senders   map[string]channel.Sender
	tasks     TaskPublisher
}

func NewOrchestrator(
	tenant string,
	customers *customer.Service,
	convs *Repo,
	router *agent.Router,
	contexts *ContextBuilder,
	model llm.Client,
	gateway ToolGateway,
	senders map[string]channel.Sender,
	tasks TaskPublisher,
) *Orchestrator {
	if senders == nil {
		senders = map[string]channel.Sender{}
	}
	return &Orchestrator{
		tenant:    tenant,
		customers: customers,
		convs:     convs,
		router:    router,
		contexts:  contexts,
		model:     model,
		gateway:   gateway,
		senders:   senders,
		tasks:     tasks,
	}
}

// HandleNormalized is the orchestrator entry point for one normalized inbound
// message. Duplicate deliveries are idempotent no-ops, never errors.
func (o *Orchestrator) HandleNormalized(ctx context.Context, n channel.Normalized) error {
	ch := n.Channel
	if ch == "" {
		ch = channel.Web
	}
	externalID := n.ExternalID
	if externalID == "" {
		externalID = "unknown"
	}

	cust, err := o.customers.ResolveOrCreate(ctx, o.tenant, ch, externalID)
	if err != nil {
		return err
	}

	conv, _, err := o.convs.GetOrCreateOpen(ctx, o.tenant, cust.ID, ch, "webhook")
	if err != nil {
		return err
	}

	msgType := n.MessageType
	if msgType == "" {
		msgType = TypeText
	}
	msg := &Message{
		ConversationID: conv.ID,
		Direction:      DirectionInbound,
		MessageType:    msgType,
		Text:           n.Text,
		Attachments:    n.Attachments,
		RawPayload:     n.RawPayload,
	}
	if n.ExternalMessageID != "" {
		id := n.ExternalMessageID
		msg.ExternalMessageID = &id
	}
	created, err := o.convs.InsertInboundOrSkip(ctx, msg)
	if err != nil {
		return err
	}
	if !created {
		log.Info().Str("external_message_id", n.ExternalMessageID).Msg("duplicate message ignored")
		return nil
	}

	log.Info().
		Str("channel", ch).
		Uint64("customer_id", cust.ID).
		Uint64("conversation_id", conv.ID).
		Msg("accepted normalized message")

	o.scheduleMediaDownloads(ctx, msg)

	if ch == channel.WhatsApp && n.Text != "" {
		o.OrchestrateReply(ctx, conv, externalID, n.Text, msg.ID)
	}
	return nil
}

func (o *Orchestrator) scheduleMediaDownloads(ctx context.Context, msg *Message) {
	if o.tasks == nil {
		return
	}
	for _, att := range msg.Attachments {
		mediaID, _ := att["id"].(string)
		if mediaID == "" {
			continue
		}
		mimeType, _ := att["mime_type"].(string)
		handle, err := o.tasks.PublishTask(ctx, taskDownloadMedia, map[string]any{
			"media_id":   mediaID,
			"mime_type":  mimeType,
			"message_id": msg.ID,
		})
		if err != nil {
			log.Error().Err(err).Str("media_id", mediaID).Msg("schedule media download failed")
			continue
		}
		log.Info().Str("task_id", handle).Str("media_id", mediaID).Msg("scheduled media download")
	}
}

// OrchestrateReply runs the model turn for one inbound message and dispatches
// the reply. A failed or empty model call produces no outbound message.
func (o *Orchestrator) OrchestrateReply(ctx context.Context, conv *Conversation, externalID, inboundText string, inboundMsgID uint64) {
	profile, err := o.router.Select(ctx, o.tenant, conv.Channel, o.contexts.Language(ctx, conv.ID))
	if err != nil || profile == nil {
		log.Warn().Err(err).Msg("no active agent available, skipping reply")
		return
	}
	if conv.AgentID == nil || *conv.AgentID != profile.ID {
		if err := o.convs.SetAgent(ctx, conv.ID, profile.ID); err != nil {
			log.Warn().Err(err).Uint64("conversation_id", conv.ID).Msg("persist selected agent failed")
		}
	}

	contextText, err := o.contexts.Build(ctx, conv)
	if err != nil {
		log.Error().Err(err).Uint64("conversation_id", conv.ID).Msg("context build failed, skipping reply")
		return
	}

	output, err := o.model.Infer(ctx, llm.InferRequest{
		Backend:     profile.ModelBackend,
		Model:       profile.ModelName,
		Messages:    buildPrompt(profile.SystemPrompt, contextText, inboundText),
		Temperature: profile.Temperature,
		MaxTokens:   profile.MaxTokens,
	})
	if err != nil {
		log.Error().Err(err).Msg("model call failed, skipping outbound send")
		return
	}
	if output == "" {
		log.Warn().Msg("model returned empty output, skipping outbound send")
		return
	}

	finalText := output
	var toolResultText string
	if call, ok := llm.ParseToolCall(output); ok {
		result := o.gateway.Execute(ctx, profile, *call, &inboundMsgID)
		toolResultText = formatToolResult(call.Tool, result)
		if call.FinalAnswer != "" {
			finalText = call.FinalAnswer
		} else {
			finalText = toolResultText
		}
	}

	rawPayload := map[string]any{"llm_output": output}
	if toolResultText != "" {
		rawPayload["tool_result"] = toolResultText
	}
	outbound := &Message{
		ConversationID: conv.ID,
		Direction:      DirectionOutbound,
		MessageType:    TypeText,
		Text:           finalText,
		LLMMetadata:    map[string]any{"agent_id": profile.ID, "model": profile.ModelName},
		RawPayload:     rawPayload,
	}
	if err := o.convs.InsertMessage(ctx, outbound); err != nil {
		log.Error().Err(err).Msg("persist outbound message failed")
		return
	}

	o.deliver(ctx, conv.Channel, externalID, outbound)
	log.Info().
		Uint64("message_id", outbound.ID).
		Uint64("conversation_id", conv.ID).
		Msg("sent outbound reply")
}

// SendOutbound is the dispatcher used by the outbound API: it resolves the
// destination conversation, persists the message before any delivery attempt,
// then sends.
func (o *Orchestrator) SendOutbound(ctx context.Context, ch, externalID, text string) (*Conversation, *Message, error) {
	cust, err := o.customers.ResolveOrCreate(ctx, o.tenant, ch, externalID)
	if err != nil {
		return nil, nil, err
	}
	conv, _, err := o.convs.GetOrCreateOpen(ctx, o.tenant, cust.ID, ch, "outbound")
	if err != nil {
		return nil, nil, err
	}

	msg := &Message{
		ConversationID: conv.ID,
		Direction:      DirectionOutbound,
		MessageType:    TypeText,
		Text:           text,
		RawPayload:     map[string]any{"text": text},
	}
	if err := o.convs.InsertMessage(ctx, msg); err != nil {
		return nil, nil, err
	}

	o.deliver(ctx, ch, externalID, msg)
	return conv, msg, nil
}

// deliver hands the persisted outbound message to the channel sender and
// records the outcome. Speech synthesis is fire-and-forget: its failure never
// touches the already-sent text reply.
func (o *Orchestrator) deliver(ctx context.Context, ch, externalID string, msg *Message) {
	sender, ok := o.senders[ch]
	if !ok {
		return
	}
	result := sender.SendText(ctx, externalID, msg.Text)

	payload := msg.RawPayload
	if payload == nil {
		payload = map[string]any{}
	}
	payload["send_result"] = map[string]any{
		"sent":        result.Sent,
		"status_code": result.StatusCode,
		"response":    result.Response,
		"reason":      result.Reason,
	}
	msg.RawPayload = payload
	if err := o.convs.UpdateRawPayload(ctx, msg.ID, payload); err != nil {
		log.Warn().Err(err).Uint64("message_id", msg.ID).Msg("record send result failed")
	}

	if result.Sent && channel.VoiceCapable(ch) && o.tasks != nil {
		if _, err := o.tasks.PublishTask(ctx, taskGenerateTTS, map[string]any{
			"text":       msg.Text,
			"message_id": msg.ID,
		}); err != nil {
			log.Error().Err(err).Uint64("message_id", msg.ID).Msg("schedule tts failed")
		}
	}
}

func buildPrompt(systemPrompt, contextText, userText string) []llm.Message {
	names := make([]string, 0, len(toolgw.AllTools))
	for _, t := range toolgw.AllTools {
		names = append(names, string(t))
	}
	system := fmt.Sprintf(
		"%s\n\nContext:\n%s\n\nIf you need to use a tool, respond as JSON: "+
			`{"tool":"<name>","arguments":{...},"final_answer":"<text>"}. Tools available: %s.`,
		systemPrompt, contextText, strings.Join(names, ", "),
	)
	return []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: userText},
	}
}

func formatToolResult(tool string, result map[string]any) string {
	if result["error"] == "not_allowed" {
		return fmt.Sprintf("Tool %s is not allowed.", tool)
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("Tool %s result: %v", tool, result)
	}
	return fmt.Sprintf("Tool %s result: %s", tool, b)
}

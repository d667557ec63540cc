package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/nexusdesk/nexus-core/internal/channel"
	"github.com/nexusdesk/nexus-core/internal/conversation"
	"github.com/nexusdesk/nexus-core/internal/speech"
	"github.com/nexusdesk/nexus-core/internal/store/rabbitmq"
)

// Handler executes queued media/speech tasks. The queue is at-least-once, so
// every handler checks whether its effect is already present before doing
// work again.
type Handler struct {
	msgs  *conversation.Repo
	media *channel.MediaClient
	asr   *speech.ASRClient
	tts   *speech.TTSClient
	pub   *rabbitmq.Publisher
}

func NewHandler(msgs *conversation.Repo, media *channel.MediaClient, asr *speech.ASRClient, tts *speech.TTSClient, pub *rabbitmq.Publisher) *Handler {
	return &Handler{msgs: msgs, media: media, asr: asr, tts: tts, pub: pub}
}

func (h *Handler) Handle(ctx context.Context, tm rabbitmq.TaskMessage) error {
	switch tm.Name {
	case rabbitmq.TaskDownloadMedia:
		return h.downloadMedia(ctx, tm.Args)
	case rabbitmq.TaskTranscribeVoice:
		return h.transcribeVoice(ctx, tm.Args)
	case rabbitmq.TaskGenerateTTS:
		return h.generateTTS(ctx, tm.Args)
	}
	return fmt.Errorf("tasks: unknown task %q", tm.Name)
}

func argUint64(args map[string]any, key string) uint64 {
	switch v := args[key].(type) {
	case float64:
		return uint64(v)
	case uint64:
		return v
	case int:
		return uint64(v)
	}
	return 0
}

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func (h *Handler) downloadMedia(ctx context.Context, args map[string]any) error {
	mediaID := argString(args, "media_id")
	mimeType := argString(args, "mime_type")
	messageID := argUint64(args, "message_id")
	if mediaID == "" {
		return fmt.Errorf("tasks: download_media without media_id")
	}

	path, err := h.media.Download(ctx, mediaID, mimeType)
	if err != nil {
		return err
	}
	log.Info().Str("media_id", mediaID).Str("path", path).Msg("media downloaded")

	if strings.Contains(mimeType, "audio") || strings.Contains(mimeType, "voice") {
		if _, err := h.pub.PublishTask(ctx, rabbitmq.TaskTranscribeVoice, map[string]any{
			"file_path":  path,
			"message_id": messageID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) transcribeVoice(ctx context.Context, args map[string]any) error {
	filePath := argString(args, "file_path")
	messageID := argUint64(args, "message_id")

	msg, err := h.msgs.GetMessage(ctx, messageID)
	if err != nil {
		log.Warn().Uint64("message_id", messageID).Msg("message not found for transcription")
		return nil
	}
	if msg.Text != "" {
		// already transcribed by an earlier delivery
		return nil
	}

	transcript, err := h.asr.Transcribe(ctx, filePath)
	if err != nil {
		return err
	}
	if transcript == "" {
		return nil
	}
	return h.msgs.UpdateMessageText(ctx, messageID, transcript)
}

func (h *Handler) generateTTS(ctx context.Context, args map[string]any) error {
	text := argString(args, "text")
	messageID := argUint64(args, "message_id")

	msg, err := h.msgs.GetMessage(ctx, messageID)
	if err != nil {
		log.Warn().Uint64("message_id", messageID).Msg("message not found for tts attach")
		return nil
	}
	for _, att := range msg.Attachments {
		if att["type"] == "audio" {
			// redelivery after a completed synthesis
			return nil
		}
	}

	audioPath, err := h.tts.Synthesize(ctx, text)
	if err != nil {
		return err
	}

	attachment := map[string]any{"type": "audio", "path": audioPath}
	if mediaID, upErr := h.media.Upload(ctx, audioPath); upErr == nil && mediaID != "" {
		attachment["whatsapp_media_id"] = mediaID
	} else if upErr != nil {
		log.Warn().Err(upErr).Uint64("message_id", messageID).Msg("media upload failed")
	}

	attachments := append(msg.Attachments, attachment)
	if err := h.msgs.UpdateMessageAttachments(ctx, messageID, attachments); err != nil {
		return err
	}
	log.Info().Uint64("message_id", messageID).Str("path", audioPath).Msg("attached tts audio")
	return nil
}

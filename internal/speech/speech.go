package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ASRClient transcribes recorded audio through a remote speech-to-text
// service. The engine itself is opaque; only the HTTP contract matters here.
type ASRClient struct {
	BaseURL string
	Client  *http.Client
}

func NewASRClient(baseURL string) *ASRClient {
	return &ASRClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *ASRClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/asr/transcribe", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("asr: status %d", resp.StatusCode)
	}
	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	return decoded.Text, nil
}

// TTSClient synthesizes speech through a remote text-to-speech service and
// stores the audio under MediaRoot.
type TTSClient struct {
	BaseURL   string
	Voice     string
	MediaRoot string
	Client    *http.Client
}

func NewTTSClient(baseURL, voice, mediaRoot string) *TTSClient {
	return &TTSClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Voice:     voice,
		MediaRoot: mediaRoot,
		Client:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *TTSClient) Synthesize(ctx context.Context, text string) (string, error) {
	payload := map[string]any{"text": text}
	if c.Voice != "" {
		payload["voice"] = c.Voice
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/tts/synthesize", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("tts: status %d", resp.StatusCode)
	}

	dir := filepath.Join(c.MediaRoot, "tts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, uuid.NewString()+".ogg")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	return path, nil
}

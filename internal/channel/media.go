package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MediaClient downloads and uploads WhatsApp media objects.
type MediaClient struct {
	APIBase       string
	Token         string
	PhoneNumberID string
	MediaRoot     string
	Client        *http.Client
}

func NewMediaClient(apiBase, token, phoneNumberID, mediaRoot string) *MediaClient {
	return &MediaClient{
		APIBase:       strings.TrimRight(apiBase, "/"),
		Token:         token,
		PhoneNumberID: phoneNumberID,
		MediaRoot:     mediaRoot,
		Client:        &http.Client{Timeout: 30 * time.Second},
	}
}

func (m *MediaClient) authorized(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+m.Token)
	return req
}

func (m *MediaClient) mediaURL(ctx context.Context, mediaID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.APIBase+"/"+mediaID, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.Client.Do(m.authorized(req))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("media info %s: status %d", mediaID, resp.StatusCode)
	}
	var decoded struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.URL == "" {
		return "", errors.New("media info: no url returned")
	}
	return decoded.URL, nil
}

// Download fetches a media object into MediaRoot and returns the local path.
// Repeated downloads of the same media id overwrite the same file, keeping the
// task handler idempotent under queue redelivery.
func (m *MediaClient) Download(ctx context.Context, mediaID, mimeType string) (string, error) {
	if m.Token == "" {
		return "", errors.New("media: token not configured")
	}
	url, err := m.mediaURL(ctx, mediaID)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.Client.Do(m.authorized(req))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("media download %s: status %d", mediaID, resp.StatusCode)
	}

	ext := "bin"
	if i := strings.LastIndex(mimeType, "/"); i >= 0 && i+1 < len(mimeType) {
		ext = mimeType[i+1:]
		if j := strings.Index(ext, ";"); j >= 0 {
			ext = ext[:j]
		}
	}
	dir := filepath.Join(m.MediaRoot, "whatsapp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, mediaID+"."+ext)
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

// Upload pushes a local audio file to the media endpoint and returns the
// assigned media id.
func (m *MediaClient) Upload(ctx context.Context, path string) (string, error) {
	if m.Token == "" || m.PhoneNumberID == "" {
		return "", errors.New("media: credentials not configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	url := m.APIBase + "/" + m.PhoneNumberID + "/media"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := m.Client.Do(m.authorized(req))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("media upload: status %d", resp.StatusCode)
	}
	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	return decoded.ID, nil
}

package media

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotConfigured is returned when upload credentials are missing.
var ErrNotConfigured = errors.New("media uploads are not configured")

// Config holds Cloudinary upload credentials.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Uploader pushes image and voice-note attachments to Cloudinary via its
// signed upload API and returns the public URL for the message's media_ref.
type Uploader struct {
	cfg    Config
	client *http.Client
}

// NewUploader creates an uploader with the given credentials. A zero Config
// yields an uploader that rejects all uploads with ErrNotConfigured.
func NewUploader(cfg Config) *Uploader {
	return &Uploader{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether credentials are present.
func (u *Uploader) Configured() bool {
	return u.cfg.CloudName != "" && u.cfg.APIKey != "" && u.cfg.APISecret != ""
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends the attachment bytes to Cloudinary and returns the hosted URL.
// contentType selects the upload pipeline: image/* goes to the image endpoint,
// anything else (voice notes) to the raw endpoint.
func (u *Uploader) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if !u.Configured() {
		return "", ErrNotConfigured
	}
	if len(data) == 0 {
		return "", errors.New("empty upload")
	}

	resource := "raw"
	if strings.HasPrefix(contentType, "image/") {
		resource = "image"
	}
	endpoint := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/%s/upload", u.cfg.CloudName, resource)

	publicID := uuid.NewString()
	if u.cfg.Folder != "" {
		publicID = u.cfg.Folder + "/" + publicID
	}
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	// Signed upload: SHA1 over the sorted params plus the secret.
	sigInput := fmt.Sprintf("public_id=%s&timestamp=%s%s", publicID, timestamp, u.cfg.APISecret)
	signature := fmt.Sprintf("%x", sha1.Sum([]byte(sigInput)))

	form := url.Values{}
	form.Add("file", "data:"+contentType+";base64,"+base64.StdEncoding.EncodeToString(data))
	form.Add("api_key", u.cfg.APIKey)
	form.Add("public_id", publicID)
	form.Add("timestamp", timestamp)
	form.Add("signature", signature)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload failed with status %d", res.StatusCode)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.Error.Message != "" {
		return "", fmt.Errorf("upload rejected: %s", parsed.Error.Message)
	}

	hosted := parsed.SecureURL
	if hosted == "" {
		hosted = parsed.URL
	}
	if hosted == "" {
		return "", errors.New("upload returned no URL")
	}
	return hosted, nil
}

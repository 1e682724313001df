// Package remote provides a client for the clinic training service API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/trainingdesk/internal/models"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("training service error %d: %s", e.StatusCode, e.Message)
}

// Client is a training service API client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new client. A zero timeout means 30 seconds.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// doRequest performs an HTTP request and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	return respBody, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	return c.doRequest(ctx, http.MethodPost, path, "application/json", body)
}

// errorMessage extracts a human-readable message from an error body.
func errorMessage(body []byte) string {
	var errResp struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		for _, s := range []string{errResp.Error, errResp.Detail, errResp.Message} {
			if s != "" {
				return s
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// ensureRoomResponse is the response from the room endpoint.
type ensureRoomResponse struct {
	Data struct {
		RoomID json.RawMessage `json:"room_id"`
	} `json:"data"`
}

// EnsureRoom creates the caller's training room if needed and returns its id.
func (c *Client) EnsureRoom(ctx context.Context) (models.RoomID, error) {
	respBody, err := c.postJSON(ctx, "/api/v1/mytrainingrooms/", nil)
	if err != nil {
		return "", err
	}

	var resp ensureRoomResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode room response: %w", err)
	}

	id, err := scalarString(resp.Data.RoomID)
	if err != nil || id == "" {
		return "", fmt.Errorf("room response carries no data.room_id")
	}
	return models.RoomID(id), nil
}

// scalarString accepts a JSON string or number.
func scalarString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// AskRequest is the request body for a chat prompt.
type AskRequest struct {
	Prompt string `json:"prompt"`
}

// Ask submits a user chat message to the room. The reply arrives on the stream.
func (c *Client) Ask(ctx context.Context, roomID models.RoomID, prompt string) error {
	_, err := c.postJSON(ctx, roomPath(roomID, "ask"), AskRequest{Prompt: prompt})
	return err
}

// UploadFile is one file in a bulk upload.
type UploadFile struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// UploadRequest is a bulk document submission.
type UploadRequest struct {
	FileName     string
	DocumentType string
	Files        []UploadFile
}

// Upload submits files and metadata as one multi-part request.
func (c *Client) Upload(ctx context.Context, roomID models.RoomID, req UploadRequest) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("file_name", req.FileName); err != nil {
		return err
	}
	if err := mw.WriteField("document_type", req.DocumentType); err != nil {
		return err
	}
	for _, f := range req.Files {
		if err := writeFilePart(mw, f); err != nil {
			return fmt.Errorf("attach %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	_, err := c.doRequest(ctx, http.MethodPost, roomPath(roomID, "upload"), mw.FormDataContentType(), &buf)
	return err
}

func writeFilePart(mw *multipart.Writer, f UploadFile) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	part, err := mw.CreateFormFile("files", f.Name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, rc)
	return err
}

// ErrInvalidID is returned for ids that cannot be used as a path segment.
var ErrInvalidID = errors.New("invalid resource id")

// Dislike acknowledges a feedback trigger.
func (c *Client) Dislike(ctx context.Context, id string) error {
	seg, err := pathSegment(id)
	if err != nil {
		return err
	}
	_, err = c.postJSON(ctx, "/api/v1/dislike/"+seg+"/", nil)
	return err
}

func roomPath(roomID models.RoomID, action string) string {
	return "/api/v1/mytrainingrooms/" + url.PathEscape(string(roomID)) + "/" + action + "/"
}

// pathSegment escapes id for use as one path segment. Dot segments are
// rejected since escaping leaves them intact.
func pathSegment(id string) (string, error) {
	switch id {
	case "", ".", "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return url.PathEscape(id), nil
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

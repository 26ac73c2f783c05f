// Package sessionclient talks to the clueword backend: the session store,
// the audio standardization endpoint and the export endpoint.
package sessionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/starford/clueword/internal/apperr"
	"github.com/starford/clueword/internal/models"
)

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an HTTP client for the backend endpoints.
type Client struct {
	baseURL string
	token   string
	client  HTTPDoer
}

// New constructs a Client. A nil doer falls back to http.DefaultClient.
func New(baseURL, token string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  doer,
	}
}

type listResponse struct {
	Sessions []models.SessionSummary `json:"sessions"`
	Total    int                     `json:"total"`
}

// ListSessions returns all session summaries, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]models.SessionSummary, error) {
	var out listResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions", nil, &out); err != nil {
		return nil, err
	}
	if out.Sessions == nil {
		out.Sessions = []models.SessionSummary{}
	}
	return out.Sessions, nil
}

// SaveSession creates or updates a session.
func (c *Client) SaveSession(ctx context.Context, p models.SessionPayload) (*models.Session, error) {
	var out models.Session
	if err := c.doJSON(ctx, http.MethodPost, "/api/sessions", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches one session including its annotations.
func (c *Client) GetSession(ctx context.Context, id int64) (*models.Session, error) {
	var out models.Session
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		return nil, err
	}
	out.Annotations = out.Annotations.Normalize()
	return &out, nil
}

// DeleteSession removes a stored session.
func (c *Client) DeleteSession(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/sessions/"+strconv.FormatInt(id, 10), nil, nil)
}

// Standardize uploads a raw audio file for track and returns the path of the
// normalized audio as the backend reported it, together with the original
// filename. Resolve the path with AudioURL before loading it.
func (c *Client) Standardize(ctx context.Context, track models.Track, filename string, r io.Reader) (*models.StandardizedAudio, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio_file", filename)
	if err != nil {
		return nil, fmt.Errorf("sessionclient: build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("sessionclient: read audio: %w", err)
	}
	if err := mw.WriteField("type", string(track)); err != nil {
		return nil, fmt.Errorf("sessionclient: build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("sessionclient: build upload: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, "/standardize", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out models.StandardizedAudio
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("sessionclient: decode standardize response: %w", err)
	}
	if out.URL == "" {
		return nil, &apperr.RemoteError{Status: resp.StatusCode, Message: "standardize returned no url"}
	}
	if out.OriginalFilename == "" {
		out.OriginalFilename = filename
	}
	return &out, nil
}

// AudioURL resolves a stored audio path against the backend base URL.
// Absolute URLs are returned unchanged.
func (c *Client) AudioURL(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Export posts the annotations to the processing endpoint and returns the
// archive stream. The caller closes it.
func (c *Client) Export(ctx context.Context, req models.ExportRequest) (io.ReadCloser, error) {
	annJSON, err := json.Marshal(req.Annotations.Normalize())
	if err != nil {
		return nil, fmt.Errorf("sessionclient: encode annotations: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := []struct{ key, value string }{
		{"annotations", string(annJSON)},
		{"question_original_filename", req.QuestionFilename},
		{"control_original_filename", req.ControlFilename},
		{"enable_bandpass", strconv.FormatBool(req.BandpassEnabled)},
		{"case_number", req.CaseInfo.CaseNumber},
		{"police_station", req.CaseInfo.PoliceStation},
		{"district", req.CaseInfo.District},
		{"cr_adr_number", req.CaseInfo.CRNumber},
		{"speaker_name", req.CaseInfo.SpeakerName},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.key, f.value); err != nil {
			return nil, fmt.Errorf("sessionclient: build export form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("sessionclient: build export form: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, "/process", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var (
		body        io.Reader
		contentType string
	)
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("sessionclient: encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	resp, err := c.send(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sessionclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

// send performs the request and turns transport failures into NetworkError
// and non-2xx answers into RemoteError. On success the caller owns the body.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("sessionclient: build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &apperr.NetworkError{Op: method + " " + path, Err: err}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		return nil, remoteError(resp)
	}
	return resp, nil
}

func remoteError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &apperr.RemoteError{Status: resp.StatusCode, Message: msg}
}

// Package restclient talks to the training backend's REST API: starting and
// ending live sessions and listing the user's devices.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	pkerrors "github.com/AltairaLabs/PoseKit/errors"
	"github.com/AltairaLabs/PoseKit/logger"
	pkmetrics "github.com/AltairaLabs/PoseKit/metrics/prometheus"
	"github.com/AltairaLabs/PoseKit/types"
)

const (
	// DefaultTimeout bounds every REST call.
	DefaultTimeout = 30 * time.Second

	// DemoToken is the bearer token of offline demo accounts. A 401 received
	// with it does not trigger the unauthorized hook.
	DemoToken = "demo_token"

	// DefaultMode is the training mode sent when starting a session.
	DefaultMode = "standard"

	component = "restclient"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://host/api/v1".
	BaseURL string

	// Token is the bearer token. Empty sends no Authorization header.
	Token string

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// OnUnauthorized runs on a 401 unless Token is DemoToken, typically
	// clearing credentials and returning the user to login.
	OnUnauthorized func()

	// Transport is the base round tripper. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// Client is a REST collaborator client.
type Client struct {
	baseURL        string
	token          string
	onUnauthorized func()
	http           *http.Client
}

// New creates a Client. Requests are traced with otelhttp and carry the
// bearer token through an oauth2 transport.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var rt http.RoundTripper = otelhttp.NewTransport(base)
	if cfg.Token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
			Base:   rt,
		}
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		token:          cfg.Token,
		onUnauthorized: cfg.OnUnauthorized,
		http:           &http.Client{Timeout: cfg.Timeout, Transport: rt},
	}
}

// envelope is the backend's response wrapper.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Device is a registered capture device.
type Device struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
}

// EndRequest is the final snapshot sent when a session ends.
type EndRequest struct {
	HitRate        float64 `json:"hit_rate"`
	ReactionTime   float64 `json:"reaction_time"`
	Accuracy       float64 `json:"accuracy"`
	FatigueLevel   float64 `json:"fatigue_level"`
	CaloriesBurned float64 `json:"calories_burned"`
	TotalHits      int     `json:"total_hits"`
	SuccessfulHits int     `json:"successful_hits"`
}

// StartSession opens a training session for deviceID and returns its id.
func (c *Client) StartSession(ctx context.Context, deviceID string) (string, error) {
	q := url.Values{}
	q.Set("device_id", deviceID)
	q.Set("mode", DefaultMode)

	var out struct {
		ID    string `json:"id"`
		OldID string `json:"_id"`
	}
	if err := c.do(ctx, "StartSession", http.MethodPost, "/training/sessions/start?"+q.Encode(), nil, &out); err != nil {
		return "", err
	}
	id := out.ID
	if id == "" {
		id = out.OldID
	}
	if id == "" {
		return "", pkerrors.New(component, "StartSession", fmt.Errorf("response has no session id"))
	}
	return id, nil
}

// EndSession ends sessionID with the final metrics snapshot.
func (c *Client) EndSession(ctx context.Context, sessionID string, final types.Metrics) error {
	body := EndRequest{
		HitRate:        final.HitRate,
		ReactionTime:   final.ReactionTime,
		Accuracy:       final.Accuracy,
		FatigueLevel:   final.FatigueLevel,
		CaloriesBurned: final.CaloriesBurned,
	}
	return c.do(ctx, "EndSession", http.MethodPost, "/training/sessions/"+url.PathEscape(sessionID)+"/end", body, nil)
}

// Devices lists the current user's devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var out []Device
	if err := c.do(ctx, "Devices", http.MethodGet, "/devices/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	start := time.Now()
	status := "error"
	defer func() {
		pkmetrics.RecordRESTRequest(op, status, time.Since(start).Seconds())
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return pkerrors.New(component, op, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkerrors.New(component, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	headers := map[string]string{"Content-Type": "application/json"}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}
	logger.APIRequest(ctx, method, req.URL.String(), headers, in)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.APIResponse(ctx, 0, "", err)
		return pkerrors.New(component, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	logger.APIResponse(ctx, resp.StatusCode, string(raw), err)
	if err != nil {
		return pkerrors.New(component, op, fmt.Errorf("read response: %w", err)).WithStatusCode(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		status = "unauthorized"
		if c.token != DemoToken && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return pkerrors.New(component, op, pkerrors.ErrUnauthorized).WithStatusCode(resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkerrors.New(component, op, fmt.Errorf("unexpected status: %s", errorMessage(raw, resp.Status))).
			WithStatusCode(resp.StatusCode)
	}

	if out != nil {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return pkerrors.New(component, op, fmt.Errorf("decode response: %w", err)).WithStatusCode(resp.StatusCode)
		}
		if len(env.Data) > 0 && string(env.Data) != "null" {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return pkerrors.New(component, op, fmt.Errorf("decode data: %w", err)).WithStatusCode(resp.StatusCode)
			}
		}
	}
	status = "success"
	return nil
}

// errorMessage extracts the backend's message or detail field, falling back
// to the HTTP status text.
func errorMessage(raw []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
		Detail  any    `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if s, ok := body.Detail.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

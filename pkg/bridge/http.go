package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/entrhq/mailwright/pkg/types"
)

// GeneratePath is the background service endpoint for generation.
const GeneratePath = "/v1/generate"

// HTTPTransport reaches a background service over HTTP.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a transport for the service at baseURL. A nil
// client uses one with a two minute timeout.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPTransport{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// RoundTrip implements Transport.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req types.GenerationRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+GeneratePath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if channelGone(err) {
			return "", types.WrapError(types.KindChannelUnavailable, err)
		}
		return "", types.WrapError(types.KindServiceError, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if channelGone(err) {
			return "", types.WrapError(types.KindChannelUnavailable, err)
		}
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var out types.GenerationResponse
		if err := json.Unmarshal(data, &out); err != nil {
			return "", types.WrapError(types.KindServiceError, fmt.Errorf("malformed response: %w", err))
		}
		return out.Text, nil
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "", types.Errorf(types.KindChannelUnavailable, "background service unavailable: %s", resp.Status).
			WithStatus(resp.StatusCode)
	}
	return "", decodeError(resp.StatusCode, data)
}

func decodeError(status int, data []byte) error {
	var body types.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Kind == "" {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(status)
		}
		return types.NewError(types.KindServiceError, msg).WithStatus(status)
	}
	if body.Status == 0 {
		body.Status = status
	}
	return types.NewError(body.Kind, body.Message).WithStatus(body.Status)
}

// channelGone reports whether err means the service end went away rather
// than that it answered with a failure.
func channelGone(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

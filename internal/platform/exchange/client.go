package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/epishare/epishare/internal/platform/crypto"
)

// Client delivers sealed envelopes to partner instances. Every request is
// a single attempt; callers decide what a failure means for local state.
type Client struct {
	instanceID string
	directory  *Directory
	sealer     *crypto.Sealer
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(instanceID string, directory *Directory, sealer *crypto.Sealer, logger zerolog.Logger) *Client {
	return &Client{
		instanceID: instanceID,
		directory:  directory,
		sealer:     sealer,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Post seals body and POSTs it to the partner's endpoint. When out is
// non-nil the response body is opened into it.
func (c *Client) Post(ctx context.Context, partnerID, path string, body, out any) error {
	return c.send(ctx, http.MethodPost, partnerID, path, body, out)
}

// Put seals body and PUTs it to the partner's endpoint.
func (c *Client) Put(ctx context.Context, partnerID, path string, body, out any) error {
	return c.send(ctx, http.MethodPut, partnerID, path, body, out)
}

func (c *Client) send(ctx context.Context, method, partnerID, path string, body, out any) error {
	partner, err := c.directory.Get(partnerID)
	if err != nil {
		return &Error{PartnerID: partnerID, Msg: "resolve partner", Err: err}
	}

	env, err := c.sealer.Seal(body, partner.Secret)
	if err != nil {
		return &Error{PartnerID: partnerID, Msg: "seal payload", Err: err}
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return &Error{PartnerID: partnerID, Msg: "marshal envelope", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, partner.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &Error{PartnerID: partnerID, Msg: "build request", Err: err}
	}

	token, err := MintToken(c.instanceID, partner.ID, []byte(partner.Secret))
	if err != nil {
		return &Error{PartnerID: partnerID, Msg: "mint token", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Sender-ID", c.instanceID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{PartnerID: partnerID, Msg: "deliver request", Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("partner", partnerID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("exchange request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read at most 1KB of the error body.
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &Error{
			PartnerID:  partnerID,
			StatusCode: resp.StatusCode,
			Msg:        fmt.Sprintf("non-2xx response: %d %s", resp.StatusCode, string(bodyBytes)),
		}
	}

	if out == nil {
		return nil
	}
	var respEnv crypto.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&respEnv); err != nil {
		return &Error{PartnerID: partnerID, StatusCode: resp.StatusCode, Msg: "decode response envelope", Err: err}
	}
	if err := c.sealer.Open(&respEnv, partner.Secret, out); err != nil {
		return &Error{PartnerID: partnerID, StatusCode: resp.StatusCode, Msg: "open response envelope", Err: err}
	}
	return nil
}

// Package rpc calls functions of the hosted backend through its
// /rpc/<function> endpoints, signing every request with a short-lived JWT
// minted from the session identity.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medequip/equipment_backend/config"
	"github.com/medequip/equipment_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("equipment-backend/rpc")

type Caller interface {
	Call(ctx context.Context, function string, args map[string]any) (json.RawMessage, error)
}

// CallInto calls function and decodes its result into T.
func CallInto[T any](ctx context.Context, caller Caller, function string, args map[string]any) (T, error) {
	var out T
	raw, err := caller.Call(ctx, function, args)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s result: %w", function, err)
	}
	return out, nil
}

type Client struct {
	baseURL string
	apiKey  string
	signer  *utils.JwtSigner
	allow   *AllowList
	http    *http.Client
	logger  *logrus.Logger
}

func NewClient(cfg config.AppConfig, allow *AllowList) (*Client, error) {
	if cfg.RpcBaseURL == "" {
		return nil, errors.New("rpc base url is empty")
	}
	if cfg.RpcJwtSecret == "" {
		return nil, errors.New("rpc jwt secret is empty")
	}
	timeout := cfg.RpcTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if allow == nil {
		allow = NewAllowList(config.ExtraRpcFunctions()...)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.RpcBaseURL, "/"),
		apiKey:  cfg.RpcAPIKey,
		signer:  utils.NewJwtSigner(cfg.RpcJwtSecret, cfg.RpcTokenTTL),
		allow:   allow,
		http:    &http.Client{Timeout: timeout},
		logger:  config.GetLogger(),
	}, nil
}

func (c *Client) AllowList() *AllowList {
	return c.allow
}

// Call posts args to the function and returns its raw JSON result. A
// timeout surfaces as an ordinary error.
func (c *Client) Call(ctx context.Context, function string, args map[string]any) (json.RawMessage, error) {
	if !c.allow.Allowed(function) {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotAllowed, function)
	}

	ctx, span := tracer.Start(ctx, "rpc."+function)
	defer span.End()
	span.SetAttributes(attribute.String("rpc.function", function))

	result, err := c.do(ctx, function, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		config.LogError(c.logger, "rpc", "Call", function, correlationFields(ctx), err)
		return nil, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, function string, args map[string]any) (json.RawMessage, error) {
	token, err := c.signer.SignFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/"+function, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseError(function, resp.StatusCode, body)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(body), nil
}

func correlationFields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	if id, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = id
	}
	if username, ok := utils.GetUsernameFromContext(ctx); ok {
		fields["username"] = username
	}
	return fields
}

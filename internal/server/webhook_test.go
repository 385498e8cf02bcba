package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/config"
	derrors "git.home.luguber.info/inful/docpipe/internal/errors"
)

const webhookTestSecret = "webhook-test-secret"

func newWebhookServer(secret string, enq Enqueuer) *Server {
	cfg := config.ServerConfig{Host: "127.0.0.1", WebhookSecret: secret}
	return New(cfg, nil, enq, prom.NewRegistry())
}

func pushPayload(fullName, ref, defaultBranch string) []byte {
	return fmt.Appendf(nil, `{"ref":%q,"repository":{"full_name":%q,"default_branch":%q}}`,
		ref, fullName, defaultBranch)
}

func signSHA256(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(event string, payload []byte, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if event != "" {
		req.Header.Set("X-GitHub-Event", event)
	}
	if secret != "" {
		req.Header.Set("X-Hub-Signature-256", signSHA256(payload, secret))
	}
	return req
}

func TestWebhook_SignedPush_QueuesProcessing(t *testing.T) {
	var captured []string
	enq := EnqueueFunc(func(ctx context.Context, repository string) (string, error) {
		captured = append(captured, repository)
		return "job-42", nil
	})

	s := newWebhookServer(webhookTestSecret, enq)
	payload := pushPayload("acme/docs", "refs/heads/main", "main")
	rec := doRequest(t, s, webhookRequest("push", payload, webhookTestSecret))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "queued", resp.Status)
	require.Equal(t, "job-42", resp.JobID)
	require.Equal(t, "acme/docs", resp.Repository)
	require.Equal(t, []string{"acme/docs"}, captured)
}

func TestWebhook_MissingEventHeader_TreatedAsPush(t *testing.T) {
	enq := EnqueueFunc(func(ctx context.Context, repository string) (string, error) {
		return "job-1", nil
	})

	s := newWebhookServer(webhookTestSecret, enq)
	payload := pushPayload("acme/docs", "refs/heads/main", "main")
	rec := doRequest(t, s, webhookRequest("", payload, webhookTestSecret))

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWebhook_BadSignature_Unauthorized(t *testing.T) {
	var called bool
	enq := EnqueueFunc(func(ctx context.Context, repository string) (string, error) {
		called = true
		return "", nil
	})

	s := newWebhookServer(webhookTestSecret, enq)
	payload := pushPayload("acme/docs", "refs/heads/main", "main")
	req := webhookRequest("push", payload, "")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := doRequest(t, s, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, called)

	var resp derrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, string(derrors.CategoryAuth), resp.Code)
}

func TestWebhook_MissingSignature_Unauthorized(t *testing.T) {
	s := newWebhookServer(webhookTestSecret, nil)
	payload := pushPayload("acme/docs", "refs/heads/main", "main")
	rec := doRequest(t, s, webhookRequest("push", payload, ""))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_LegacySignatureHeader_Accepted(t *testing.T) {
	enq := EnqueueFunc(func(ctx context.Context, repository string) (string, error) {
		return "job-7", nil
	})

	s := newWebhookServer(webhookTestSecret, enq)
	payload := pushPayload("acme/docs", "refs/heads/main", "main")

	mac := hmac.New(sha1.New, []byte(webhookTestSecret))
	mac.Write(payload)
	req := webhookRequest("push", payload, "")
	req.Header.Set("X-Hub-Signature", "sha1="+hex.EncodeToString(mac.Sum(nil)))
	rec := doRequest(t, s, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWebhook_NoSecretConfigured_SkipsValidation(t *testing.T) {
	enq := EnqueueFunc(func(ctx context.Context, repository string) (string, error) {
		return "job-9", nil
	})

	s := newWebhookServer("", enq)
	payload := pushPayload("acme/docs", "refs/heads/main", "main")
	rec := doRequest(t, s, webhookRequest("push", payload, ""))

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWebhook_Ping_AnswersPong(t *testing.T) {
	s := newWebhookServer(webhookTestSecret, nil)
	payload := []byte(`{"zen":"Keep it logically awesome."}`)
	rec := doRequest(t, s, webhookRequest("ping", payload, webhookTestSecret))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "pong", resp.Status)
}

func TestWebhook_NonDefaultBranch_Ignored(t *testing.T) {
	var called bool
	enq := EnqueueFunc(func(ctx context.Context, repository string) (string, error) {
		called = true
		return "", nil
	})

	s := newWebhookServer(webhookTestSecret, enq)
	payload := pushPayload("acme/docs", "refs/heads/feature/new-layout", "main")
	rec := doRequest(t, s, webhookRequest("push", payload, webhookTestSecret))

	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, called)

	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ignored", resp.Status)
	require.Contains(t, resp.Reason, "feature/new-layout")
}

func TestWebhook_UnsupportedEvent_Ignored(t *testing.T) {
	s := newWebhookServer(webhookTestSecret, nil)
	payload := []byte(`{"action":"opened"}`)
	rec := doRequest(t, s, webhookRequest("issues", payload, webhookTestSecret))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ignored", resp.Status)
	require.Contains(t, resp.Reason, "issues")
}

func TestWebhook_MalformedPayload_BadRequest(t *testing.T) {
	s := newWebhookServer(webhookTestSecret, nil)
	payload := []byte(`not json`)
	rec := doRequest(t, s, webhookRequest("push", payload, webhookTestSecret))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_GetMethod_Rejected(t *testing.T) {
	s := newWebhookServer(webhookTestSecret, nil)
	rec := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/webhooks/github", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_EnqueueFailure_ServiceUnavailable(t *testing.T) {
	enq := EnqueueFunc(func(ctx context.Context, repository string) (string, error) {
		return "", errors.New("queue full")
	})

	s := newWebhookServer(webhookTestSecret, enq)
	payload := pushPayload("acme/docs", "refs/heads/main", "main")
	rec := doRequest(t, s, webhookRequest("push", payload, webhookTestSecret))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhook_NoEnqueuer_ServiceUnavailable(t *testing.T) {
	s := newWebhookServer(webhookTestSecret, nil)
	payload := pushPayload("acme/docs", "refs/heads/main", "main")
	rec := doRequest(t, s, webhookRequest("push", payload, webhookTestSecret))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

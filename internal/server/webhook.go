package server

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	derrors "git.home.luguber.info/inful/docpipe/internal/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/repohost"
)

const maxWebhookBody = 1 << 20

// WebhookResponse acknowledges a webhook delivery.
type WebhookResponse struct {
	Status     string    `json:"status"`
	JobID      string    `json:"job_id,omitempty"`
	Repository string    `json:"repository,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// handleGitHubWebhook accepts push events, validates the signature when a
// secret is configured, and enqueues a processing job for pushes to the
// default branch. Other branches and event types are acknowledged and ignored.
func (s *Server) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		err := derrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", http.MethodPost)
		s.errorAdapter.WriteErrorResponse(w, err)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, derrors.ValidationError("unreadable webhook payload").
			WithContext("error", err.Error()))
		return
	}

	if s.cfg.WebhookSecret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if signature == "" {
			signature = r.Header.Get("X-Hub-Signature")
		}
		if !repohost.ValidateGitHubSignature(payload, signature, s.cfg.WebhookSecret) {
			s.errorAdapter.WriteErrorResponse(w,
				derrors.New(derrors.CategoryAuth, derrors.SeverityWarning, "webhook signature mismatch"))
			return
		}
	}

	switch event := r.Header.Get("X-GitHub-Event"); event {
	case "ping":
		s.writeWebhookAck(w, r, http.StatusOK, WebhookResponse{Status: "pong"})
		return
	case "push", "":
		// An absent event header is treated as a push.
	default:
		s.writeWebhookAck(w, r, http.StatusOK, WebhookResponse{Status: "ignored", Reason: "unsupported event " + event})
		return
	}

	push, err := repohost.ParsePushEvent(payload)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, derrors.ValidationError("invalid push payload").
			WithContext("error", err.Error()))
		return
	}

	if push.DefaultBranch != "" && push.Branch != push.DefaultBranch {
		s.writeWebhookAck(w, r, http.StatusOK, WebhookResponse{
			Status:     "ignored",
			Repository: push.Repository,
			Reason:     "push to non-default branch " + push.Branch,
		})
		return
	}

	if s.enq == nil {
		s.errorAdapter.WriteErrorResponse(w, derrors.DaemonError("job queue unavailable"))
		return
	}

	jobID, err := s.enq.EnqueueProcess(r.Context(), push.Repository)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w,
			derrors.WrapError(err, derrors.CategoryDaemon, "failed to enqueue processing job"))
		return
	}

	slog.Info("Webhook queued repository processing",
		logfields.Repository(push.Repository),
		logfields.JobID(jobID))

	s.writeWebhookAck(w, r, http.StatusAccepted, WebhookResponse{
		Status:     "queued",
		JobID:      jobID,
		Repository: push.Repository,
	})
}

func (s *Server) writeWebhookAck(w http.ResponseWriter, r *http.Request, status int, resp WebhookResponse) {
	resp.Timestamp = time.Now().UTC()
	if err := writeJSONPretty(w, r, status, resp); err != nil {
		s.errorAdapter.WriteErrorResponse(w,
			derrors.WrapError(err, derrors.CategoryInternal, "failed to write webhook response"))
	}
}

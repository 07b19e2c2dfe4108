package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultHTTPStatusThreshold = 300

// WebhookService fires best-effort security notifications. The one event
// it carries today is replay detection: a validly signed refresh token
// that matched no active record, which means the token was already
// rotated or revoked and someone is presenting it again.
type WebhookService struct {
	client     *http.Client
	log        *zap.SugaredLogger
	webhookURL string
}

func NewWebhookService(log *zap.SugaredLogger, webhookURL string) *WebhookService {
	return &WebhookService{
		client:     &http.Client{},
		log:        log,
		webhookURL: webhookURL,
	}
}

type ReplayAlert struct {
	UserID     string    `json:"user_id"`
	Operation  string    `json:"operation"`
	DetectedAt time.Time `json:"detected_at"`
}

const alertDeliveryTimeout = 10 * time.Second

// NotifyReplayDetected posts the alert asynchronously; delivery failures
// are logged and never fail the request that detected the replay. The
// request context is detached so the delivery survives the handler that
// spotted the replay returning.
func (s *WebhookService) NotifyReplayDetected(ctx context.Context, alert ReplayAlert) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if s.webhookURL == "" {
			return
		}

		ctx, cancel := context.WithTimeout(ctx, alertDeliveryTimeout)
		defer cancel()

		payload, err := json.Marshal(alert)
		if err != nil {
			s.log.Errorw("failed to marshal replay alert", "error", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(payload))
		if err != nil {
			s.log.Errorw("failed to create replay alert request", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			s.log.Errorw("failed to send replay alert", "error", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= defaultHTTPStatusThreshold {
			s.log.Warnw("replay alert webhook returned non-2xx status", "status", resp.StatusCode)
		}
	}()
}

package alert

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hazz-dev/marinemon/internal/health"
)

// Alerter sends webhook notifications on upstream health transitions.
type Alerter struct {
	webhookURL string
	cooldown   time.Duration
	client     *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	lastAlert time.Time
}

// New creates a new Alerter. Pass nil logger to use the default logger.
func New(webhookURL string, cooldown time.Duration, logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{
		webhookURL: webhookURL,
		cooldown:   cooldown,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type webhookPayload struct {
	OldStatus           string  `json:"old_status"`
	NewStatus           string  `json:"new_status"`
	SuccessRate         float64 `json:"success_rate"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	OccurredAt          string  `json:"occurred_at"`
	Source              string  `json:"source"`
}

// Notify sends a webhook for a status transition unless the cooldown is
// still active. It never blocks the caller on the network: the send runs
// asynchronously so a slow webhook endpoint cannot stall the monitor's
// listener dispatch.
func (a *Alerter) Notify(change health.StatusChange) {
	a.mu.Lock()
	if !a.lastAlert.IsZero() && time.Since(a.lastAlert) < a.cooldown {
		a.mu.Unlock()
		a.logger.Info("alert suppressed by cooldown",
			"old_status", change.Old,
			"new_status", change.New,
		)
		return
	}
	a.lastAlert = time.Now()
	a.mu.Unlock()

	go a.send(change)
}

func (a *Alerter) send(change health.StatusChange) {
	payload := webhookPayload{
		OldStatus:           string(change.Old),
		NewStatus:           string(change.New),
		SuccessRate:         change.Snapshot.SuccessRate,
		ConsecutiveFailures: change.Snapshot.ConsecutiveFailures,
		OccurredAt:          time.Now().UTC().Format(time.RFC3339),
		Source:              "marinemon",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("marshaling webhook payload", "error", err)
		return
	}

	resp, err := a.client.Post(a.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.logger.Error("sending webhook", "url", a.webhookURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.Warn("webhook returned non-2xx status",
			"status", resp.StatusCode,
			"new_status", change.New,
		)
	}
}

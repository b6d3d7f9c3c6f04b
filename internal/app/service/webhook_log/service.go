package webhook_log

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/checkout/internal/app/store"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/tool"
)

// redacted headers are stored as "[redacted]".
var redacted = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"x-api-key":     {},
}

type Service struct {
	st  store.Store
	log *zap.SugaredLogger
	now func() time.Time
}

func New(st store.Store, log *zap.SugaredLogger) *Service {
	return &Service{st: st, log: log, now: time.Now}
}

// Entry is what a caller knows about an inbound notification before any
// validation.
type Entry struct {
	Gateway    string
	TraceID    string
	ExternalID string
	Payload    []byte
	Headers    http.Header
}

// Record synchronously persists the raw notification. Nothing about the
// notification is trusted at this point.
func (s *Service) Record(ctx context.Context, e *Entry) (*models.WebhookLog, error) {
	headers, err := json.Marshal(flatten(e.Headers))
	if err != nil {
		return nil, fmt.Errorf("failed to encode headers: %w", err)
	}
	row := &models.WebhookLog{
		ID:         tool.GenerateUUIDV7(),
		Gateway:    e.Gateway,
		TraceID:    e.TraceID,
		ExternalID: e.ExternalID,
		Headers:    datatypes.JSON(headers),
		ReceivedAt: s.now(),
	}
	row.Payload, row.PayloadEncoding = encodePayload(e.Payload)
	if err := s.st.CreateWebhookLog(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to save webhook log: %w", err)
	}
	return row, nil
}

// Finish appends the outcome once. Failures are only logged.
func (s *Service) Finish(ctx context.Context, id string, code int, outcome string) {
	if id == "" {
		return
	}
	if err := s.st.FinishWebhookLog(ctx, id, code, outcome, s.now()); err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("failed to finish webhook log", "webhook_log_id", id, "code", code, "err", err)
	}
}

// encodePayload keeps text bodies readable. Postgres text rejects NUL and
// invalid UTF-8, so those bodies are stored as base64.
func encodePayload(b []byte) (string, string) {
	if utf8.Valid(b) && !bytes.ContainsRune(b, 0) {
		return string(b), ""
	}
	return base64.StdEncoding.EncodeToString(b), models.PayloadEncodingBase64
}

func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if _, ok := redacted[strings.ToLower(k)]; ok {
			out[k] = "[redacted]"
			continue
		}
		out[k] = strings.Join(v, ", ")
	}
	return out
}

var Module = fx.Options(
	fx.Provide(New),
)

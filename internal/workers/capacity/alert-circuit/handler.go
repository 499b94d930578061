// internal/workers/capacity/alert-circuit/handler.go
package alertcircuit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"capacity-engine/internal/common/clock"
	"capacity-engine/internal/common/logger"
	"capacity-engine/internal/common/provider"
)

const TaskType = "alert-circuit"

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Handler notifies operators when the provider breaker opens or recovers.
// Each transition kind alerts at most once per cooldown.
type Handler struct {
	config    *Config
	snsClient SNSService
	sesClient SESService
	clock     clock.Clock
	logger    logger.Logger

	mu   sync.Mutex
	last map[string]time.Time
	wg   sync.WaitGroup
}

// NewHandler builds the handler; either client may be nil when its
// channel is disabled.
func NewHandler(config *Config, snsClient SNSService, sesClient SESService, clk clock.Clock, log logger.Logger) *Handler {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Handler{
		config:    config,
		snsClient: snsClient,
		sesClient: sesClient,
		clock:     clk,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		last:      make(map[string]time.Time),
	}
}

// OnStateChange is the breaker hook. Alerts are sent in the background so
// the breaker never waits on AWS.
func (h *Handler) OnStateChange(tr provider.Transition) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
		defer cancel()
		if _, err := h.Notify(ctx, tr); err != nil {
			h.logger.Error("circuit alert failed", map[string]interface{}{
				"from":  tr.From.String(),
				"to":    tr.To.String(),
				"error": err.Error(),
			})
		}
	}()
}

// Wait blocks until background alerts have finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// Notify sends the alert for tr if it is one operators care about and the
// cooldown allows it. It reports whether an alert went out.
func (h *Handler) Notify(ctx context.Context, tr provider.Transition) (bool, error) {
	kind := alertKind(tr)
	if kind == "" {
		return false, nil
	}
	if !h.claim(kind) {
		h.logger.Debug("circuit alert suppressed by cooldown", map[string]interface{}{"kind": kind})
		return false, nil
	}

	subject, body := h.message(kind, tr)
	var errs []error

	if h.config.SNSEnabled && h.snsClient != nil {
		_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(h.config.TopicARN),
			Subject:  aws.String(subject),
			Message:  aws.String(body),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("sns: %w", err))
		}
	}

	if h.config.EmailEnabled && h.sesClient != nil {
		_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
			Destination: &types.Destination{
				ToAddresses: h.config.ToEmails,
			},
			Message: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
			Source: aws.String(h.config.FromEmail),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("ses: %w", err))
		}
	}

	h.logger.Info("circuit alert sent", map[string]interface{}{
		"kind":     kind,
		"from":     tr.From.String(),
		"to":       tr.To.String(),
		"failures": tr.Failures,
	})
	return true, errors.Join(errs...)
}

func alertKind(tr provider.Transition) string {
	switch {
	case tr.To == provider.BreakerOpen && tr.From != provider.BreakerOpen:
		return "opened"
	case tr.To == provider.BreakerClosed && tr.From == provider.BreakerHalfOpen:
		return "recovered"
	}
	return ""
}

func (h *Handler) claim(kind string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.clock.Now()
	if last, ok := h.last[kind]; ok && now.Sub(last) < h.config.Cooldown {
		return false
	}
	h.last[kind] = now
	return true
}

func (h *Handler) message(kind string, tr provider.Transition) (string, string) {
	name := h.config.ServiceName
	if h.config.Environment != "" {
		name = fmt.Sprintf("%s (%s)", name, h.config.Environment)
	}

	var subject string
	var b strings.Builder
	switch kind {
	case "opened":
		subject = fmt.Sprintf("[%s] scheduling provider circuit open", name)
		fmt.Fprintf(&b, "The scheduling provider circuit breaker opened after %d consecutive failures.\n", tr.Failures)
		b.WriteString("Capacity requests are served the degraded NEXT_DAY payload until the provider recovers.\n")
	default:
		subject = fmt.Sprintf("[%s] scheduling provider recovered", name)
		b.WriteString("The scheduling provider circuit breaker closed after a successful trial call.\n")
	}
	fmt.Fprintf(&b, "Transition: %s -> %s at %s\n", tr.From, tr.To, tr.At.UTC().Format(time.RFC3339))
	return subject, b.String()
}

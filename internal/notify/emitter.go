package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/alanyoungcy/flasharb/internal/domain"
)

// Emitter mirrors every event to structured logs and forwards it to a
// Notifier. It is the default domain.Emitter wiring; the notifier may be nil
// when no channels are configured.
type Emitter struct {
	notifier *Notifier
	logger   *slog.Logger
}

var _ domain.Emitter = (*Emitter)(nil)

// NewEmitter creates an Emitter. notifier may be nil.
func NewEmitter(notifier *Notifier, logger *slog.Logger) *Emitter {
	return &Emitter{
		notifier: notifier,
		logger:   logger.With(slog.String("component", "events")),
	}
}

// Emit logs the event and pushes it through the notifier filter. Failures are
// logged and swallowed so emission never changes a request outcome.
func (e *Emitter) Emit(ctx context.Context, ev domain.Event) {
	attrs := make([]any, 0, 2*len(ev.Fields)+2)
	attrs = append(attrs, slog.String("event", ev.Type), slog.Time("at", ev.At))
	for _, k := range sortedKeys(ev.Fields) {
		attrs = append(attrs, slog.Any(k, ev.Fields[k]))
	}
	e.logger.InfoContext(ctx, "event", attrs...)

	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, ev.Type, titleFor(ev.Type), formatFields(ev.Fields)); err != nil {
		e.logger.WarnContext(ctx, "event notification failed",
			slog.String("event", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}

func titleFor(eventType string) string {
	switch eventType {
	case domain.EventTradeExecuted:
		return "Trade executed"
	case domain.EventLoanExecuted:
		return "Loan executed"
	case domain.EventProfitWithdrawn:
		return "Profit withdrawn"
	case domain.EventParamsUpdated:
		return "Parameters updated"
	case domain.EventExecutorChanged:
		return "Executor changed"
	case domain.EventTokenChanged:
		return "Token support changed"
	case domain.EventEmergencyWithdraw:
		return "Emergency withdrawal"
	default:
		return eventType
	}
}

func formatFields(fields map[string]any) string {
	lines := make([]string, 0, len(fields))
	for _, k := range sortedKeys(fields) {
		lines = append(lines, fmt.Sprintf("%s: %v", k, fields[k]))
	}
	return strings.Join(lines, "\n")
}

func sortedKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

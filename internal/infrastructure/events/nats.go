package events

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/errs"
	"ppesuite/internal/ports"
)

var (
	_ ports.EventPublisher = (*NATSPublisher)(nil)
	_ ports.EventPublisher = Noop{}
)

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, []byte) error { return nil }

// NATSPublisher publishes core NATS messages under a subject prefix.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials url. The connection retries in the background if the broker
// goes away later.
func Connect(ctx context.Context, url string, subjectPrefix string) (*NATSPublisher, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("nats url is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "infrastructure.events"))
	conn, err := nats.Connect(
		url,
		nats.Name("ppesuite"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(logCtx, "nats disconnected", slog.Any("err", errs.Loggable(err)))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info(logCtx, "nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errs.WithStack(errs.Wrap(err, "connect nats"))
	}

	logging.Info(logCtx, "nats connected", slog.String("url", conn.ConnectedUrl()))
	return &NATSPublisher{conn: conn, prefix: normalizeSubjectPrefix(subjectPrefix)}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return errors.New("subject is required")
	}
	if err := p.conn.Publish(p.prefix+subject, payload); err != nil {
		return errs.WithStack(errs.Wrapf(err, "publish %s", p.prefix+subject))
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		return errs.Wrap(err, "drain nats connection")
	}
	return nil
}

func normalizeSubjectPrefix(prefix string) string {
	trimmed := strings.Trim(strings.TrimSpace(prefix), ".")
	if trimmed == "" {
		return ""
	}
	return trimmed + "."
}

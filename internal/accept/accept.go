// Package accept turns portal confirmation mails into accepted orders: pull
// the acceptance link out of each message, drive the login-only flow against
// it and flip the order's accepted flag.
package accept

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
)

var (
	hrefRe = regexp.MustCompile(`href="([^"]+)"`)
	idRe   = regexp.MustCompile(`id=([^&]+)`)
	cdRe   = regexp.MustCompile(`cd=([^&]+)`)
	emsRe  = regexp.MustCompile(`ems=([^&]+)`)
)

// ErrNoLink marks a message without an extractable acceptance link.
var ErrNoLink = errors.New("no acceptance link in message")

// Params are the identifiers the portal embeds in an acceptance link.
type Params struct {
	OrderNumber int64
	SaveCode    string
	EMS         string
}

// ExtractFirstHref returns the first hyperlink target in an HTML mail body.
func ExtractFirstHref(body string) (string, error) {
	m := hrefRe.FindStringSubmatch(body)
	if m == nil {
		return "", ErrNoLink
	}
	return m[1], nil
}

// ParseAcceptParams pulls id, cd and ems out of an acceptance URL. All three
// must be present.
func ParseAcceptParams(url string) (Params, error) {
	id := idRe.FindStringSubmatch(url)
	cd := cdRe.FindStringSubmatch(url)
	ems := emsRe.FindStringSubmatch(url)
	if id == nil || cd == nil || ems == nil {
		return Params{}, fmt.Errorf("acceptance url %q missing id/cd/ems", url)
	}

	n, err := strconv.ParseInt(id[1], 10, 64)
	if err != nil {
		return Params{}, fmt.Errorf("acceptance url %q: bad order number: %w", url, err)
	}
	return Params{OrderNumber: n, SaveCode: cd[1], EMS: ems[1]}, nil
}

// Message is one pending acceptance mail.
type Message struct {
	ID   string
	Body string
}

// MessageSource supplies pending acceptance mails. Ack consumes a handled
// message so the next pass does not see it again.
type MessageSource interface {
	Messages(ctx context.Context) ([]Message, error)
	Ack(ctx context.Context, id string) error
}

// Flow is the login-only page flow against an acceptance link.
type Flow interface {
	AcceptByURL(ctx context.Context, url string) error
}

// OrderMarker flips the accepted flag in the store.
type OrderMarker interface {
	SetAccepted(ctx context.Context, orderNumber int64, accepted bool) error
}

// Acceptor runs one acceptance pass over all pending messages.
type Acceptor struct {
	Source MessageSource
	Flow   Flow
	Orders OrderMarker
	Logger *slog.Logger
}

func (a *Acceptor) log() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Run processes every pending message. A malformed message or a failed flow
// is logged and left unacked for the next pass; only a broken source stops
// the run. Returns the number of orders accepted.
func (a *Acceptor) Run(ctx context.Context) (int, error) {
	msgs, err := a.Source.Messages(ctx)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		a.log().Info("no pending acceptance mails")
		return 0, nil
	}

	accepted := 0
	for i, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return accepted, err
		}
		log := a.log().With(slog.String("message", msg.ID))

		url, err := ExtractFirstHref(msg.Body)
		if err != nil {
			log.Warn("skipping message without link")
			continue
		}
		params, err := ParseAcceptParams(url)
		if err != nil {
			log.Warn("skipping message", slog.Any("error", err))
			continue
		}

		if err := a.Flow.AcceptByURL(ctx, url); err != nil {
			log.Error("acceptance flow failed", slog.Any("error", err))
			continue
		}
		if err := a.Orders.SetAccepted(ctx, params.OrderNumber, true); err != nil {
			log.Error("mark order accepted", slog.Any("error", err))
			continue
		}
		if err := a.Source.Ack(ctx, msg.ID); err != nil {
			log.Error("ack message", slog.Any("error", err))
		}

		accepted++
		log.Info(fmt.Sprintf("[%d/%d] order accepted", i+1, len(msgs)),
			slog.Int64("order", params.OrderNumber))
	}
	return accepted, nil
}

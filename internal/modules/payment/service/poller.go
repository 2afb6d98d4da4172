package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"anoa.com/runclub/internal/modules/payment/dto"
	"anoa.com/runclub/internal/modules/payment/gateway"
	"anoa.com/runclub/pkg/apperror"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type LinkFetcher interface {
	FetchPaymentLink(ctx context.Context, linkID string) (*gateway.PaymentLink, error)
}

type PollerOptions struct {
	Store    SessionStore
	Links    LinkFetcher
	Bookings BookingRecorder
	Interval time.Duration
	Log      logrus.FieldLogger
}

// Poller re-polls pending QR sessions on a fixed interval until they reach
// a terminal state or pass their deadline.
type Poller struct {
	store    SessionStore
	links    LinkFetcher
	bookings BookingRecorder
	interval time.Duration
	log      logrus.FieldLogger
	now      func() time.Time

	starts chan string
}

func NewPoller(opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Poller{
		store:    opts.Store,
		links:    opts.Links,
		bookings: opts.Bookings,
		interval: opts.Interval,
		log:      opts.Log,
		now:      time.Now,
		starts:   make(chan string, 64),
	}
}

// Watch queues a session for polling. It never blocks the caller.
func (p *Poller) Watch(sessionID string) {
	select {
	case p.starts <- sessionID:
	default:
		p.log.WithField("session_id", sessionID).Warn("qr poller queue full, session will rely on webhook")
	}
}

// Run starts one watcher per queued session and returns after ctx is done
// and every watcher has stopped.
func (p *Poller) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case id := <-p.starts:
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.watch(ctx, id)
			}()
		}
	}
}

func (p *Poller) watch(ctx context.Context, id string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			session, err := p.PollOnce(ctx, id)
			if errors.Is(err, apperror.ErrNotFound) {
				return
			}
			if err != nil {
				p.log.WithError(err).WithField("session_id", id).Warn("qr poll failed")
				continue
			}
			if session.Terminal() {
				return
			}
		}
	}
}

// PollOnce advances a session by one poll. Gateway failures leave the
// session pending for the next tick; the deadline still applies. Changes are
// written to the latest stored copy, so a session settled elsewhere while
// the gateway call was in flight keeps its terminal state.
func (p *Poller) PollOnce(ctx context.Context, id string) (*dto.QRSession, error) {
	session, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Terminal() {
		return session, nil
	}

	now := p.now()
	if !now.Before(session.Deadline) {
		updated, err := p.store.Update(ctx, id, func(s *dto.QRSession) bool {
			if s.Terminal() || now.Before(s.Deadline) {
				return false
			}
			s.Status = dto.StatusTimeout
			s.UpdatedAt = now
			return true
		})
		if err == nil && updated.Status == dto.StatusTimeout {
			p.log.WithFields(logrus.Fields{
				"session_id": id,
				"attempts":   updated.Attempts,
			}).Info("qr session timed out")
		}
		return updated, err
	}

	var (
		status    string
		paymentID string
		bookingID *uuid.UUID
	)

	link, err := p.links.FetchPaymentLink(ctx, session.PaymentLinkID)
	if err != nil {
		p.log.WithError(err).WithField("session_id", id).Warn("failed to fetch payment link")
	} else {
		switch status = MapLinkStatus(link.Status); status {
		case dto.StatusPaid:
			paymentID = link.CapturedPaymentID()
			if paymentID == "" {
				status = dto.StatusPending
				break
			}
			amount, currency := link.AmountPaid, link.Currency
			if amount <= 0 {
				amount, currency = session.Amount, session.Currency
			}
			booking, _, recErr := p.bookings.Record(ctx, bookingInput(session.UserID, session.EventID, paymentID, "", amount, currency))
			if recErr != nil {
				if _, err := p.store.Update(ctx, id, p.countAttempt(now, "", "", nil)); err != nil {
					p.log.WithError(err).WithField("session_id", id).Warn("failed to save qr session")
				}
				return nil, recErr
			}
			bookingID = &booking.ID
		}
	}

	return p.store.Update(ctx, id, p.countAttempt(now, status, paymentID, bookingID))
}

// countAttempt records one poll on a still pending session and applies a
// terminal status when the gateway reported one.
func (p *Poller) countAttempt(now time.Time, status, paymentID string, bookingID *uuid.UUID) Mutator {
	return func(s *dto.QRSession) bool {
		if s.Terminal() {
			return false
		}
		s.Attempts++
		s.UpdatedAt = now
		switch status {
		case dto.StatusPaid:
			s.Status = dto.StatusPaid
			s.PaymentID = paymentID
			s.BookingID = bookingID
		case dto.StatusExpired, dto.StatusFailed:
			s.Status = status
		}
		return true
	}
}

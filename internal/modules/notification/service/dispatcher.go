package service

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/runclub/internal/entity"
	"anoa.com/runclub/internal/modules/mention"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const previewLength = 50

type SourceKind string

const (
	SourcePost    SourceKind = "post"
	SourceComment SourceKind = "comment"
)

type Actor struct {
	UserID      uuid.UUID
	DisplayName string
}

type DispatchInput struct {
	Text      string
	Roster    mention.Roster
	Actor     Actor
	Kind      SourceKind
	PostID    uuid.UUID
	CommentID *uuid.UUID
}

// Dispatcher turns resolved mentions into notifications.
type Dispatcher struct {
	notifications NotificationService
	log           logrus.FieldLogger
}

func NewDispatcher(notifications NotificationService, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{notifications: notifications, log: log}
}

// Dispatch writes one notification per distinct mentioned member other than
// the actor. Every recipient is attempted; the joined failures are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, in DispatchInput) error {
	recipients := mention.UserIDs(mention.Parse(in.Text, in.Roster))
	if len(recipients) == 0 {
		return nil
	}

	actorID := in.Actor.UserID
	message := fmt.Sprintf("%s mentioned you in a %s: \"%s\"", in.Actor.DisplayName, in.Kind, Preview(in.Text))

	var errs []error
	for _, raw := range recipients {
		recipient, err := uuid.Parse(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("recipient %q: %w", raw, err))
			continue
		}
		if recipient == actorID {
			continue
		}

		postID := in.PostID
		n := &entity.Notification{
			UserID:    recipient,
			ActorID:   &actorID,
			Type:      entity.NotificationTypeMention,
			Title:     "New mention",
			Message:   message,
			PostID:    &postID,
			CommentID: in.CommentID,
		}
		if err := d.notifications.CreateNotification(ctx, n); err != nil {
			d.log.WithError(err).WithField("recipient", recipient).Warn("failed to create mention notification")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Preview truncates text to 50 characters followed by "..." when longer.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}

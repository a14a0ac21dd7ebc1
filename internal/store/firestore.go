package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/chadiek/interview-coach/internal/interview"
)

// Collection holds one document per session, conversation included.
const Collection = "discussionRooms"

// Firestore stores sessions as documents whose conversation is an array
// field appended with ArrayUnion.
type Firestore struct {
	client *firestore.Client
	now    func() time.Time
}

// NewFirestore opens a client for the given project.
func NewFirestore(ctx context.Context, projectID string) (*Firestore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Firestore{client: client, now: time.Now}, nil
}

// Close releases the client.
func (f *Firestore) Close() error { return f.client.Close() }

func (f *Firestore) doc(id string) *firestore.DocumentRef {
	return f.client.Collection(Collection).Doc(id)
}

func (f *Firestore) Create(ctx context.Context, s *interview.Session) (string, error) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	doc := sessionToDoc(prepare(s, id, f.now()))
	if _, err := f.doc(id).Create(ctx, doc); err != nil {
		return "", fmt.Errorf("firestore Create: %w", err)
	}
	return id, nil
}

func (f *Firestore) Get(ctx context.Context, id string) (*interview.Session, error) {
	snap, err := f.doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("firestore Get: %w", err)
	}
	return decode(snap)
}

func (f *Firestore) AppendTurn(ctx context.Context, id string, t interview.Turn) error {
	updates := []firestore.Update{
		{Path: fieldConversation, Value: firestore.ArrayUnion(turnToDoc(t))},
		{Path: fieldUpdatedAt, Value: isoTime(f.now())},
	}
	if t.Speaker == interview.SpeakerInterviewer {
		updates = append(updates, firestore.Update{Path: fieldTotalQuestions, Value: firestore.Increment(1)})
	}
	if _, err := f.doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("firestore AppendTurn: %w", err)
	}
	return nil
}

// SetStatus reads and writes in one transaction so a completed session can
// never be reopened by a concurrent writer.
func (f *Firestore) SetStatus(ctx context.Context, id string, st interview.Status, extra interview.StatusExtra) error {
	if extra.At.IsZero() {
		extra.At = f.now()
	}
	ref := f.doc(id)
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		cur, err := decode(snap)
		if err != nil {
			return err
		}
		if err := applyStatus(cur, st, extra); err != nil {
			return err
		}
		return tx.Update(ref, statusUpdates(cur))
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCompleted):
		return ErrCompleted
	case status.Code(err) == codes.NotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("firestore SetStatus: %w", err)
	}
}

func statusUpdates(s *interview.Session) []firestore.Update {
	updates := []firestore.Update{
		{Path: fieldStatus, Value: string(s.Status)},
		{Path: fieldUpdatedAt, Value: isoTime(s.UpdatedAt)},
	}
	switch s.Status {
	case interview.StatusPaused:
		updates = append(updates, firestore.Update{Path: fieldPausedAt, Value: isoTimePtr(s.PausedAt)})
	case interview.StatusActive:
		updates = append(updates, firestore.Update{Path: fieldResumedAt, Value: isoTimePtr(s.ResumedAt)})
	case interview.StatusCompleted:
		updates = append(updates,
			firestore.Update{Path: fieldCompletedAt, Value: isoTimePtr(s.CompletedAt)},
			firestore.Update{Path: fieldIsCompleted, Value: true},
		)
		if s.DurationMinutes != nil {
			updates = append(updates, firestore.Update{Path: fieldDuration, Value: *s.DurationMinutes})
		}
		if s.Feedback != nil {
			updates = append(updates, firestore.Update{Path: fieldFeedback, Value: *s.Feedback})
		}
		if s.Score != nil {
			updates = append(updates, firestore.Update{Path: fieldScore, Value: *s.Score})
		}
	}
	return updates
}

// ListByRequester returns a requester's sessions, newest first.
func (f *Firestore) ListByRequester(ctx context.Context, requesterID string, limit int) ([]*interview.Session, error) {
	q := f.client.Collection(Collection).
		Where(fieldUserID, "==", requesterID).
		OrderBy(fieldCreatedAt, firestore.Desc).
		Limit(clampLimit(limit))

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*interview.Session
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListByRequester: %w", err)
		}
		s, err := decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decode(snap *firestore.DocumentSnapshot) (*interview.Session, error) {
	var d sessionDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", snap.Ref.ID, err)
	}
	s, err := sessionFromDoc(snap.Ref.ID, d)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", snap.Ref.ID, err)
	}
	return s, nil
}

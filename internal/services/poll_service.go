// Package services – PollService
//
// Clients have no push channel; they call the poll endpoint periodically.
// One poll refreshes the caller's presence and returns everything that
// changed for them: new messages in the room they are looking at, who else
// is online, and chats they joined since their last poll.
package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-geochat-backend/internal/domain"
	"github.com/tbourn/go-geochat-backend/internal/repo"
)

const (
	pollMessageLimit = 100
	pollOnlineLimit  = 100

	// OnlineWindow is how recently a user must have been seen to count as
	// online, and the default look-back of the joined-chats feed.
	OnlineWindow = 5 * time.Minute
)

// PollService aggregates the data returned by a poll.
type PollService struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewPollService wires a PollService.
func NewPollService(db *gorm.DB) *PollService {
	return &PollService{DB: db}
}

// PollInput carries the poll parameters.
type PollInput struct {
	ChatToken     string
	LastMessageID uint
	Latitude      *float64
	Longitude     *float64
	// Since bounds the joined-chats feed; nil means OnlineWindow ago.
	Since *time.Time
}

// PollResult is the aggregated poll response.
type PollResult struct {
	ChatToken string
	Messages  []repo.MessageRow
	Online    []domain.User
	Joined    []repo.JoinedChatRow
	Now       time.Time
}

// Poll refreshes u's presence (and location when both coordinates are
// given) and gathers the update feed. Messages are only returned when u is
// a member of the requested chat.
func (s *PollService) Poll(ctx context.Context, u *domain.User, in PollInput) (*PollResult, error) {
	ctx, span := otel.Tracer("services/PollService").Start(ctx, "Poll",
		trace.WithAttributes(
			attribute.Int("user.id", int(u.ID)),
			attribute.Int("last_message_id", int(in.LastMessageID)),
		),
	)
	defer span.End()

	ts := now(s.Now)
	fields := map[string]any{"online": true, "last_seen_at": ts}
	if in.Latitude != nil && in.Longitude != nil {
		fields["latitude"] = *in.Latitude
		fields["longitude"] = *in.Longitude
	}
	if err := repo.UpdateUser(ctx, s.DB, u.ID, fields); err != nil {
		return nil, err
	}

	since := ts.Add(-OnlineWindow)
	if in.Since != nil {
		since = in.Since.UTC()
	}

	res := &PollResult{
		ChatToken: in.ChatToken,
		Messages:  []repo.MessageRow{},
		Now:       ts,
	}

	msgs, err := s.newMessages(ctx, u, in.ChatToken, in.LastMessageID)
	if err != nil {
		return nil, err
	}
	if msgs != nil {
		res.Messages = msgs
	}

	if res.Online, err = repo.ListOnlineSince(ctx, s.DB, u.ID, ts.Add(-OnlineWindow), pollOnlineLimit); err != nil {
		return nil, err
	}
	if res.Joined, err = repo.ListMembershipsSince(ctx, s.DB, u.ID, since); err != nil {
		return nil, err
	}
	return res, nil
}

// newMessages returns nil when the chat does not exist or u is not in it.
func (s *PollService) newMessages(ctx context.Context, u *domain.User, chatToken string, after uint) ([]repo.MessageRow, error) {
	chat, err := repo.GetChatByToken(ctx, s.DB, chatToken)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	ok, err := repo.IsMember(ctx, s.DB, chat.ID, u.ID)
	if err != nil || !ok {
		return nil, err
	}
	return repo.ListMessagesSince(ctx, s.DB, chat.ID, after, pollMessageLimit)
}

// sinceLayouts are the accepted formats of a client-supplied poll
// timestamp, tried in order.
var sinceLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseSince parses a client timestamp. Values without a zone are read as
// UTC. ok is false for blank or unparseable input.
func ParseSince(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range sinceLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

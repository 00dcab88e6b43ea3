package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/canchallena/panel/internal/calendar"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/repository"
)

const (
	conversationScan    = 500
	threadLimit         = 100
	detailMessages      = 5
	detailBookings      = 5
	rawMessageKeyPrefix = "raw-"
)

// ThreadMessage is one entry of the merged message history. Inbound rows
// have no numeric id and are keyed "raw-<uuid>".
type ThreadMessage struct {
	Key       string          `json:"id"`
	SenderID  string          `json:"sender_id"`
	Channel   *string         `json:"canal"`
	Direction model.Direction `json:"direccion"`
	Content   string          `json:"contenido"`
	MessageID *string         `json:"message_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// Conversation summarizes one sender's history.
type Conversation struct {
	SenderID     string    `json:"sender_id"`
	Name         *string   `json:"nombre"`
	Phone        *string   `json:"telefono"`
	Channel      *string   `json:"canal"`
	LastMessage  string    `json:"last_message"`
	LastAt       time.Time `json:"last_timestamp"`
	MessageCount int       `json:"message_count"`
}

// ClientDetail is the expanded row of the client list.
type ClientDetail struct {
	Client   *model.Client   `json:"cliente"`
	Messages []ThreadMessage `json:"mensajes"`
	Bookings []model.Booking `json:"reservas"`
}

type ClientService struct {
	clientRepo  repository.ClientRepository
	messageRepo repository.MessageRepository
	bookingRepo repository.BookingRepository
	log         *zap.Logger
}

func NewClientService(
	clientRepo repository.ClientRepository,
	messageRepo repository.MessageRepository,
	bookingRepo repository.BookingRepository,
	log *zap.Logger,
) *ClientService {
	return &ClientService{
		clientRepo:  clientRepo,
		messageRepo: messageRepo,
		bookingRepo: bookingRepo,
		log:         log,
	}
}

func (s *ClientService) Search(ctx context.Context, f repository.ClientFilter, page, pageSize int) (calendar.Page[model.Client], error) {
	limit, offset := calendar.PageOffset(page, pageSize)
	clients, total, err := s.clientRepo.Search(ctx, f, limit, offset)
	if err != nil {
		return calendar.Page[model.Client]{}, fmt.Errorf("search clients: %w", err)
	}
	return calendar.NewPage(clients, page, pageSize, total), nil
}

func (s *ClientService) FindByPhone(ctx context.Context, phone string) (*model.Client, error) {
	c, err := s.clientRepo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, notFound("client", err)
	}
	return c, nil
}

// Detail returns a client with the five newest messages of either direction
// and the five newest bookings made under its id or phone.
func (s *ClientService) Detail(ctx context.Context, id string) (*ClientDetail, error) {
	c, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("client", err)
	}

	msgs, err := s.history(ctx, repository.MessageFilter{SenderID: c.SenderID, Limit: 10})
	if err != nil {
		return nil, err
	}
	if len(msgs) > detailMessages {
		msgs = msgs[:detailMessages]
	}

	bookings, _, err := s.bookingRepo.List(ctx, repository.BookingFilter{
		ClientID: c.ID,
		Phone:    model.StringValue(c.Phone),
		Newest:   true,
	}, detailBookings, 0)
	if err != nil {
		return nil, fmt.Errorf("client bookings: %w", err)
	}
	return &ClientDetail{Client: c, Messages: msgs, Bookings: bookings}, nil
}

// Thread returns one sender's messages of both directions, oldest first.
func (s *ClientService) Thread(ctx context.Context, senderID string) ([]ThreadMessage, error) {
	if strings.TrimSpace(senderID) == "" {
		return nil, invalid("sender_id", "es obligatorio")
	}
	msgs, err := s.history(ctx, repository.MessageFilter{SenderID: senderID, Limit: threadLimit, Ascending: true})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

// Conversations groups the latest messages per sender, most recent first.
// A non-empty search keeps senders whose name, id or phone contains it.
func (s *ClientService) Conversations(ctx context.Context, search string) ([]Conversation, error) {
	msgs, err := s.history(ctx, repository.MessageFilter{Limit: conversationScan})
	if err != nil {
		return nil, err
	}

	var senders []string
	bySender := map[string]*Conversation{}
	for _, m := range msgs {
		conv, ok := bySender[m.SenderID]
		if !ok {
			conv = &Conversation{
				SenderID:    m.SenderID,
				Channel:     m.Channel,
				LastMessage: m.Content,
				LastAt:      m.CreatedAt,
			}
			bySender[m.SenderID] = conv
			senders = append(senders, m.SenderID)
		}
		conv.MessageCount++
	}

	clients, err := s.clientRepo.ListBySenderIDs(ctx, senders)
	if err != nil {
		s.log.Warn("conversation clients not loaded", zap.Error(err))
	}
	for i := range clients {
		c := &clients[i]
		conv := bySender[c.SenderID]
		if conv == nil {
			continue
		}
		conv.Name = c.Name
		conv.Phone = c.Phone
		if conv.Channel == nil && c.Channel != nil {
			ch := string(*c.Channel)
			conv.Channel = &ch
		}
	}

	q := strings.ToLower(strings.TrimSpace(search))
	out := make([]Conversation, 0, len(senders))
	for _, id := range senders {
		conv := bySender[id]
		if q != "" &&
			!strings.Contains(strings.ToLower(model.StringValue(conv.Name)), q) &&
			!strings.Contains(strings.ToLower(conv.SenderID), q) &&
			!strings.Contains(strings.ToLower(model.StringValue(conv.Phone)), q) {
			continue
		}
		out = append(out, *conv)
	}
	return out, nil
}

// history merges both message logs under f, newest first. f.Limit applies to
// each log separately. One log failing is tolerated; both failing is not.
func (s *ClientService) history(ctx context.Context, f repository.MessageFilter) ([]ThreadMessage, error) {
	outbound, outErr := s.messageRepo.ListOutbound(ctx, f)
	inbound, inErr := s.messageRepo.ListInbound(ctx, f)
	if outErr != nil && inErr != nil {
		return nil, fmt.Errorf("list messages: %w", outErr)
	}
	if outErr != nil {
		s.log.Warn("outbound messages not loaded", zap.Error(outErr))
	}
	if inErr != nil {
		s.log.Warn("inbound messages not loaded", zap.Error(inErr))
	}

	out := make([]ThreadMessage, 0, len(outbound)+len(inbound))
	for _, m := range outbound {
		out = append(out, ThreadMessage{
			Key:       strconv.FormatInt(m.ID, 10),
			SenderID:  m.SenderID,
			Channel:   m.Channel,
			Direction: m.Direction,
			Content:   model.StringValue(m.Content),
			MessageID: m.MessageID,
			CreatedAt: m.CreatedAt,
		})
	}
	for _, m := range inbound {
		out = append(out, ThreadMessage{
			Key:       rawMessageKeyPrefix + m.ID,
			SenderID:  m.SenderID,
			Channel:   m.Channel,
			Direction: model.DirectionInbound,
			Content:   model.StringValue(m.Text),
			MessageID: m.MessageID,
			CreatedAt: m.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"companion-ai-engine/internal/domain"
	"companion-ai-engine/internal/domain/model"
	"companion-ai-engine/internal/domain/ports/repository"
	"companion-ai-engine/internal/infra/metrics"
)

var _ repository.ConversationStore = (*ConversationStore)(nil)

const convKeyPrefix = "conv:"

// go-redis hands back the raw PTTL sentinel replies as durations in
// nanoseconds: -1 means the key exists without an expiry, -2 means no
// such key.
const (
	pttlNoExpiry   = time.Duration(-1)
	pttlMissingKey = time.Duration(-2)
)

// ConversationStore keeps conversation state in Redis under a sliding TTL.
// Every read-modify-write rewrites the key with the full window, so an
// active conversation never expires mid-exchange. Writers on the same id
// are last-writer-wins; a conversation has one logical writer in flight at
// a time (the human turn or one worker).
type ConversationStore struct {
	client RedisClient
	audit  repository.AuditLogRepository
	ttl    time.Duration
	log    *zerolog.Logger
}

func NewConversationStore(client RedisClient, audit repository.AuditLogRepository, ttl time.Duration, logger *zerolog.Logger) *ConversationStore {
	slog := logger.With().Str("component", "ConversationStore").Logger()
	return &ConversationStore{
		client: client,
		audit:  audit,
		ttl:    ttl,
		log:    &slog,
	}
}

func convKey(id string) string { return convKeyPrefix + id }

func (s *ConversationStore) Start(ctx context.Context, spec repository.StartSpec) (*model.Conversation, error) {
	if spec.UserID == "" {
		return nil, domain.ErrInvalidArgument
	}
	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	conv := model.NewConversation(id, spec.UserID, spec.Type)
	conv.AIRules = spec.AIRules
	for k, v := range spec.Metadata {
		conv.Metadata[k] = v
	}
	if err := s.write(ctx, conv); err != nil {
		return nil, err
	}
	metrics.IncConversationStarted()
	s.log.Debug().Str("conversation_id", id).Str("user_id", spec.UserID).
		Str("type", string(spec.Type)).Msg("conversation started")
	return conv, nil
}

func (s *ConversationStore) AppendMessage(ctx context.Context, id string, msg model.ChatMessage) (*model.Conversation, error) {
	conv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.Status != model.ConversationActive {
		return nil, domain.ErrConversationNotActive
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	conv.Append(msg)
	if err := s.write(ctx, conv); err != nil {
		return nil, err
	}
	metrics.IncMessageAppended(string(msg.Type))
	return conv, nil
}

// Get loads a conversation and double-checks the logical deadline against
// LastActivity. An entry the backing store should already have expired is
// deleted on sight, so callers never observe a stale conversation even when
// the store's TTL granularity lags the logical one.
func (s *ConversationStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if time.Since(conv.LastActivity) > s.ttl {
		if err := s.client.Del(ctx, convKey(id)); err != nil {
			s.log.Warn().Err(err).Str("conversation_id", id).Msg("stale conversation delete failed")
		}
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

func (s *ConversationStore) End(ctx context.Context, id string) (*model.ConversationSummary, error) {
	conv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := summarize(conv)

	if err := s.client.Del(ctx, convKey(id)); err != nil {
		return nil, err
	}
	metrics.IncConversationEnded()

	// Cascade audit cleanup is best-effort; losing it must not fail End.
	if n, err := s.audit.DeleteByConversation(ctx, id); err != nil {
		s.log.Error().Err(err).Str("conversation_id", id).Msg("audit cascade delete failed")
	} else if n > 0 {
		s.log.Debug().Str("conversation_id", id).Int64("rows", n).Msg("audit rows deleted")
	}
	return summary, nil
}

// Sweep walks conversation keys and deletes orphans: entries that carry no
// TTL marker, typically left behind by a crash between key creation and
// expiry setup. Deletion cascades to audit rows.
func (s *ConversationStore) Sweep(ctx context.Context) (int, error) {
	var (
		cursor uint64
		swept  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, convKeyPrefix+"*", 100)
		if err != nil {
			return swept, err
		}
		for _, key := range keys {
			pttl, err := s.client.PTTL(ctx, key)
			if err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("pttl check failed")
				continue
			}
			if pttl == pttlMissingKey {
				continue // expired between SCAN and PTTL
			}
			if pttl != pttlNoExpiry {
				continue // healthy entry with a live expiry
			}
			if err := s.client.Del(ctx, key); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("orphan delete failed")
				continue
			}
			id := strings.TrimPrefix(key, convKeyPrefix)
			if _, err := s.audit.DeleteByConversation(ctx, id); err != nil {
				s.log.Error().Err(err).Str("conversation_id", id).Msg("audit cascade delete failed")
			}
			swept++
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if swept > 0 {
		metrics.AddConversationsSwept(swept)
		s.log.Info().Int("count", swept).Msg("orphaned conversations swept")
	}
	return swept, nil
}

func (s *ConversationStore) load(ctx context.Context, id string) (*model.Conversation, error) {
	data, err := s.client.Get(ctx, convKey(id))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	var conv model.Conversation
	if err := json.Unmarshal([]byte(data), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// write serializes and rewrites the key with the full TTL window.
func (s *ConversationStore) write(ctx context.Context, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, convKey(conv.ID), data, s.ttl)
}

func summarize(conv *model.Conversation) *model.ConversationSummary {
	sum := &model.ConversationSummary{
		ID:           conv.ID,
		UserID:       conv.UserID,
		MessageCount: len(conv.Messages),
		Duration:     time.Since(conv.StartTime),
	}
	for _, m := range conv.Messages {
		switch m.Type {
		case model.MessageUser:
			sum.UserMessages++
		case model.MessageBot:
			sum.BotMessages++
		}
	}
	return sum
}

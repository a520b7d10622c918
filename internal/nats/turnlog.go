package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/helpdesk-ai/support-engine/internal/model"
)

const (
	// StreamName is the name of the conversation turn stream.
	StreamName = "TURNS"

	// SubjectPrefix is the prefix for all turn subjects.
	SubjectPrefix = "turn"
)

// TurnLog is the append-only conversation store: one JetStream stream holding
// every turn, keyed by conversation id in the subject.
type TurnLog struct {
	client *Client
}

// NewTurnLog creates a turn log over an established client.
func NewTurnLog(client *Client) *TurnLog {
	return &TurnLog{client: client}
}

// EnsureStream ensures the turn stream exists with proper configuration.
func (l *TurnLog) EnsureStream(ctx context.Context) error {
	js := l.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	// Turns are immutable once appended; the stream enforces that.
	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      365 * 24 * time.Hour,
		MaxBytes:    100 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "All conversation turns",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// TurnSubject returns the subject for a turn.
func TurnSubject(conversationID string, speaker model.Speaker) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, conversationID, speaker)
}

// ConversationFilter returns the filter subject for all turns in a
// conversation.
func ConversationFilter(conversationID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, conversationID)
}

// Append publishes a turn and returns its stream sequence.
func (l *TurnLog) Append(ctx context.Context, turn *model.Turn) (uint64, error) {
	subject := TurnSubject(turn.ConversationID, turn.Speaker)

	data, err := json.Marshal(turn)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal turn: %w", err)
	}

	ack, err := l.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish turn: %w", err)
	}

	return ack.Sequence, nil
}

// Turns retrieves the ordered history for a conversation. An unknown
// conversation yields an empty history.
func (l *TurnLog) Turns(ctx context.Context, conversationID string) ([]model.Turn, error) {
	turns, _, _, err := l.Page(ctx, conversationID, 0, 1000)
	return turns, err
}

// Page retrieves turns starting after a stream sequence, up to limit.
func (l *TurnLog) Page(ctx context.Context, conversationID string, afterSequence uint64, limit int) ([]model.Turn, uint64, bool, error) {
	js := l.client.JetStream()

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: ConversationFilter(conversationID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}

	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := js.CreateConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	var turns []model.Turn
	var lastSequence uint64

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch turns: %w", err)
	}

	for msg := range batch.Messages() {
		var turn model.Turn
		if err := json.Unmarshal(msg.Data(), &turn); err != nil {
			continue
		}

		meta, err := msg.Metadata()
		if err == nil {
			turn.Sequence = meta.Sequence.Stream
			lastSequence = meta.Sequence.Stream
		}

		turns = append(turns, turn)
	}

	if batch.Error() != nil && batch.Error() != context.DeadlineExceeded {
		return nil, 0, false, fmt.Errorf("batch error: %w", batch.Error())
	}

	hasMore := len(turns) == limit

	return turns, lastSequence, hasMore, nil
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSender struct {
	sent []tgbotapi.Chattable
}

func (r *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.sent = append(r.sent, c)
	return tgbotapi.Message{}, nil
}

type recordingPublisher struct {
	keys []string
	msgs []amqp.Publishing
	err  error
}

func (r *recordingPublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	r.keys = append(r.keys, key)
	r.msgs = append(r.msgs, msg)
	return r.err
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, Event) error { return errors.New("down") }
func (failingNotifier) Close() error                        { return nil }

func TestTelegram_OnlyJobFailures(t *testing.T) {
	sender := &recordingSender{}
	tg := &Telegram{bot: sender, chatID: 7, logger: zap.NewNop()}

	require.NoError(t, tg.Notify(context.Background(), Event{Type: EventOutreachRecorded}))
	assert.Empty(t, sender.sent)

	require.NoError(t, tg.Notify(context.Background(), Event{
		Type: EventJobFailed, JobID: 3, Platform: "reddit", Message: "campaign <5> not found",
	}))
	require.Len(t, sender.sent, 1)
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(7), msg.ChatID)
	assert.Contains(t, msg.Text, "job #3")
	assert.Contains(t, msg.Text, "campaign &lt;5&gt; not found")
}

func TestAMQP_PublishesJSON(t *testing.T) {
	pub := &recordingPublisher{}
	a := &AMQP{channel: pub, exchange: "outreach.events", logger: zap.NewNop()}

	event := Event{
		Type: EventOutreachRecorded, JobID: 1, Platform: "reddit",
		Candidate: "alice", Status: "success", Time: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, a.Notify(context.Background(), event))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "outreach.recorded", pub.keys[0])
	assert.Equal(t, "application/json", pub.msgs[0].ContentType)

	var decoded Event
	require.NoError(t, json.Unmarshal(pub.msgs[0].Body, &decoded))
	assert.Equal(t, event, decoded)
}

func TestAMQP_PublishError(t *testing.T) {
	a := &AMQP{channel: &recordingPublisher{err: errors.New("channel closed")}, logger: zap.NewNop()}
	assert.Error(t, a.Notify(context.Background(), Event{Type: EventCycleFinished}))
}

func TestMulti(t *testing.T) {
	sender := &recordingSender{}
	m := Multi{failingNotifier{}, &Telegram{bot: sender, logger: zap.NewNop()}, Nop{}}

	err := m.Notify(context.Background(), Event{Type: EventJobFailed})
	assert.Error(t, err)
	assert.Len(t, sender.sent, 1)
	assert.NoError(t, m.Close())
}

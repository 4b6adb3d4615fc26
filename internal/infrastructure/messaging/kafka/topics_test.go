package kafka

import (
	"context"
	stdliberrors "errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/internal/testutil"
	"github.com/turtacn/rxntd/pkg/errors"
)

type mockConn struct {
	mock.Mock
}

func (m *mockConn) CreateTopics(topics ...kafka.TopicConfig) error {
	args := m.Called(topics)
	return args.Error(0)
}

func (m *mockConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	args := m.Called(topics)
	parts, _ := args.Get(0).([]kafka.Partition)
	return parts, args.Error(1)
}

func (m *mockConn) Close() error {
	return m.Called().Error(0)
}

func TestNewTopics(t *testing.T) {
	assert.Equal(t, Topics{
		RunRequested: TopicRunRequested,
		RunCompleted: TopicRunCompleted,
		DeadLetter:   TopicDeadLetter,
	}, NewTopics(""))

	assert.Equal(t, "staging.rxntd.run.completed", NewTopics("staging").RunCompleted)
	assert.Equal(t, "staging.rxntd.run.completed", NewTopics("staging.").RunCompleted)
}

func TestDefaultTopics(t *testing.T) {
	topics := DefaultTopics(NewTopics("dev"))
	require.Len(t, topics, 3)
	for _, tc := range topics {
		assert.Contains(t, tc.Name, "dev.rxntd.")
		assert.Greater(t, tc.RetentionMs, int64(0))
	}
}

func TestCreateTopic(t *testing.T) {
	conn := &mockConn{}
	conn.On("CreateTopics", mock.MatchedBy(func(cfgs []kafka.TopicConfig) bool {
		return len(cfgs) == 1 && cfgs[0].Topic == TopicRunRequested &&
			len(cfgs[0].ConfigEntries) == 1 && cfgs[0].ConfigEntries[0].ConfigValue == "1000"
	})).Return(nil)

	m := newTopicManagerWithConn(conn, testutil.NewNopLogger())
	err := m.CreateTopic(context.Background(), TopicConfig{Name: TopicRunRequested, NumPartitions: 1, ReplicationFactor: 1, RetentionMs: 1000})
	require.NoError(t, err)
	conn.AssertExpectations(t)
}

func TestCreateTopic_AlreadyExists(t *testing.T) {
	conn := &mockConn{}
	conn.On("CreateTopics", mock.Anything).Return(stdliberrors.New("topic exists"))
	conn.On("ReadPartitions", []string{TopicDeadLetter}).Return([]kafka.Partition{{Topic: TopicDeadLetter}}, nil)

	m := newTopicManagerWithConn(conn, nil)
	require.NoError(t, m.CreateTopic(context.Background(), TopicConfig{Name: TopicDeadLetter, NumPartitions: 1, ReplicationFactor: 1}))
}

func TestCreateTopic_Failure(t *testing.T) {
	conn := &mockConn{}
	conn.On("CreateTopics", mock.Anything).Return(stdliberrors.New("not controller"))
	conn.On("ReadPartitions", mock.Anything).Return(nil, stdliberrors.New("unknown topic"))

	m := newTopicManagerWithConn(conn, nil)
	err := m.CreateTopic(context.Background(), TopicConfig{Name: "x", NumPartitions: 1, ReplicationFactor: 1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessagingError))
}

func TestCreateTopic_Validation(t *testing.T) {
	m := newTopicManagerWithConn(&mockConn{}, nil)
	ctx := context.Background()
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{}))
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{Name: "x"}))
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{Name: "x", NumPartitions: 1}))
}

func TestEventEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEventEnvelope(EventRunRequested, "test", RunRequestedPayload{Input: "s3://in/rxn.tsv", Source: "lab"})
	require.NoError(t, err)
	env.TraceID = "trace-1"

	pm, err := env.ToMessage(TopicRunRequested, "rxn.tsv")
	require.NoError(t, err)
	assert.Equal(t, []byte("rxn.tsv"), pm.Key)
	assert.Equal(t, "trace-1", pm.Headers["trace_id"])
	assert.Equal(t, EventRunRequested, pm.Headers["event_type"])

	decoded, err := MessageToEventEnvelope(&Message{Topic: pm.Topic, Value: pm.Value})
	require.NoError(t, err)
	assert.Equal(t, env.EventID, decoded.EventID)

	var payload RunRequestedPayload
	require.NoError(t, decoded.DecodePayload(&payload))
	assert.Equal(t, "s3://in/rxn.tsv", payload.Input)
	assert.Equal(t, "lab", payload.Source)
}

func TestEventEnvelope_Errors(t *testing.T) {
	_, err := MessageToEventEnvelope(&Message{})
	assert.Error(t, err)

	_, err = MessageToEventEnvelope(&Message{Value: []byte("{")})
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))

	env := &EventEnvelope{EventID: "e1"}
	var p RunRequestedPayload
	assert.Error(t, env.DecodePayload(&p))
}

func TestRunPublisher(t *testing.T) {
	pub := &capturePublisher{}
	rp := NewRunPublisher(pub, NewTopics(""), "", testutil.NewNopLogger())

	summary := reaction.NewRunSummary("run-42", time.Now())
	summary.InputRows = 3
	require.NoError(t, rp.PublishRunOutput(context.Background(), summary, "out.tsv"))

	sent := pub.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, TopicRunCompleted, sent[0].Topic)
	assert.Equal(t, []byte("run-42"), sent[0].Key)
	assert.Equal(t, "rxntd", sent[0].Headers["source_service"])

	env, err := MessageToEventEnvelope(&Message{Value: sent[0].Value})
	require.NoError(t, err)
	assert.Equal(t, EventRunCompleted, env.EventType)
	var payload RunCompletedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, "run-42", payload.Summary.RunID)
	assert.Equal(t, 3, payload.Summary.InputRows)
	assert.Equal(t, "out.tsv", payload.Output)
}

func TestRunPublisher_Errors(t *testing.T) {
	pub := &capturePublisher{err: errors.New(errors.ErrCodeMessagingError, "down")}
	rp := NewRunPublisher(pub, NewTopics(""), "rxntd", nil)

	assert.True(t, errors.IsCode(rp.PublishRun(context.Background(), nil), errors.ErrCodeBadRequest))
	err := rp.PublishRun(context.Background(), reaction.NewRunSummary("r", time.Now()))
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessagingError))
}

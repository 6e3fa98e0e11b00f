package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lingualign/features/alignment"
	"lingualign/internal/align"
	"lingualign/internal/embedding"
	"lingualign/internal/vector"
)

// --- Mocks ---

type MockJobStore struct {
	mock.Mock
}

func (m *MockJobStore) Get(ctx context.Context, id string) (*alignment.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*alignment.Job), args.Error(1)
}

func (m *MockJobStore) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockJobStore) UpdateCounts(ctx context.Context, id string, counts alignment.Counts) error {
	args := m.Called(ctx, id, counts)
	return args.Error(0)
}

func (m *MockJobStore) GetRows(ctx context.Context, jobID, kind string) ([]align.Record, error) {
	args := m.Called(ctx, jobID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]align.Record), args.Error(1)
}

func (m *MockJobStore) ReplaceAlignedRows(ctx context.Context, jobID string, rows []align.AlignedRow) error {
	args := m.Called(ctx, jobID, rows)
	return args.Error(0)
}

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) StoreRow(ctx context.Context, row vector.RowVector) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *MockVectorStore) DeleteByJob(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

// StubProvider returns a fixed vector per text.
type StubProvider struct {
	vectors map[string][]float32
	err     error
}

func (p *StubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := p.vectors[text]
		if !ok {
			vec = []float32{0, 1}
		}
		out[i] = vec
	}
	return out, nil
}

func defaultOpts() PipelineOptions {
	return PipelineOptions{
		Threshold: 0.35,
		Normalize: align.NormalizeOptions{MinLength: 1, MaxLength: 8000},
		Build: align.BuildOptions{
			Placeholder:            "[UNMATCHED]",
			UnmatchedAsPlaceholder: true,
			IncludeOrphans:         true,
		},
	}
}

func taskMessage(t *testing.T, jobID string) *nsq.Message {
	t.Helper()
	body, err := json.Marshal(alignment.TaskPayload{JobID: jobID, CorrelationID: "corr-1"})
	require.NoError(t, err)
	return nsq.NewMessage(nsq.MessageID{}, body)
}

// --- Tests ---

func TestAlignConsumer_Success(t *testing.T) {
	jobs := new(MockJobStore)
	store := new(MockVectorStore)
	pub := new(MockPublisher)

	// "hello" and "hola" point the same way, "unrelated" is orthogonal.
	provider := &StubProvider{vectors: map[string][]float32{
		"hello":     {1, 0},
		"hola":      {1, 0},
		"unrelated": {0, 1},
	}}
	embedder := embedding.NewAdapter(provider, embedding.Options{})

	consumer := NewAlignConsumer(jobs, store, pub, embedder, defaultOpts())

	jobs.On("Get", mock.Anything, "job-1").Return(&alignment.Job{ID: "job-1"}, nil)
	jobs.On("UpdateStatus", mock.Anything, "job-1", alignment.StatusProcessing, "").Return(nil)
	jobs.On("GetRows", mock.Anything, "job-1", alignment.KindReference).
		Return([]align.Record{{ID: "R1", Content: "hello"}}, nil)
	jobs.On("GetRows", mock.Anything, "job-1", alignment.KindTarget).
		Return([]align.Record{{ID: "T1", Content: "hola"}, {ID: "T2", Content: "unrelated"}}, nil)
	store.On("DeleteByJob", mock.Anything, "job-1").Return(nil)
	store.On("StoreRow", mock.Anything, mock.Anything).Return(nil).Times(3)
	jobs.On("ReplaceAlignedRows", mock.Anything, "job-1", mock.MatchedBy(func(rows []align.AlignedRow) bool {
		// R1->T1 matched, T2 appended as orphan.
		return len(rows) == 2 && rows[0].TargetID == "T1" && rows[1].Orphan
	})).Return(nil)
	jobs.On("UpdateCounts", mock.Anything, "job-1",
		alignment.Counts{Matched: 1, Orphans: 1, FailedEmbed: 0}).Return(nil)
	jobs.On("UpdateStatus", mock.Anything, "job-1", alignment.StatusCompleted, "").Return(nil)
	pub.On("Publish", "align.result", mock.MatchedBy(func(body []byte) bool {
		var p alignment.ResultPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return false
		}
		return p.Status == alignment.StatusCompleted && p.Matched == 1 && p.Orphans == 1
	})).Return(nil)

	err := consumer.HandleMessage(taskMessage(t, "job-1"))
	assert.NoError(t, err)
	jobs.AssertExpectations(t)
	store.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestAlignConsumer_PoisonPill(t *testing.T) {
	jobs := new(MockJobStore)
	consumer := NewAlignConsumer(jobs, nil, nil, nil, defaultOpts())

	msg := nsq.NewMessage(nsq.MessageID{}, []byte("not json"))
	err := consumer.HandleMessage(msg)

	assert.NoError(t, err)
	jobs.AssertNotCalled(t, "UpdateStatus")
}

func TestAlignConsumer_EmptyBody(t *testing.T) {
	consumer := NewAlignConsumer(nil, nil, nil, nil, defaultOpts())

	msg := nsq.NewMessage(nsq.MessageID{}, nil)
	assert.NoError(t, consumer.HandleMessage(msg))
}

func TestAlignConsumer_UnknownJobDropped(t *testing.T) {
	jobs := new(MockJobStore)
	consumer := NewAlignConsumer(jobs, nil, nil, nil, defaultOpts())

	jobs.On("Get", mock.Anything, "missing").Return(nil, errors.New("not found"))

	err := consumer.HandleMessage(taskMessage(t, "missing"))
	assert.NoError(t, err)
	jobs.AssertNotCalled(t, "UpdateStatus")
}

func TestAlignConsumer_EmbeddingFailureMarksJobFailed(t *testing.T) {
	jobs := new(MockJobStore)
	pub := new(MockPublisher)

	provider := &StubProvider{err: errors.New("provider down")}
	embedder := embedding.NewAdapter(provider, embedding.Options{RetryAttempts: 1})

	consumer := NewAlignConsumer(jobs, nil, pub, embedder, defaultOpts())

	jobs.On("Get", mock.Anything, "job-1").Return(&alignment.Job{ID: "job-1"}, nil)
	jobs.On("UpdateStatus", mock.Anything, "job-1", alignment.StatusProcessing, "").Return(nil)
	jobs.On("GetRows", mock.Anything, "job-1", alignment.KindReference).
		Return([]align.Record{{ID: "R1", Content: "hello"}}, nil)
	jobs.On("GetRows", mock.Anything, "job-1", alignment.KindTarget).
		Return([]align.Record{{ID: "T1", Content: "hola"}}, nil)
	jobs.On("UpdateStatus", mock.Anything, "job-1", alignment.StatusFailed, mock.Anything).Return(nil)
	pub.On("Publish", "align.result", mock.MatchedBy(func(body []byte) bool {
		var p alignment.ResultPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return false
		}
		return p.Status == alignment.StatusFailed && p.Error != ""
	})).Return(nil)

	// Fatal pipeline errors are not requeued.
	err := consumer.HandleMessage(taskMessage(t, "job-1"))
	assert.NoError(t, err)
	jobs.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestAlignConsumer_CrossSetDimensionMismatchFailsJob(t *testing.T) {
	jobs := new(MockJobStore)
	pub := new(MockPublisher)

	// The provider answers the reference run with 3-dimensional vectors and
	// the target run with 2-dimensional ones. Each run is internally
	// consistent, so only the cross-set check can catch it.
	provider := &StubProvider{vectors: map[string][]float32{
		"hello": {1, 0, 0},
		"hola":  {1, 0},
	}}
	embedder := embedding.NewAdapter(provider, embedding.Options{})

	consumer := NewAlignConsumer(jobs, nil, pub, embedder, defaultOpts())

	jobs.On("Get", mock.Anything, "job-1").Return(&alignment.Job{ID: "job-1"}, nil)
	jobs.On("UpdateStatus", mock.Anything, "job-1", alignment.StatusProcessing, "").Return(nil)
	jobs.On("GetRows", mock.Anything, "job-1", alignment.KindReference).
		Return([]align.Record{{ID: "R1", Content: "hello"}}, nil)
	jobs.On("GetRows", mock.Anything, "job-1", alignment.KindTarget).
		Return([]align.Record{{ID: "T1", Content: "hola"}}, nil)
	jobs.On("UpdateStatus", mock.Anything, "job-1", alignment.StatusFailed,
		mock.MatchedBy(func(msg string) bool {
			return strings.Contains(msg, "dimension mismatch")
		})).Return(nil)
	pub.On("Publish", "align.result", mock.MatchedBy(func(body []byte) bool {
		var p alignment.ResultPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return false
		}
		return p.Status == alignment.StatusFailed && strings.Contains(p.Error, "dimension mismatch")
	})).Return(nil)

	require.NotPanics(t, func() {
		assert.NoError(t, consumer.HandleMessage(taskMessage(t, "job-1")))
	})
	jobs.AssertExpectations(t)
	jobs.AssertNotCalled(t, "ReplaceAlignedRows", mock.Anything, mock.Anything, mock.Anything)
	pub.AssertExpectations(t)
}

func TestAlignConsumer_PartialEmbedFailureStillCompletes(t *testing.T) {
	jobs := new(MockJobStore)
	store := new(MockVectorStore)
	pub := new(MockPublisher)

	provider := &StubProvider{vectors: map[string][]float32{
		"hello": {1, 0},
		"hola":  {1, 0},
	}}
	embedder := embedding.NewAdapter(provider, embedding.Options{})

	consumer := NewAlignConsumer(jobs, store, pub, embedder, defaultOpts())

	jobs.On("Get", mock.Anything, "job-1").Return(&alignment.Job{ID: "job-1"}, nil)
	jobs.On("UpdateStatus", mock.Anything, "job-1", alignment.StatusProcessing, "").Return(nil)
	// R2 is empty, so it gets skipped before embedding.
	jobs.On("GetRows", mock.Anything, "job-1", alignment.KindReference).
		Return([]align.Record{{ID: "R1", Content: "hello"}, {ID: "R2", Content: ""}}, nil)
	jobs.On("GetRows", mock.Anything, "job-1", alignment.KindTarget).
		Return([]align.Record{{ID: "T1", Content: "hola"}}, nil)
	store.On("DeleteByJob", mock.Anything, "job-1").Return(nil)
	store.On("StoreRow", mock.Anything, mock.Anything).Return(nil)
	jobs.On("ReplaceAlignedRows", mock.Anything, "job-1", mock.MatchedBy(func(rows []align.AlignedRow) bool {
		// R2 was never embedded so it falls back to the placeholder.
		return len(rows) == 2 && rows[1].ReferenceID == "R2" && rows[1].TargetContent == "[UNMATCHED]"
	})).Return(nil)
	jobs.On("UpdateCounts", mock.Anything, "job-1", mock.Anything).Return(nil)
	jobs.On("UpdateStatus", mock.Anything, "job-1", alignment.StatusCompleted, "").Return(nil)
	pub.On("Publish", "align.result", mock.Anything).Return(nil)

	err := consumer.HandleMessage(taskMessage(t, "job-1"))
	assert.NoError(t, err)
	jobs.AssertExpectations(t)
}

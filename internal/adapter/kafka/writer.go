package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes one message per result row.
// It implements pipeline.Sink.
type Writer struct {
	writer messageWriter
	runID  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic, runID string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, runID: runID, logger: logger}
}

// AppendRow serializes and publishes a row. Rows of one task share a key, so
// they land on one partition.
func (w *Writer) AppendRow(ctx context.Context, row domain.ResultRow) error {
	msg, err := serializeToMessage(w.runID, row, domain.Now())
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish row %s: %w", row.Task, err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// RowMessage is the JSON value of a published row. Undefined values are null.
type RowMessage struct {
	RunID   string              `json:"run_id"`
	Date    string              `json:"date"`
	Lead    int                 `json:"lead"`
	Member  string              `json:"member,omitempty"`
	Columns []string            `json:"columns"`
	Values  map[string]*float64 `json:"values"`
}

// serializeToMessage marshals a row into a Kafka message.
func serializeToMessage(runID string, row domain.ResultRow, producedAt time.Time) (kafkago.Message, error) {
	m := RowMessage{
		RunID:   runID,
		Date:    row.Task.Date.UTC().Format(domain.DateLayout),
		Lead:    row.Task.Lead,
		Member:  row.Task.Member,
		Columns: row.Columns,
		Values:  make(map[string]*float64, len(row.Columns)),
	}
	for i, col := range row.Columns {
		if v := row.Values[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			m.Values[col] = &v
		} else {
			m.Values[col] = nil
		}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(row.Task.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "produced_at", Value: []byte(producedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}

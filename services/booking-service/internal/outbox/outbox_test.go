package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/queueline/libs/kafkax"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var outboxColumns = []string{"id", "event_id", "aggregate_type", "aggregate_id", "event_type", "payload", "traceparent", "tracestate", "created_at"}

func TestNewEvent(t *testing.T) {
	evt, err := NewEvent(AggregateAppointment, "a-1", TypeAppointmentTransitioned, AppointmentTransitionedV1{
		AppointmentID: "a-1",
		Action:        "check_in",
		From:          "scheduled",
		To:            "confirmed",
	})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(evt.Payload, &got); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if got["to"] != "confirmed" || evt.EventType != TypeAppointmentTransitioned {
		t.Fatalf("unexpected event %+v / %v", evt, got)
	}
}

func TestRepositoryInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	evt := Event{AggregateType: AggregateQueue, AggregateID: "p:s:2026-03-02", EventType: TypeQueueResequenced, Payload: []byte(`{}`)}
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := NewRepository().Insert(context.Background(), mock, evt); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishBatch_SendsAndMarks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	now := time.Now().UTC()
	rows := pgxmock.NewRows(outboxColumns).
		AddRow(int64(7), "evt-7", AggregateAppointment, "a-1", TypeAppointmentBooked, []byte(`{"appointment_id":"a-1"}`), "", "", now).
		AddRow(int64(8), "evt-8", AggregateQueue, "p:s:d", TypeQueueResequenced, []byte(`{}`), "", "", now)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id").WithArgs(50).WillReturnRows(rows)
	mock.ExpectExec("UPDATE outbox_events").WithArgs([]int64{7, 8}).WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	pub := NewPublisher(mock, NewRepository(), discardLogger(), PublisherConfig{Brokers: "localhost:9092"})
	w := &fakeWriter{}
	n, err := pub.PublishBatch(context.Background(), w)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n != 2 || len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got n=%d msgs=%d", n, len(w.msgs))
	}
	first := w.msgs[0]
	if first.Topic != TypeAppointmentBooked || string(first.Key) != "a-1" {
		t.Fatalf("unexpected message %+v", first)
	}
	if id, typ := header(first, kafkax.HeaderEventID), header(first, kafkax.HeaderEventType); id != "evt-7" || typ != TypeAppointmentBooked {
		t.Fatalf("unexpected event headers id=%q type=%q", id, typ)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishBatch_WriterFailureLeavesRowsUnpublished(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	rows := pgxmock.NewRows(outboxColumns).
		AddRow(int64(1), "evt-1", AggregateAppointment, "a-1", TypeAppointmentBooked, []byte(`{}`), "", "", time.Now())
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id").WithArgs(10).WillReturnRows(rows)
	mock.ExpectRollback()

	pub := NewPublisher(mock, NewRepository(), discardLogger(), PublisherConfig{Brokers: "localhost:9092", BatchSize: 10})
	if _, err := pub.PublishBatch(context.Background(), &fakeWriter{err: errors.New("broker down")}); err == nil {
		t.Fatalf("expected writer error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublishBatch_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, event_id").WithArgs(50).WillReturnRows(pgxmock.NewRows(outboxColumns))
	mock.ExpectCommit()

	pub := NewPublisher(mock, NewRepository(), discardLogger(), PublisherConfig{})
	n, err := pub.PublishBatch(context.Background(), &fakeWriter{})
	if err != nil || n != 0 {
		t.Fatalf("expected empty batch, got n=%d err=%v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

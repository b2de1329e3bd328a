package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Topics names the reservation lifecycle streams.
type Topics struct {
	ReservationCreated string
	ReservationStatus  string
	PaymentCaptured    string
}

type Producer struct {
	Writer *kafka.Writer
	Topics Topics
	Logger *logger.Logger

	// MockMode logs events without touching a broker, for local runs.
	MockMode bool
}

func NewProducer(brokers []string, topics Topics, log *logger.Logger, mockMode bool) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
	})
	return &Producer{Writer: writer, Topics: topics, Logger: log, MockMode: mockMode}
}

// PublishReservationCreated streams the new booking to Kafka
func (p *Producer) PublishReservationCreated(r models.Reservation) error {
	msgBytes, err := json.Marshal(r)
	if err != nil {
		return err
	}

	p.Logger.LogKafka("PUBLISH", p.Topics.ReservationCreated, fmt.Sprintf("reservation %s", r.ID))
	if p.MockMode {
		return nil
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: p.Topics.ReservationCreated,
			Key:   []byte(r.ID),
			Value: msgBytes,
		},
	)
}

type statusChangedEvent struct {
	Reservation models.Reservation `json:"reservation"`
	Previous    string             `json:"previousStatus"`
}

// PublishStatusChanged streams a lifecycle transition to Kafka
func (p *Producer) PublishStatusChanged(r models.Reservation, previous string) error {
	msgBytes, err := json.Marshal(statusChangedEvent{Reservation: r, Previous: previous})
	if err != nil {
		return err
	}

	p.Logger.LogKafka("PUBLISH", p.Topics.ReservationStatus, fmt.Sprintf("reservation %s %s -> %s", r.ID, previous, r.Status))
	if p.MockMode {
		return nil
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: p.Topics.ReservationStatus,
			Key:   []byte(r.ID),
			Value: msgBytes,
		},
	)
}

type paymentCapturedEvent struct {
	ReservationID string         `json:"reservationId"`
	TransactionID string         `json:"transactionId"`
	Payment       models.Payment `json:"payment"`
}

// PublishPaymentCaptured streams a settled payment obligation to Kafka
func (p *Producer) PublishPaymentCaptured(r models.Reservation, payment models.Payment) error {
	msgBytes, err := json.Marshal(paymentCapturedEvent{
		ReservationID: r.ID,
		TransactionID: r.TransactionID,
		Payment:       payment,
	})
	if err != nil {
		return err
	}

	p.Logger.LogKafka("PUBLISH", p.Topics.PaymentCaptured, fmt.Sprintf("reservation %s payment %s", r.ID, payment.ID))
	if p.MockMode {
		return nil
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: p.Topics.PaymentCaptured,
			Key:   []byte(r.ID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

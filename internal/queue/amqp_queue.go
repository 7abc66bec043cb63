package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// Job is the broker message body.
type Job struct {
	CampaignID int64 `json:"campaign_id"`
}

// AMQPQueue carries campaign ids through a durable RabbitMQ queue so the dispatch
// worker can run in its own process (cmd/worker).
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	name string
	log  zerolog.Logger

	// amqp.Channel is not safe for concurrent publishes.
	pubMu sync.Mutex
}

func DialAMQP(url, queueName string, log zerolog.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// One campaign at a time per consumer.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	return &AMQPQueue{
		conn: conn,
		ch:   ch,
		name: q.Name,
		log:  log.With().Str("component", "amqp_queue").Str("queue", q.Name).Logger(),
	}, nil
}

func (q *AMQPQueue) Enqueue(ctx context.Context, campaignID int64) error {
	body, err := encodeJob(campaignID)
	if err != nil {
		return err
	}

	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	err = q.ch.Publish("", q.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err == amqp.ErrClosed {
		return ErrClosed
	}
	return err
}

func (q *AMQPQueue) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := q.ch.Consume(
		q.name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrClosed
			}
			q.handle(ctx, d.Body, d, handler)
		}
	}
}

// acknowledger is the part of amqp.Delivery that settles a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// handle acks finished runs, failed ones included: restarting the campaign is the
// recovery path for those. A run cut short by shutdown is requeued so the broker
// hands the campaign to the next consumer.
func (q *AMQPQueue) handle(ctx context.Context, body []byte, d acknowledger, handler Handler) {
	campaignID, err := decodeJob(body)
	if err != nil {
		q.log.Warn().Err(err).Str("body", string(body)).Msg("invalid job")
		q.settle(d, false)
		return
	}

	runErr := handler(ctx, campaignID)

	if ctx.Err() != nil {
		q.log.Info().Int64("campaign_id", campaignID).Msg("consumer stopping, job requeued")
		q.settle(d, true)
		return
	}
	if runErr != nil {
		q.log.Error().Err(runErr).Int64("campaign_id", campaignID).Msg("campaign run failed")
	}
	q.settle(d, false)
}

func (q *AMQPQueue) settle(d acknowledger, requeue bool) {
	var err error
	if requeue {
		err = d.Nack(false, true)
	} else {
		err = d.Ack(false)
	}
	if err != nil {
		q.log.Error().Err(err).Bool("requeue", requeue).Msg("settle delivery failed")
	}
}

func (q *AMQPQueue) Close() error {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	chErr := q.ch.Close()
	connErr := q.conn.Close()
	if chErr != nil && chErr != amqp.ErrClosed {
		return chErr
	}
	if connErr != nil && connErr != amqp.ErrClosed {
		return connErr
	}
	return nil
}

func encodeJob(campaignID int64) ([]byte, error) {
	return json.Marshal(Job{CampaignID: campaignID})
}

func decodeJob(body []byte) (int64, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return 0, err
	}
	if job.CampaignID <= 0 {
		return 0, fmt.Errorf("invalid campaign id %d", job.CampaignID)
	}
	return job.CampaignID, nil
}

var _ Queue = (*AMQPQueue)(nil)

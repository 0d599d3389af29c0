// Package amqp implements the messaging gateway over RabbitMQ. Outbound
// telemetry is best-effort and asynchronous: the tick loop enqueues and moves
// on, a background publisher delivers with bounded retries, and full buffers
// drop the oldest data first. Inbound light adjustments are buffered and
// drained once per tick by the scheduler.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/smartcity/simulator/internal/config"
	"github.com/smartcity/simulator/internal/domain"
)

// Queue names shared with the external control plane.
const (
	QueueTrafficData      = "traffic_data"
	QueueCongestionAlerts = "congestion_alerts"
	QueueLightAdjustments = "light_adjustments"
)

type publishJob struct {
	queue string
	body  []byte
}

// Gateway is the RabbitMQ-backed domain.Gateway.
type Gateway struct {
	cfg  *config.Config
	conn *amqp091.Connection
	ch   *amqp091.Channel

	jobs        chan publishJob
	adjustments chan domain.LightAdjustment

	done chan struct{}
	wg   sync.WaitGroup
}

// Dial connects to the broker, declares the queues, and starts the publisher
// and consumer workers.
func Dial(cfg *config.Config) (*Gateway, error) {
	conn, err := amqp091.Dial(cfg.AMQPUrl)
	if err != nil {
		return nil, fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp: open channel: %w", err)
	}

	for _, queue := range []string{QueueTrafficData, QueueCongestionAlerts, QueueLightAdjustments} {
		if _, err := ch.QueueDeclare(queue, false, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("amqp: declare queue %s: %w", queue, err)
		}
	}

	g := &Gateway{
		cfg:         cfg,
		conn:        conn,
		ch:          ch,
		jobs:        make(chan publishJob, 32),
		adjustments: make(chan domain.LightAdjustment, cfg.AdjustmentBuffer),
		done:        make(chan struct{}),
	}

	deliveries, err := ch.Consume(QueueLightAdjustments, "", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqp: consume %s: %w", QueueLightAdjustments, err)
	}

	g.wg.Add(2)
	go g.publishLoop()
	go g.consumeLoop(deliveries)
	return g, nil
}

// PublishUpdate enqueues the tick snapshot for the traffic_data queue.
func (g *Gateway) PublishUpdate(update domain.TrafficUpdate) {
	g.enqueue(QueueTrafficData, update)
}

// PublishAlerts enqueues congestion alerts.
func (g *Gateway) PublishAlerts(alerts []domain.CongestionAlert) {
	g.enqueue(QueueCongestionAlerts, alerts)
}

func (g *Gateway) enqueue(queue string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("amqp: marshal for %s: %v", queue, err)
		return
	}
	select {
	case g.jobs <- publishJob{queue: queue, body: body}:
	default:
		log.Printf("amqp: publish buffer full, dropping message for %s", queue)
	}
}

func (g *Gateway) publishLoop() {
	defer g.wg.Done()
	for {
		select {
		case <-g.done:
			return
		case job := <-g.jobs:
			g.deliver(job)
		}
	}
}

// deliver attempts the publish with bounded retries. Failures are logged and
// the message dropped; the simulation never depends on delivery.
func (g *Gateway) deliver(job publishJob) {
	for attempt := 0; attempt <= g.cfg.PublishRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), g.cfg.PublishTimeout)
		err := g.ch.PublishWithContext(ctx, "", job.queue, false, false, amqp091.Publishing{
			ContentType: "application/json",
			Body:        job.body,
		})
		cancel()
		if err == nil {
			return
		}
		log.Printf("amqp: publish to %s failed (attempt %d/%d): %v",
			job.queue, attempt+1, g.cfg.PublishRetries+1, err)
	}
}

func (g *Gateway) consumeLoop(deliveries <-chan amqp091.Delivery) {
	defer g.wg.Done()
	for {
		select {
		case <-g.done:
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			adj, err := DecodeAdjustment(delivery.Body)
			if err != nil {
				log.Printf("amqp: discarding malformed adjustment: %v", err)
				continue
			}
			select {
			case g.adjustments <- adj:
			default:
				log.Printf("amqp: adjustment buffer full, dropping command for intersection %d", adj.IntersectionID)
			}
		}
	}
}

// DecodeAdjustment parses an inbound light-adjustment payload.
func DecodeAdjustment(body []byte) (domain.LightAdjustment, error) {
	var adj domain.LightAdjustment
	if err := json.Unmarshal(body, &adj); err != nil {
		return domain.LightAdjustment{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return adj, nil
}

// Adjustments drains every buffered command without blocking.
func (g *Gateway) Adjustments() []domain.LightAdjustment {
	var out []domain.LightAdjustment
	for {
		select {
		case adj := <-g.adjustments:
			out = append(out, adj)
		default:
			return out
		}
	}
}

// Health reports broker connectivity.
func (g *Gateway) Health(context.Context) error {
	if g.conn.IsClosed() {
		return fmt.Errorf("amqp: connection closed")
	}
	return nil
}

// Close stops the workers and releases the connection.
func (g *Gateway) Close() error {
	close(g.done)
	g.ch.Close()
	err := g.conn.Close()
	g.wg.Wait()
	return err
}

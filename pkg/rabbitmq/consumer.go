package rabbitmq

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer reads one durable queue bound to a topic exchange. Messages whose handler
// fails twice are dead-lettered to "<queue>.dead" for manual replay.
type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	prefetch int
	done     chan struct{}
}

type deliveryOutcome int

const (
	outcomeAck deliveryOutcome = iota
	outcomeRequeue
	outcomeDeadLetter
)

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", fmt.Errorf("invalid AMQP scheme: %s", parsed.Scheme)
	}
	return clean, nil
}

// NewConsumer connects and limits the channel to prefetch unacknowledged messages.
func NewConsumer(amqpURL string, prefetch int) (*Consumer, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}
	if prefetch <= 0 {
		prefetch = 1
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch, prefetch: prefetch, done: make(chan struct{})}, nil
}

// deadLetterNames derives the dead-letter exchange and queue for a work queue.
func deadLetterNames(queueName string) (exchange string, queue string) {
	return queueName + ".dlx", queueName + ".dead"
}

func (c *Consumer) declareTopology(exchange, queueName string) (amqp.Queue, error) {
	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	dlx, deadQueue := deadLetterNames(queueName)
	if err := c.ch.ExchangeDeclare(dlx, "fanout", true, false, false, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("declare dead-letter exchange %s: %w", dlx, err)
	}
	if _, err := c.ch.QueueDeclare(deadQueue, true, false, false, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("declare dead-letter queue %s: %w", deadQueue, err)
	}
	if err := c.ch.QueueBind(deadQueue, "", dlx, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("bind dead-letter queue %s: %w", deadQueue, err)
	}

	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, amqp.Table{"x-dead-letter-exchange": dlx})
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	return q, nil
}

// ConsumeWithBindings binds each routing key to the queue and dispatches deliveries
// to its handler in a background goroutine. A handler returning false re-queues the
// message once; a second failure dead-letters it.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, bindings map[string]func([]byte) bool) error {
	handlers := make(map[string]func([]byte) bool, len(bindings))
	for routingKey, handler := range bindings {
		if handler != nil {
			handlers[routingKey] = handler
		}
	}
	if len(handlers) == 0 {
		return fmt.Errorf("no bindings provided")
	}

	q, err := c.declareTopology(exchange, queueName)
	if err != nil {
		return err
	}
	for routingKey := range handlers {
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", routingKey, err)
		}
	}

	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		defer close(c.done)
		for d := range msgs {
			c.dispatch(d, handlers)
		}
		log.Printf("level=warn component=rabbitmq_consumer queue=%s msg=\"delivery channel closed\"", q.Name)
	}()

	log.Printf("level=info component=rabbitmq_consumer queue=%s bindings=%d prefetch=%d msg=\"consuming\"", q.Name, len(handlers), c.prefetch)
	return nil
}

func (c *Consumer) dispatch(d amqp.Delivery, handlers map[string]func([]byte) bool) {
	handler, known := handlers[d.RoutingKey]
	handled := known && handler(d.Body)

	var err error
	switch settle(known, handled, d.Redelivered) {
	case outcomeAck:
		if !known {
			log.Printf("level=warn component=rabbitmq_consumer routing_key=%s msg=\"no handler for routing key; dropping\"", d.RoutingKey)
		}
		err = d.Ack(false)
	case outcomeRequeue:
		log.Printf("level=warn component=rabbitmq_consumer routing_key=%s msg=\"handler failed; re-queuing\"", d.RoutingKey)
		err = d.Nack(false, true)
	case outcomeDeadLetter:
		log.Printf("level=error component=rabbitmq_consumer routing_key=%s msg=\"handler failed on redelivery; dead-lettering\"", d.RoutingKey)
		err = d.Nack(false, false)
	}
	if err != nil {
		log.Printf("level=error component=rabbitmq_consumer routing_key=%s msg=\"settling delivery failed\" err=%v", d.RoutingKey, err)
	}
}

// settle decides what happens to a delivery once its handler has run.
func settle(known, handled, redelivered bool) deliveryOutcome {
	switch {
	case !known || handled:
		return outcomeAck
	case redelivered:
		return outcomeDeadLetter
	default:
		return outcomeRequeue
	}
}

// Done is closed when the broker stops delivering, e.g. after a lost connection.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

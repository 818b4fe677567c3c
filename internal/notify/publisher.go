package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
)

const settledRoutingKey = "payment.settled"

// SettlementEvent is published after the ledger transaction commits.
// Downstream consumers (admin alerts, customer messaging) live outside this
// service; delivery is best effort and never blocks a webhook response.
type SettlementEvent struct {
	Token                 string          `json:"token"`
	PaymentRecordID       string          `json:"payment_record_id"`
	TenantID              string          `json:"tenant_id"`
	OrderID               string          `json:"order_id"`
	CustomerID            string          `json:"customer_id"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Provider              string          `json:"provider"`
	ProviderTransactionID string          `json:"provider_transaction_id"`
	PaidAt                time.Time       `json:"paid_at"`
}

type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: channel, exchange: exchange}, nil
}

func (p *Publisher) PublishSettlement(event SettlementEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("event serialization error: %w", err)
	}

	err = p.channel.Publish(
		p.exchange,
		settledRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers: amqp.Table{
				"tenant_id": event.TenantID,
				"order_id":  event.OrderID,
				"provider":  event.Provider,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("event publish error: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

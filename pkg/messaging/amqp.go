package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"mediamod-server/pkg/analysis"
	"mediamod-server/pkg/metrics"
)

// ReportMessage represents an analysis report sent via AMQP
type ReportMessage struct {
	UploadID  string    `json:"upload_id"`
	Issues    []string  `json:"issues"`
	Summary   string    `json:"summary"`
	Sentiment string    `json:"sentiment"`
	Timestamp time.Time `json:"timestamp"`
}

// AMQPConfig holds AMQP client configuration
type AMQPConfig struct {
	URL          string
	QueueName    string
	ExchangeName string
	RoutingKey   string
	Durable      bool
	AutoDelete   bool
}

// AMQPClient publishes completed analysis reports to a queue so downstream
// consumers can act on flagged content. It implements analysis.ReportSink.
type AMQPClient struct {
	logger    *logrus.Logger
	config    AMQPConfig
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
	connMutex sync.RWMutex
	stopChan  chan struct{}
}

// NewAMQPClient creates a new AMQP client
func NewAMQPClient(logger *logrus.Logger, config AMQPConfig) *AMQPClient {
	if config.RoutingKey == "" {
		config.RoutingKey = config.QueueName
	}
	config.Durable = true
	config.AutoDelete = false

	return &AMQPClient{
		logger:   logger,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Connect establishes a connection to the AMQP server
func (c *AMQPClient) Connect() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.connected {
		return nil
	}

	if c.config.URL == "" || c.config.QueueName == "" {
		c.logger.Warn("AMQP_URL or AMQP_QUEUE_NAME not set, report publishing will be disabled")
		return fmt.Errorf("AMQP URL or queue name not configured")
	}

	// Dial with a timeout; amqp.Dial itself can hang on unresponsive hosts.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connChan := make(chan struct {
		conn *amqp.Connection
		err  error
	}, 1)

	go func() {
		conn, err := amqp.Dial(c.config.URL)
		select {
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
		case connChan <- struct {
			conn *amqp.Connection
			err  error
		}{conn, err}:
		}
	}()

	var conn *amqp.Connection
	var err error
	select {
	case result := <-connChan:
		conn = result.conn
		err = result.err
	case <-ctx.Done():
		metrics.SetAMQPConnected(false)
		return fmt.Errorf("connection to AMQP server timed out after 5 seconds")
	}

	if err != nil {
		metrics.SetAMQPConnected(false)
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}

	c.conn = conn

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	c.channel = channel

	_, err = channel.QueueDeclare(
		c.config.QueueName,
		c.config.Durable,
		c.config.AutoDelete,
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare AMQP queue: %w", err)
	}

	if err := channel.Qos(10, 0, false); err != nil {
		c.logger.WithError(err).Warn("Failed to set QoS on AMQP channel, continuing anyway")
	}

	c.connected = true
	metrics.SetAMQPConnected(true)
	c.logger.WithFields(logrus.Fields{
		"url":   c.config.URL,
		"queue": c.config.QueueName,
	}).Info("Connected to AMQP server")

	// New stop channel in case this is a reconnect
	c.stopChan = make(chan struct{})

	go c.monitorConnection()

	return nil
}

// Disconnect closes the AMQP connection
func (c *AMQPClient) Disconnect() {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if !c.connected {
		return
	}

	close(c.stopChan)

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}

	c.connected = false
	metrics.SetAMQPConnected(false)
	c.logger.Info("Disconnected from AMQP server")
}

// IsConnected returns the connection status
func (c *AMQPClient) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.connected
}

// PublishReport publishes a completed analysis report.
func (c *AMQPClient) PublishReport(ctx context.Context, report *analysis.Report) error {
	err := c.publishReport(ctx, report)
	metrics.RecordAMQPPublish(c.config.QueueName, err)
	return err
}

func (c *AMQPClient) publishReport(ctx context.Context, report *analysis.Report) error {
	if !c.IsConnected() {
		return fmt.Errorf("not connected to AMQP server")
	}

	message := ReportMessage{
		UploadID:  report.ID,
		Issues:    report.Issues,
		Summary:   report.Summary,
		Sentiment: report.Sentiment,
		Timestamp: time.Now(),
	}

	bodyBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal report to JSON: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	publishChan := make(chan error, 1)
	go func() {
		c.connMutex.RLock()
		defer c.connMutex.RUnlock()

		if !c.connected || c.channel == nil {
			select {
			case <-publishCtx.Done():
			case publishChan <- fmt.Errorf("lost AMQP connection before publishing"):
			}
			return
		}

		err := c.channel.Publish(
			c.config.ExchangeName,
			c.config.RoutingKey,
			false, // Mandatory
			false, // Immediate
			amqp.Publishing{
				ContentType:  "application/json",
				Body:         bodyBytes,
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				// Expire undelivered reports so queues don't build up
				Expiration: "43200000", // 12 hours in milliseconds
			},
		)

		select {
		case <-publishCtx.Done():
		case publishChan <- err:
		}
	}()

	select {
	case err := <-publishChan:
		if err != nil {
			return fmt.Errorf("failed to publish report to AMQP: %w", err)
		}
	case <-publishCtx.Done():
		return fmt.Errorf("publishing report to AMQP timed out")
	}

	c.logger.WithFields(logrus.Fields{
		"upload_id": report.ID,
		"issues":    len(report.Issues),
	}).Debug("Successfully published report to AMQP")
	return nil
}

// monitorConnection watches for connection loss and reconnects with backoff.
func (c *AMQPClient) monitorConnection() {
	closeChan := make(chan *amqp.Error)

	c.connMutex.RLock()
	if c.conn != nil {
		c.conn.NotifyClose(closeChan)
	}
	stopChan := c.stopChan
	c.connMutex.RUnlock()

	for {
		select {
		case <-stopChan:
			return
		case closeErr := <-closeChan:
			c.connMutex.Lock()
			c.connected = false
			c.connMutex.Unlock()
			metrics.SetAMQPConnected(false)
			metrics.RecordAMQPConnectionError("connection_closed")

			c.logger.WithError(closeErr).Warn("AMQP connection closed, attempting to reconnect")

			for attempt := 1; attempt <= 10; attempt++ {
				c.logger.WithField("attempt", attempt).Info("Reconnecting to AMQP server")

				if err := c.Connect(); err == nil {
					c.logger.Info("Successfully reconnected to AMQP server")
					return
				} else {
					c.logger.WithError(err).WithField("attempt", attempt).Error("Failed to reconnect to AMQP server")
				}

				// Exponential backoff with max delay of 30 seconds
				backoff := time.Duration(1<<uint(attempt-1)) * time.Second
				if backoff > 30*time.Second {
					backoff = 30 * time.Second
				}
				time.Sleep(backoff)
			}
			return
		}
	}
}

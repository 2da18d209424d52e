package rabbit

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpConnection is the part of *amqp.Connection the service uses.
type amqpConnection interface {
	Channel() (amqpChannel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
	IsClosed() bool
}

// amqpChannel is the part of *amqp.Channel the service uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// dialTimeout bounds the TCP connect and the TLS and AMQP handshakes.
const dialTimeout = 30 * time.Second

// dialFunc opens a broker connection. It must give up when ctx is done.
type dialFunc func(ctx context.Context, url string, cfg amqp.Config) (amqpConnection, error)

type connection struct {
	*amqp.Connection
}

func (c connection) Channel() (amqpChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// dialAMQP dials through a context-aware dialer. Cancelling ctx closes the
// socket, which aborts a handshake that is still in progress.
func dialAMQP(ctx context.Context, url string, cfg amqp.Config) (amqpConnection, error) {
	release := func() bool { return true }

	cfg.Dial = func(network, addr string) (net.Conn, error) {
		dialer := net.Dialer{Timeout: dialTimeout}
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		// The client clears the deadline once the connection is open.
		if err := conn.SetDeadline(time.Now().Add(dialTimeout)); err != nil {
			_ = conn.Close()
			return nil, err
		}
		release = context.AfterFunc(ctx, func() { _ = conn.Close() })
		return conn, nil
	}

	conn, err := amqp.DialConfig(url, cfg)
	stopped := release()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if !stopped {
		_ = conn.Close()
		return nil, ctx.Err()
	}
	return connection{conn}, nil
}

// link is one physical connection with its channel and the server-named
// queue bound to the event exchange.
type link struct {
	conn      amqpConnection
	ch        amqpChannel
	queueName string
}

// close closes the channel, then the connection. Errors are ignored.
func (l *link) close() {
	if l.ch != nil {
		_ = l.ch.Close()
	}
	if l.conn != nil && !l.conn.IsClosed() {
		_ = l.conn.Close()
	}
}

// dialLink connects to the broker and prepares the subscription topology:
// a durable fanout exchange and an exclusive, auto-delete queue bound to it.
// On failure everything opened so far is closed again.
func dialLink(ctx context.Context, dial dialFunc, cfg Config, tlsConfig *tls.Config) (*link, error) {
	properties := amqp.NewConnectionProperties()
	properties.SetClientConnectionName(cfg.ConnectionName)

	conn, err := dial(ctx, cfg.URL, amqp.Config{
		Heartbeat:       cfg.Heartbeat,
		TLSClientConfig: tlsConfig,
		Properties:      properties,
	})
	if err != nil {
		return nil, &ConnectionError{Op: "dial", Message: "failed to connect to broker", Cause: err}
	}

	l := &link{conn: conn}

	l.ch, err = conn.Channel()
	if err != nil {
		l.close()
		return nil, &ConnectionError{Op: "channel", Message: "failed to open channel", Cause: err}
	}

	err = l.ch.ExchangeDeclare(
		cfg.ExchangeName,
		amqp.ExchangeFanout,
		true,  // Durable
		false, // AutoDelete
		false, // Internal
		false, // NoWait
		nil,   // Arguments
	)
	if err != nil {
		l.close()
		return nil, &ConnectionError{Op: "exchange_declare", Message: fmt.Sprintf("failed to declare exchange %q", cfg.ExchangeName), Cause: err}
	}

	queue, err := l.ch.QueueDeclare(
		"",    // Name, assigned by the broker
		false, // Durable
		true,  // AutoDelete
		true,  // Exclusive
		false, // NoWait
		nil,   // Arguments
	)
	if err != nil {
		l.close()
		return nil, &ConnectionError{Op: "queue_declare", Message: "failed to declare queue", Cause: err}
	}
	l.queueName = queue.Name

	// Fanout exchanges ignore the routing key.
	err = l.ch.QueueBind(l.queueName, "", cfg.ExchangeName, false, nil)
	if err != nil {
		l.close()
		return nil, &ConnectionError{Op: "queue_bind", Message: fmt.Sprintf("failed to bind queue %q", l.queueName), Cause: err}
	}

	if err = l.ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		l.close()
		return nil, &ConnectionError{Op: "qos", Message: "failed to set QoS", Cause: err}
	}

	return l, nil
}

// newTLSConfig builds the client TLS configuration. It returns nil when TLS
// is disabled.
func newTLSConfig(cfg TLS) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		ServerName: cfg.ServerName,
		MinVersion: tls.VersionTLS12,
	}

	if cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("%w: no certificates found in %s", ErrTLSError, cfg.CACertPath)
		}
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.ClientCertPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

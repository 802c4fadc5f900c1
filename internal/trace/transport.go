package trace

import (
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"SketchSpectra/internal/pkg/logger"
)

// Publisher streams records to a NATS subject, encoded with the same
// declarative layout used on disk.
type Publisher struct {
	nc      *nats.Conn
	subject string
	format  *DataFormat
	buf     []byte
}

// NewPublisher connects to the NATS server at url.
func NewPublisher(url, subject string, format *DataFormat) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to NATS at %s", url)
	}
	logger.Infof("Connected to NATS server at %s", url)
	return &Publisher{
		nc:      nc,
		subject: subject,
		format:  format,
		buf:     make([]byte, format.RecordLen()),
	}, nil
}

// Publish sends one record.
func (p *Publisher) Publish(rec *Record) error {
	if err := p.format.Write(rec, p.buf); err != nil {
		return err
	}
	return p.nc.Publish(p.subject, p.buf)
}

// Close flushes and drops the connection.
func (p *Publisher) Close() {
	p.nc.Flush()
	p.nc.Close()
}

// Subscriber consumes records from a NATS subject.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	format  *DataFormat
}

// NewSubscriber connects to the NATS server at url.
func NewSubscriber(url, subject string, format *DataFormat) (*Subscriber, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to NATS at %s", url)
	}
	logger.Infof("Connected to NATS server at %s", url)
	return &Subscriber{nc: nc, subject: subject, format: format}, nil
}

// Start subscribes and hands every decoded record to the handler. Records
// that do not decode are logged and skipped.
func (s *Subscriber) Start(handler func(Record)) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		var rec Record
		if err := s.format.Read(&rec, msg.Data); err != nil {
			logger.Errorf("Dropping undecodable record: %v", err)
			return
		}
		handler(rec)
	})
	if err != nil {
		return errors.Wrapf(err, "subscribe to %s", s.subject)
	}
	s.sub = sub
	logger.Infof("Subscribed to subject %s", s.subject)
	return nil
}

// Close unsubscribes and drops the connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	s.nc.Close()
}

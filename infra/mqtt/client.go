package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/agriexport/dispatchboard/core/dispatch"
	"github.com/agriexport/dispatchboard/core/model"
	"github.com/agriexport/dispatchboard/infra/logger"
)

const (
	DefaultNoticeTopic = "dispatch/vehicle/%s/notice"
	DefaultAckTopic    = "dispatch/ack"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	// NoticeTopic is a format string receiving the vehicle id.
	NoticeTopic string          `json:"notice_topic"`
	AckTopic    string          `json:"ack_topic"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

// SetDefaults fills the topics and client id when unset.
func (c *Config) SetDefaults() {
	if c.NoticeTopic == "" {
		c.NoticeTopic = DefaultNoticeTopic
	}
	if c.AckTopic == "" {
		c.AckTopic = DefaultAckTopic
	}
	if c.ClientID == "" {
		c.ClientID = "dispatchboard-" + uuid.NewString()[:8]
	}
}

// Validate checks the settings needed to connect.
func (c Config) Validate() error {
	if c.Broker == "" {
		return errors.New("mqtt: broker is required")
	}
	if c.NoticeTopic != "" && strings.Count(c.NoticeTopic, "%s") != 1 {
		return fmt.Errorf("mqtt: notice_topic %q must contain exactly one %%s", c.NoticeTopic)
	}
	switch c.AuthMethod {
	case "", "username_password", "tls", "both":
	default:
		return fmt.Errorf("mqtt: unknown auth_method %q", c.AuthMethod)
	}
	return nil
}

// pahoClient is the subset of paho.Client used by PahoNotifier.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// ack is the payload operators send back on the ack topic. A missing
// accepted field counts as acceptance.
type ack struct {
	NoticeID string `json:"notice_id"`
	Accepted *bool  `json:"accepted,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// PahoNotifier implements dispatch.Notifier over MQTT using Eclipse Paho.
type PahoNotifier struct {
	cli         pahoClient
	noticeTopic string
	ackTopic    string
	qos         map[string]byte

	mu         sync.Mutex
	ackChans   map[string]chan ack
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoNotifier connects to the MQTT broker and subscribes to the ack topic.
func NewPahoNotifier(cfg Config) (*PahoNotifier, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_notifier")
	pn := &PahoNotifier{
		noticeTopic: cfg.NoticeTopic,
		ackTopic:    cfg.AckTopic,
		ackChans:    make(map[string]chan ack),
		logger:      log,
		qos:         cfg.QoS,
		maxRetries:  cfg.MaxRetries,
		backoff:     time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if pn.maxRetries <= 0 {
		pn.maxRetries = 3
	}
	if pn.backoff <= 0 {
		pn.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(pn.ackTopic, pn.qosFor("ack"), pn.onAck); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pn.cli = c
	return pn, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PahoNotifier) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

func (p *PahoNotifier) onAck(_ paho.Client, msg paho.Message) {
	var m ack
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.ackChans[m.NoticeID]
	if ok {
		select {
		case ch <- m:
		default:
		}
		p.logger.Infof("received ack %s", m.NoticeID)
	}
	p.mu.Unlock()
}

// SendNotice publishes the notice to the vehicle topic and returns the
// notice identifier used for acknowledgment tracking. Publishing is retried
// with exponential backoff until MaxRetries or ctx ends.
func (p *PahoNotifier) SendNotice(ctx context.Context, n model.DispatchNotice) (string, error) {
	noticeID := uuid.NewString()
	payload, err := json.Marshal(struct {
		NoticeID string `json:"notice_id"`
		model.DispatchNotice
	}{NoticeID: noticeID, DispatchNotice: n})
	if err != nil {
		return "", err
	}

	// register before publishing so a fast ack is not lost
	p.mu.Lock()
	p.ackChans[noticeID] = make(chan ack, 1)
	p.mu.Unlock()

	topic := fmt.Sprintf(p.noticeTopic, n.VehicleID)
	if err := p.publish(ctx, topic, payload); err != nil {
		p.forget(noticeID)
		return "", err
	}
	p.logger.Infof("sent notice %s to %s", noticeID, topic)
	return noticeID, nil
}

func (p *PahoNotifier) publish(ctx context.Context, topic string, payload []byte) error {
	qos := p.qosFor("notice")
	var err error
	for attempt := 0; ; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		if err = token.Error(); err == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, err)
		if attempt >= p.maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("mqtt: publish aborted after %d attempts: %w", attempt+1, ctx.Err())
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
}

// WaitForAck blocks until an ack for noticeID is received, timeout elapses
// or ctx ends.
func (p *PahoNotifier) WaitForAck(ctx context.Context, noticeID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.ackChans[noticeID]
	p.mu.Unlock()
	if ch == nil {
		return false, fmt.Errorf("mqtt: unknown notice %s", noticeID)
	}
	defer p.forget(noticeID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case a := <-ch:
		if a.Accepted != nil && !*a.Accepted {
			if a.Reason == "" {
				return false, dispatch.ErrNoticeRejected
			}
			return false, fmt.Errorf("%w: %s", dispatch.ErrNoticeRejected, a.Reason)
		}
		return true, nil
	case <-timer.C:
		return false, fmt.Errorf("mqtt: notice %s: %w", noticeID, dispatch.ErrAckTimeout)
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (p *PahoNotifier) forget(noticeID string) {
	p.mu.Lock()
	delete(p.ackChans, noticeID)
	p.mu.Unlock()
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoNotifier) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}

package publishers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sink types understood by DefaultRegistry.
const (
	TypeSQS    = "sqs"
	TypeSNS    = "sns"
	TypePubSub = "pubsub"
	TypeHTTP   = "http"
)

const (
	httpDefaultMethod  = "POST"
	httpDefaultTimeout = 5
)

// PublisherConfig is one sink entry of the publishers file. Exactly the block
// matching Type is read.
type PublisherConfig struct {
	ID      string                 `json:"id" yaml:"id"`
	Type    string                 `json:"type" yaml:"type"`
	Enabled *bool                  `json:"enabled" yaml:"enabled"`
	SQS     *SQSPublisherConfig    `json:"sqs" yaml:"sqs"`
	SNS     *SNSPublisherConfig    `json:"sns" yaml:"sns"`
	PubSub  *PubSubPublisherConfig `json:"pubsub" yaml:"pubsub"`
	HTTP    *HTTPPublisherConfig   `json:"http" yaml:"http"`
}

// SQSPublisherConfig targets an SQS queue.
type SQSPublisherConfig struct {
	QueueURL        string `json:"uri" yaml:"uri"`
	AWSAccessConfig `json:",inline" yaml:",inline"`
}

// SNSPublisherConfig targets an SNS topic.
type SNSPublisherConfig struct {
	TopicARN        string `json:"topic_arn" yaml:"topic_arn"`
	AWSAccessConfig `json:",inline" yaml:",inline"`
}

// PubSubPublisherConfig targets a Google Cloud Pub/Sub topic.
type PubSubPublisherConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
}

// HTTPPublisherConfig posts receipts to a webhook.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// EnabledValue reports whether the sink is active; unset means enabled.
func (cfg PublisherConfig) EnabledValue() bool {
	return cfg.Enabled == nil || *cfg.Enabled
}

// normalized returns a trimmed copy with defaults applied. Nested blocks are
// copied so the caller's value is not shared.
func (cfg PublisherConfig) normalized() PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if c := cfg.SQS; c != nil {
		cp := SQSPublisherConfig{QueueURL: strings.TrimSpace(c.QueueURL), AWSAccessConfig: c.AWSAccessConfig.trimmed()}
		cfg.SQS = &cp
	}
	if c := cfg.SNS; c != nil {
		cp := SNSPublisherConfig{TopicARN: strings.TrimSpace(c.TopicARN), AWSAccessConfig: c.AWSAccessConfig.trimmed()}
		cfg.SNS = &cp
	}
	if c := cfg.PubSub; c != nil {
		cp := PubSubPublisherConfig{
			ProjectID:       strings.TrimSpace(c.ProjectID),
			Topic:           strings.TrimSpace(c.Topic),
			CredentialsFile: strings.TrimSpace(c.CredentialsFile),
			Endpoint:        strings.TrimSpace(c.Endpoint),
		}
		cfg.PubSub = &cp
	}
	if c := cfg.HTTP; c != nil {
		cp := HTTPPublisherConfig{
			URL:            strings.TrimSpace(c.URL),
			Method:         strings.ToUpper(strings.TrimSpace(c.Method)),
			TimeoutSeconds: c.TimeoutSeconds,
		}
		if cp.Method == "" {
			cp.Method = httpDefaultMethod
		}
		if cp.TimeoutSeconds <= 0 {
			cp.TimeoutSeconds = httpDefaultTimeout
		}
		for k, v := range c.Headers {
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			if k == "" || v == "" {
				continue
			}
			if cp.Headers == nil {
				cp.Headers = make(map[string]string, len(c.Headers))
			}
			cp.Headers[k] = v
		}
		cfg.HTTP = &cp
	}
	return cfg
}

// validate reports the first missing required field for the configured type.
func (cfg PublisherConfig) validate() error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}

	var missing []string
	require := func(field, value string) {
		if value == "" {
			missing = append(missing, field)
		}
	}

	switch cfg.Type {
	case "":
		return fmt.Errorf("publisher %q: type is required", cfg.ID)
	case TypeSQS:
		if cfg.SQS == nil {
			return fmt.Errorf("publisher %q: sqs block is required", cfg.ID)
		}
		require("sqs.uri", cfg.SQS.QueueURL)
		require("sqs.region", cfg.SQS.Region)
	case TypeSNS:
		if cfg.SNS == nil {
			return fmt.Errorf("publisher %q: sns block is required", cfg.ID)
		}
		require("sns.topic_arn", cfg.SNS.TopicARN)
		require("sns.region", cfg.SNS.Region)
	case TypePubSub:
		if cfg.PubSub == nil {
			return fmt.Errorf("publisher %q: pubsub block is required", cfg.ID)
		}
		require("pubsub.project_id", cfg.PubSub.ProjectID)
		require("pubsub.topic", cfg.PubSub.Topic)
	case TypeHTTP:
		if cfg.HTTP == nil {
			return fmt.Errorf("publisher %q: http block is required", cfg.ID)
		}
		require("http.url", cfg.HTTP.URL)
	default:
		return fmt.Errorf("publisher %q: unsupported type %q", cfg.ID, cfg.Type)
	}

	if len(missing) > 0 {
		return fmt.Errorf("publisher %q: missing %s", cfg.ID, strings.Join(missing, ", "))
	}
	return nil
}

// SinkSet is the validated content of a publishers file. It is read-only
// after LoadFile returns.
type SinkSet struct {
	sinks []PublisherConfig
	byID  map[string]int
}

type sinkFile struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// LoadFile reads a publishers file. ".json" files are decoded as JSON and
// everything else as YAML; unknown fields are rejected in both so that a
// misspelled key does not silently disable a sink.
func LoadFile(path string) (*SinkSet, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	var file sinkFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		err = dec.Decode(&file)
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err = dec.Decode(&file)
	}
	if err != nil {
		return nil, fmt.Errorf("decode publishers file %s: %w", filepath.Base(path), err)
	}

	return NewSinkSet(file.Publishers)
}

// NewSinkSet normalizes and validates cfgs. Ids must be unique.
func NewSinkSet(cfgs []PublisherConfig) (*SinkSet, error) {
	if len(cfgs) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}

	set := &SinkSet{
		sinks: make([]PublisherConfig, 0, len(cfgs)),
		byID:  make(map[string]int, len(cfgs)),
	}
	for i, raw := range cfgs {
		cfg := raw.normalized()
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := set.byID[cfg.ID]; dup {
			return nil, fmt.Errorf("publishers[%d]: duplicate id %q", i, cfg.ID)
		}
		set.byID[cfg.ID] = len(set.sinks)
		set.sinks = append(set.sinks, cfg)
	}
	return set, nil
}

// Lookup returns the sink with the given id.
func (s *SinkSet) Lookup(id string) (PublisherConfig, bool) {
	if s == nil {
		return PublisherConfig{}, false
	}
	i, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return PublisherConfig{}, false
	}
	return s.sinks[i], true
}

// All returns every configured sink in file order.
func (s *SinkSet) All() []PublisherConfig {
	if s == nil {
		return nil
	}
	return append([]PublisherConfig(nil), s.sinks...)
}

// Enabled returns the sinks that are not switched off.
func (s *SinkSet) Enabled() []PublisherConfig {
	var out []PublisherConfig
	for _, cfg := range s.All() {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config holds process configuration read from the environment.
type Config struct {
	Port                string        `envconfig:"PORT" default:"8080"`
	AWSRegion           string        `envconfig:"AWS_REGION" default:"us-east-1"`
	AWSEndpointOverride string        `envconfig:"AWS_ENDPOINT_OVERRIDE" default:""` // LocalStack / DynamoDB Local
	OrdersTable         string        `envconfig:"ORDERS_TABLE" default:"orders"`
	ProductsTable       string        `envconfig:"PRODUCTS_TABLE" default:"products"`
	CountersTable       string        `envconfig:"COUNTERS_TABLE" default:"counters"`
	IdempotencyTable    string        `envconfig:"IDEMPOTENCY_TABLE" default:"idempotency"`
	RefundRequestIndex  string        `envconfig:"REFUND_REQUEST_INDEX" default:"refund_request_id-index"`
	OrderEventsQueueURL string        `envconfig:"ORDER_EVENTS_QUEUE_URL" default:""`
	OrderNumberPrefix   string        `envconfig:"ORDER_NUMBER_PREFIX" default:"ORD"`
	PriceTolerance      string        `envconfig:"PRICE_TOLERANCE" default:"1"`
	IdempotencyTTL      time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"48h"`
	IdempotencyLease    time.Duration `envconfig:"IDEMPOTENCY_LEASE" default:"30s"`
	LogLevel            string        `envconfig:"LOG_LEVEL" default:"info"`
	RunLocal            bool          `envconfig:"RUN_LOCAL" default:"false"`
	MetricsNamespace    string        `envconfig:"METRICS_NAMESPACE" default:"OrderLifecycle"`
	LocalSQSBody        string        `envconfig:"LOCAL_SQS_BODY" default:""` // worker RUN_LOCAL input
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Tolerance(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Tolerance parses PRICE_TOLERANCE.
func (c *Config) Tolerance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.PriceTolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid PRICE_TOLERANCE %q: %w", c.PriceTolerance, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid PRICE_TOLERANCE %q: must not be negative", c.PriceTolerance)
	}
	return d, nil
}

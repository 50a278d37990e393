package config

import "os"

type Config struct {
	DatabaseURL  string
	RedisURL     string
	NatsURL      string
	KafkaBrokers string
	Port         string

	Gateway GatewayConfig
	Ledger  LedgerConfig
	QR      QRConfig

	// Sandbox relaxes callback verification for gateway test traffic.
	Sandbox bool
}

type GatewayConfig struct {
	AppID string
	// Key1 signs outbound order-creation requests, Key2 verifies
	// inbound callback checksums. The gateway issues them as a pair.
	Key1 string
	Key2 string
	// CreateOrderURL is resolved once from the sandbox flag at load time.
	CreateOrderURL string
	// CallbackURL is this service's public redirect endpoint, registered
	// with the gateway through embed_data.
	CallbackURL string
	FinalizeURL string
	ErrorURL    string
}

type LedgerConfig struct {
	BaseURL string
	APIKey  string
}

type QRConfig struct {
	BaseURL     string
	ImageURL    string
	AccountNo   string
	AccountName string
	AcquirerID  string
	Template    string
}

const (
	gatewaySandboxURL    = "https://sb-openapi.zalopay.vn/v2/create"
	gatewayProductionURL = "https://openapi.zalopay.vn/v2/create"
)

func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	sandbox := os.Getenv("GATEWAY_ENV") != "production"
	createOrderURL := gatewayProductionURL
	if sandbox {
		createOrderURL = gatewaySandboxURL
	}

	ledgerBase := os.Getenv("LEDGER_BASE_URL")
	if ledgerBase == "" {
		ledgerBase = "https://oauth.casso.vn/v2"
	}

	qrBase := os.Getenv("QR_BASE_URL")
	if qrBase == "" {
		qrBase = "https://img.vietqr.io/image"
	}
	qrImage := os.Getenv("QR_IMAGE_URL")
	if qrImage == "" {
		qrImage = "https://api.vietqr.io/v2/generate"
	}
	qrTemplate := os.Getenv("QR_TEMPLATE")
	if qrTemplate == "" {
		qrTemplate = "compact2"
	}

	return &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		NatsURL:      os.Getenv("NATS_URL"),
		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
		Port:         port,
		Sandbox:      sandbox,
		Gateway: GatewayConfig{
			AppID:          os.Getenv("GATEWAY_APP_ID"),
			Key1:           os.Getenv("GATEWAY_KEY1"),
			Key2:           os.Getenv("GATEWAY_KEY2"),
			CreateOrderURL: createOrderURL,
			CallbackURL:    os.Getenv("GATEWAY_CALLBACK_URL"),
			FinalizeURL:    os.Getenv("GATEWAY_FINALIZE_URL"),
			ErrorURL:       os.Getenv("GATEWAY_ERROR_URL"),
		},
		Ledger: LedgerConfig{
			BaseURL: ledgerBase,
			APIKey:  os.Getenv("LEDGER_API_KEY"),
		},
		QR: QRConfig{
			BaseURL:     qrBase,
			ImageURL:    qrImage,
			AccountNo:   os.Getenv("QR_ACCOUNT_NO"),
			AccountName: os.Getenv("QR_ACCOUNT_NAME"),
			AcquirerID:  os.Getenv("QR_ACQUIRER_ID"),
			Template:    qrTemplate,
		},
	}
}

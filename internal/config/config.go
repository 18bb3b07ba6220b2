package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	AuthModeHS256 = "hs256"
	AuthModeOIDC  = "oidc"

	TransitionsStrict     = "strict"
	TransitionsPermissive = "permissive"
)

type Config struct {
	ServiceName    string   `yaml:"service_name"`
	Environment    string   `yaml:"environment"`
	DatabaseURL    string   `yaml:"database_url"`
	HTTPListenAddr string   `yaml:"http_listen_addr"`
	LogLevel       string   `yaml:"log_level"`
	CORSOrigins    []string `yaml:"cors_origins"`

	// AuthMode selects the token verifier: "hs256" (shared secret) or "oidc".
	AuthMode      string `yaml:"auth_mode"`
	JWTSecret     string `yaml:"jwt_secret"`
	JWTIssuer     string `yaml:"jwt_issuer"`
	JWTAudience   string `yaml:"jwt_audience"`
	TenantClaim   string `yaml:"tenant_claim"`
	DefaultRole   string `yaml:"default_role"`
	OIDCIssuerURL string `yaml:"oidc_issuer_url"`
	OIDCClientID  string `yaml:"oidc_client_id"`

	AuthzMode                string `yaml:"authz_mode"`
	AuthzUnsafeAllowDisabled bool   `yaml:"authz_unsafe_allow_disabled"`
	AuthzModelPath           string `yaml:"authz_model_path"`
	AuthzPolicyPath          string `yaml:"authz_policy_path"`

	InstanceTransitions string `yaml:"instance_transitions"`
	PromotionGateExpr   string `yaml:"promotion_gate_expr"`

	// Temporal is optional; evaluation hand-off is disabled when TemporalAddress is empty.
	TemporalAddress       string `yaml:"temporal_address"`
	TemporalNamespace     string `yaml:"temporal_namespace"`
	TemporalTLSCert       string `yaml:"temporal_tls_cert"`
	TemporalTLSKey        string `yaml:"temporal_tls_key"`
	TemporalTLSCACert     string `yaml:"temporal_tls_ca_cert"`
	TemporalTLSServerName string `yaml:"temporal_tls_server_name"`
	EvaluationTaskQueue   string `yaml:"evaluation_task_queue"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisChannel  string `yaml:"redis_channel"`

	// RedisTLSCACert enables TLS towards Redis, verified against this CA bundle.
	RedisTLSCACert string `yaml:"redis_tls_ca_cert"`

	OTelEndpoint string `yaml:"otel_exporter_otlp_endpoint"`
}

// Load reads configuration from the environment. When CONFIG_FILE is set the
// YAML file is applied first and any non-empty environment variable overrides it.
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName:         "control-plane-api",
		Environment:         "development",
		HTTPListenAddr:      ":8000",
		LogLevel:            "info",
		AuthMode:            AuthModeHS256,
		TenantClaim:         "tenant_id",
		DefaultRole:         "operator",
		AuthzMode:           "enforce",
		InstanceTransitions: TransitionsStrict,
		TemporalNamespace:   "default",
		EvaluationTaskQueue: "agent-evaluations",
		RedisChannel:        "agentplane.events",
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ServiceName = getEnv("SERVICE_NAME", cfg.ServiceName)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.HTTPListenAddr = getEnv("HTTP_LISTEN_ADDR", cfg.HTTPListenAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	cfg.AuthMode = strings.ToLower(getEnv("AUTH_MODE", cfg.AuthMode))
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTAudience = getEnv("JWT_AUDIENCE", cfg.JWTAudience)
	cfg.TenantClaim = getEnv("TENANT_CLAIM", cfg.TenantClaim)
	cfg.DefaultRole = getEnv("DEFAULT_ROLE", cfg.DefaultRole)
	cfg.OIDCIssuerURL = getEnv("OIDC_ISSUER_URL", cfg.OIDCIssuerURL)
	cfg.OIDCClientID = getEnv("OIDC_CLIENT_ID", cfg.OIDCClientID)

	cfg.AuthzMode = strings.ToLower(getEnv("AUTHZ_MODE", cfg.AuthzMode))
	if v := os.Getenv("AUTHZ_UNSAFE_ALLOW_DISABLED"); v != "" {
		cfg.AuthzUnsafeAllowDisabled = v == "1"
	}
	cfg.AuthzModelPath = getEnv("AUTHZ_MODEL_PATH", cfg.AuthzModelPath)
	cfg.AuthzPolicyPath = getEnv("AUTHZ_POLICY_PATH", cfg.AuthzPolicyPath)

	cfg.InstanceTransitions = strings.ToLower(getEnv("INSTANCE_TRANSITIONS", cfg.InstanceTransitions))
	cfg.PromotionGateExpr = getEnv("PROMOTION_GATE_EXPR", cfg.PromotionGateExpr)

	cfg.TemporalAddress = getEnv("TEMPORAL_ADDRESS", cfg.TemporalAddress)
	cfg.TemporalNamespace = getEnv("TEMPORAL_NAMESPACE", cfg.TemporalNamespace)
	cfg.TemporalTLSCert = getEnv("TEMPORAL_TLS_CERT", cfg.TemporalTLSCert)
	cfg.TemporalTLSKey = getEnv("TEMPORAL_TLS_KEY", cfg.TemporalTLSKey)
	cfg.TemporalTLSCACert = getEnv("TEMPORAL_TLS_CA_CERT", cfg.TemporalTLSCACert)
	cfg.TemporalTLSServerName = getEnv("TEMPORAL_TLS_SERVER_NAME", cfg.TemporalTLSServerName)
	cfg.EvaluationTaskQueue = getEnv("EVALUATION_TASK_QUEUE", cfg.EvaluationTaskQueue)

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisChannel = getEnv("REDIS_CHANNEL", cfg.RedisChannel)
	cfg.RedisTLSCACert = getEnv("REDIS_TLS_CA_CERT", cfg.RedisTLSCACert)

	cfg.OTelEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTelEndpoint)

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every missing required key at once, then checks values.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	switch c.AuthMode {
	case AuthModeHS256:
		if c.JWTSecret == "" {
			missing = append(missing, "JWT_SECRET")
		}
	case AuthModeOIDC:
		if c.OIDCIssuerURL == "" {
			missing = append(missing, "OIDC_ISSUER_URL")
		}
		if c.OIDCClientID == "" {
			missing = append(missing, "OIDC_CLIENT_ID")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of hs256, oidc (got %q)", c.AuthMode)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if c.AuthMode == AuthModeHS256 && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	switch c.AuthzMode {
	case "enforce", "shadow":
	case "disabled":
		if !c.AuthzUnsafeAllowDisabled {
			return fmt.Errorf("AUTHZ_MODE=disabled requires AUTHZ_UNSAFE_ALLOW_DISABLED=1")
		}
	default:
		return fmt.Errorf("AUTHZ_MODE must be one of enforce, shadow, disabled (got %q)", c.AuthzMode)
	}
	if c.InstanceTransitions != TransitionsStrict && c.InstanceTransitions != TransitionsPermissive {
		return fmt.Errorf("INSTANCE_TRANSITIONS must be one of strict, permissive (got %q)", c.InstanceTransitions)
	}
	if (c.AuthzModelPath == "") != (c.AuthzPolicyPath == "") {
		return fmt.Errorf("AUTHZ_MODEL_PATH and AUTHZ_POLICY_PATH must be set together")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

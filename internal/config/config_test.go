package config

import (
	"testing"
	"time"
)

func validBase() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		Token: TokenConfig{Secret: "secret", ServerURL: "ws://localhost:7880"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_LocalRunsWithoutTransport(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Transport.Timeout != 5*time.Second || c.Transport.RetryAttempts != 3 {
		t.Fatalf("transport defaults not applied: %+v", c.Transport)
	}
	if c.Token.TTL != time.Hour {
		t.Fatalf("token TTL default not applied: %v", c.Token.TTL)
	}
}

func TestValidate_ProductionRequiresTransport(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Summarizer.APIKey = "sk-test"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without TRANSPORT_URL")
	}
}

func TestValidate_TransportURLRequiresCredentials(t *testing.T) {
	c := validBase()
	c.Transport.URL = "https://rooms.example.com"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for TRANSPORT_URL without credentials")
	}
}

func TestValidate_OptionalPostgresDefaultsSSLMode(t *testing.T) {
	c := validBase()
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "warmtransfer"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Transport = TransportConfig{URL: "https://rooms.example.com", APIKey: "key", APISecret: "secret"}
	c.Summarizer.APIKey = "sk-test"
	c.DB = DBConfig{Host: "db", Port: 5432, User: "postgres", Password: "x", Name: "warmtransfer"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

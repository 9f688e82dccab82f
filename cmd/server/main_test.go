package main

import (
	"testing"

	"goldpos/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigRejectsWildcardOriginInProduction(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		Env:           "production",
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		AllowedOrigin: "*",
	})
	if err == nil {
		t.Fatalf("expected wildcard origin to be rejected in production")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		AllowedOrigin: "https://shop.example.com",
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

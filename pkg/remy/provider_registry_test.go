package remy

import (
	"strings"
	"testing"
)

func mockVendors() Config {
	return Config{
		Vendors: VendorsConfig{
			Oracle:  VendorConfig{Provider: "mock"},
			Mic:     VendorConfig{Provider: "mock"},
			Speaker: VendorConfig{Provider: "mock"},
			Camera:  VendorConfig{Provider: "mock"},
		},
		Notify: VendorConfig{Provider: "noop"},
	}
}

func TestRegistryBuildsMockProviders(t *testing.T) {
	r := NewProviderRegistry()
	cfg := mockVendors()

	if _, err := r.BuildOracle("mock", cfg); err != nil {
		t.Fatalf("BuildOracle: %v", err)
	}
	if _, err := r.BuildMic("mock", cfg); err != nil {
		t.Fatalf("BuildMic: %v", err)
	}
	if _, err := r.BuildSpeaker("mock", cfg); err != nil {
		t.Fatalf("BuildSpeaker: %v", err)
	}
	if _, err := r.BuildCamera("mock", cfg); err != nil {
		t.Fatalf("BuildCamera: %v", err)
	}
	if _, err := r.BuildNotifier("noop", cfg); err != nil {
		t.Fatalf("BuildNotifier: %v", err)
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewProviderRegistry()
	_, err := r.BuildOracle("nope", mockVendors())
	if err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("expected not-registered error, got %v", err)
	}
}

func TestRegistryValidatesOracleSettings(t *testing.T) {
	r := NewProviderRegistry()
	cfg := mockVendors()
	cfg.Vendors.Oracle = VendorConfig{
		Provider: "openai",
		Settings: map[string]any{"model": "gpt-4o"},
	}
	_, err := r.BuildOracle("openai", cfg)
	if err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected missing api_key error, got %v", err)
	}
}

func TestRegistryValidatesSpeakerSettings(t *testing.T) {
	r := NewProviderRegistry()
	cfg := mockVendors()
	cfg.Vendors.Speaker = VendorConfig{
		Provider: "elevenlabs",
		Settings: map[string]any{"api_key": "k", "unexpected": true},
	}
	_, err := r.BuildSpeaker("elevenlabs", cfg)
	if err == nil || !strings.Contains(err.Error(), "unknown") {
		t.Fatalf("expected unknown-key error, got %v", err)
	}
}

package config

import (
	"testing"
	"time"
)

func TestCurrentAppliesDefaults(t *testing.T) {
	t.Setenv("MATCH_AUTO_THRESHOLD", "97")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	if err := Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s := Current()

	if s.AutoLinkThreshold != 97 {
		t.Fatalf("AutoLinkThreshold = %v, want 97", s.AutoLinkThreshold)
	}
	if s.AutoLinkMargin != 5 {
		t.Fatalf("AutoLinkMargin = %v, want 5", s.AutoLinkMargin)
	}
	if s.SuggestionLimit != 5 || s.CandidateLimit != 20 {
		t.Fatalf("limits = %d/%d, want 5/20", s.SuggestionLimit, s.CandidateLimit)
	}
	if s.BatchInterval != 50*time.Millisecond {
		t.Fatalf("BatchInterval = %v, want 50ms", s.BatchInterval)
	}
	if len(s.KafkaBrokers) != 2 || s.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("KafkaBrokers = %v", s.KafkaBrokers)
	}
}

package security

import (
	"errors"
	"testing"
	"time"
)

func TestNewSigner_缺少secret应失败(t *testing.T) {
	if _, err := NewSigner("", "player-sync"); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("期望 secret 为空时返回 ErrSecretMissing, got=%v", err)
	}
}

func TestAwardParse_正常签发并解析(t *testing.T) {
	s, err := NewSigner("test-secret-123", "player-sync")
	if err != nil {
		t.Fatalf("NewSigner err=%v", err)
	}
	token, err := s.Award("gate-1", time.Hour)
	if err != nil {
		t.Fatalf("Award err=%v", err)
	}
	claims, err := s.Parse(token)
	if err != nil {
		t.Fatalf("Parse err=%v", err)
	}
	if claims.Caller != "gate-1" {
		t.Fatalf("期望 claims.Caller==gate-1, got=%q", claims.Caller)
	}
}

func TestParse_secret或issuer不一致应失败(t *testing.T) {
	a, _ := NewSigner("secret-a", "player-sync")
	b, _ := NewSigner("secret-b", "player-sync")
	c, _ := NewSigner("secret-a", "other")

	token, err := a.Award("gate-1", time.Hour)
	if err != nil {
		t.Fatalf("Award err=%v", err)
	}
	if _, err := b.Parse(token); err == nil {
		t.Fatalf("期望 secret 不一致时解析失败")
	}
	if _, err := c.Parse(token); err == nil {
		t.Fatalf("期望 issuer 不一致时解析失败")
	}
}

func TestParse_过期token应失败(t *testing.T) {
	s, _ := NewSigner("secret", "")
	expired, err := s.Award("gate-1", time.Nanosecond)
	if err != nil {
		t.Fatalf("Award err=%v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, err := s.Parse(expired); err == nil {
		t.Fatalf("期望过期 token 解析失败")
	}
}

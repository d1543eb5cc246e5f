package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/lexia-ai/lexia/pkg/backend/stt"
	sttmock "github.com/lexia-ai/lexia/pkg/backend/stt/mock"
)

func TestSTTFallback_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Backend{Result: &stt.Result{Text: "from primary"}}
	secondary := &sttmock.Backend{Result: &stt.Result{Text: "from secondary"}}

	fb := NewSTTFallback(primary, "whisper", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("openai", secondary)

	res, err := fb.Transcribe(context.Background(), stt.TranscribeRequest{AudioPath: "/tmp/a.wav"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "from primary" {
		t.Errorf("Text = %q, want primary's result", res.Text)
	}
	if len(primary.TranscribeCalls) != 1 {
		t.Errorf("primary called %d times, want 1", len(primary.TranscribeCalls))
	}
	if len(secondary.TranscribeCalls) != 0 {
		t.Errorf("secondary called %d times, want 0", len(secondary.TranscribeCalls))
	}
}

func TestSTTFallback_Failover(t *testing.T) {
	primary := &sttmock.Backend{TranscribeErr: errors.New("primary down")}
	secondary := &sttmock.Backend{Result: &stt.Result{Text: "from secondary"}}

	fb := NewSTTFallback(primary, "whisper", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("openai", secondary)

	res, err := fb.Transcribe(context.Background(), stt.TranscribeRequest{AudioPath: "/tmp/a.wav"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "from secondary" {
		t.Errorf("Text = %q, want secondary's result", res.Text)
	}
	if len(secondary.TranscribeCalls) != 1 {
		t.Errorf("secondary called %d times, want 1", len(secondary.TranscribeCalls))
	}
}

func TestSTTFallback_AllFail(t *testing.T) {
	primary := &sttmock.Backend{TranscribeErr: errors.New("primary down")}
	secondary := &sttmock.Backend{TranscribeErr: errors.New("secondary down")}

	fb := NewSTTFallback(primary, "whisper", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("openai", secondary)

	_, err := fb.Transcribe(context.Background(), stt.TranscribeRequest{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSTTFallback_Name(t *testing.T) {
	fb := NewSTTFallback(&sttmock.Backend{}, "whisper", FallbackConfig{})
	if got := fb.Name(); got != "whisper" {
		t.Errorf("Name = %q, want %q", got, "whisper")
	}
}

func TestSTTFallback_Health(t *testing.T) {
	primary := &sttmock.Backend{HealthErr: errors.New("down")}
	secondary := &sttmock.Backend{}

	fb := NewSTTFallback(primary, "whisper", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("openai", secondary)

	if err := fb.Health(context.Background()); err != nil {
		t.Errorf("Health = %v, want nil when a fallback is healthy", err)
	}
}

package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/set-night/watchearn/internal/domain"
	"github.com/shopspring/decimal"
)

const sampleCatalog = `
tasks:
  - title: "Cacimbo - Um abraço apertado"
    channel: "Cacimbo Oficial"
    video_id: vlQghBb2Qkc
    seconds: 180
    reward: "75.50"
  - title: Kizomba Hits Angola
    channel: Kizomba TV
    video_id: sz71Dq65Wbc
    seconds: 150
    reward: 60
`

func TestLoadTaskCatalog(t *testing.T) {
	tasks, err := LoadTaskCatalog(strings.NewReader(sampleCatalog))
	if err != nil {
		t.Fatalf("LoadTaskCatalog() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}

	first := tasks[0]
	if first.Title != "Cacimbo - Um abraço apertado" || first.ChannelLabel != "Cacimbo Oficial" {
		t.Errorf("first task = %+v", first)
	}
	if first.MediaReference != "vlQghBb2Qkc" || first.RequiredSeconds != 180 {
		t.Errorf("first task media = %q seconds = %d", first.MediaReference, first.RequiredSeconds)
	}
	if !first.RewardAmount.Equal(decimal.RequireFromString("75.50")) {
		t.Errorf("reward = %s, want 75.50", first.RewardAmount)
	}
	if !tasks[1].RewardAmount.Equal(decimal.NewFromInt(60)) {
		t.Errorf("second reward = %s, want 60", tasks[1].RewardAmount)
	}
}

func TestLoadTaskCatalogRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"zero seconds", "tasks:\n  - {title: A, video_id: abcdef, seconds: 0, reward: '1'}\n", "required_seconds"},
		{"missing video", "tasks:\n  - {title: A, seconds: 10, reward: '1'}\n", "media_reference"},
		{"negative reward", "tasks:\n  - {title: A, video_id: abcdef, seconds: 10, reward: '-1'}\n", "reward_amount"},
		{"bad reward", "tasks:\n  - {title: A, video_id: abcdef, seconds: 10, reward: lots}\n", "reward_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTaskCatalog(strings.NewReader(tt.yaml))
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("field = %q, want %q", vErr.Field, tt.field)
			}
		})
	}
}

func TestLoadTaskCatalogEmpty(t *testing.T) {
	tasks, err := LoadTaskCatalog(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadTaskCatalog() error = %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("got %d tasks, want 0", len(tasks))
	}
}

func TestTaskCache(t *testing.T) {
	c := NewTaskCache(50 * time.Millisecond)
	if c.Get() != nil {
		t.Fatal("empty cache returned tasks")
	}

	c.Set(nil)
	if got := c.Get(); got == nil || len(got) != 0 {
		t.Errorf("cached empty list = %#v, want empty non-nil", got)
	}

	c.Set([]domain.Task{{ID: 1}})
	if len(c.Get()) != 1 {
		t.Error("cache miss right after Set")
	}

	c.Invalidate()
	if c.Get() != nil {
		t.Error("cache hit after Invalidate")
	}

	c.Set([]domain.Task{{ID: 1}})
	time.Sleep(80 * time.Millisecond)
	if c.Get() != nil {
		t.Error("stale cache returned tasks")
	}
}

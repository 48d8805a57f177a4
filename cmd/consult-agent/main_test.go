package main

import (
	"context"
	"testing"
	"time"

	"github.com/movedesk/consult-agent/pkg/config"
	"github.com/movedesk/consult-agent/pkg/core/vision"
)

func TestBuildClassifierSelection(t *testing.T) {
	ctx := context.Background()

	c, err := buildClassifier(ctx, config.Config{VisionProvider: config.VisionOpenAI})
	if err != nil || c != nil {
		t.Errorf("no credential should mean nil classifier, got %v, %v", c, err)
	}

	c, err = buildClassifier(ctx, config.Config{
		VisionProvider: config.VisionOpenAI,
		OpenAIAPIKey:   "sk-test",
	})
	if err != nil {
		t.Fatalf("buildClassifier: %v", err)
	}
	if _, ok := c.(*vision.OpenAI); !ok {
		t.Errorf("classifier = %T, want *vision.OpenAI", c)
	}
}

func TestRunFailsFastWithoutRoomURL(t *testing.T) {
	t.Setenv("CONSULT_ROOM_URL", "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := run(ctx, nil); err == nil {
		t.Error("expected configuration error")
	}
}

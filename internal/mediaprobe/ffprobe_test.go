package mediaprobe

import (
	"context"
	"os/exec"
	"testing"
)

func TestInspectParsesDuration(t *testing.T) {
	payload := `{"streams":[{"index":0,"codec_type":"video","duration":"12.400","width":1920,"height":1080}],"format":{"filename":"clip.mp4","duration":"12.480","format_name":"mov,mp4"}}`
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "printf %s '"+payload+"'")
	}
	t.Cleanup(func() { commandContext = exec.CommandContext })

	result, err := Inspect(context.Background(), "ffprobe", "clip.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if got := result.DurationSeconds(); got != 12.48 {
		t.Fatalf("duration %v, want 12.48", got)
	}
	if !result.HasVideo() {
		t.Fatal("expected video stream")
	}
}

func TestDurationFallsBackToStream(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "audio", Duration: "33.5"}},
		Format:  Format{Duration: ""},
	}
	if got := result.DurationSeconds(); got != 33.5 {
		t.Fatalf("duration %v, want 33.5", got)
	}
}

func TestInspectEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

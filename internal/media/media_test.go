package media_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"avpackaging/internal/media"
	"avpackaging/internal/services"
	"avpackaging/internal/testsupport"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  media.Kind
		ok    bool
	}{
		{"audio pair", []string{"/t/r1/r1.wav", "/t/r1/r1_a.mp3"}, media.KindAudio, true},
		{"audio uppercase extension", []string{"r1.wav", "r1_a.MP3"}, media.KindAudio, true},
		{"video triple", []string{"r1.mkv", "r1_me.mov", "r1_a.mp4"}, media.KindVideo, true},
		{"audio pair missing mp3", []string{"r1.wav", "r1.flac"}, "", false},
		{"three files with mp3 only", []string{"r1.wav", "r1_a.mp3", "notes.txt"}, "", false},
		{"two files with mp4", []string{"r1_me.mov", "r1_a.mp4"}, "", false},
		{"single file", []string{"r1_a.mp3"}, "", false},
		{"empty", nil, "", false},
		{"four files", []string{"a.mp4", "b.mov", "c.mkv", "d.png"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := media.Classify(tt.files)
			if !tt.ok {
				if err == nil {
					t.Fatalf("expected classification error, got %v", format)
				}
				if !errors.Is(err, services.ErrClassification) {
					t.Fatalf("expected ErrClassification, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if format.Kind() != tt.want {
				t.Fatalf("kind = %s, want %s", format.Kind(), tt.want)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	if kind, err := media.ParseKind(" Video "); err != nil || kind != media.KindVideo {
		t.Fatalf("ParseKind video = %q, %v", kind, err)
	}
	_, err := media.ParseKind("film")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDescriptorsAudio(t *testing.T) {
	got := media.Descriptors(media.Audio{}, "r1", "/work/r1")
	if len(got) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(got))
	}
	want := media.Descriptor{
		Path:        filepath.Join("/work/r1", "r1_a.mp3"),
		Destination: media.DestinationAudioAccess,
		Key:         "r1.mp3",
		ContentType: "audio/mpeg",
	}
	if got[0] != want {
		t.Fatalf("descriptor = %+v, want %+v", got[0], want)
	}
}

func TestDescriptorsVideoOrder(t *testing.T) {
	got := media.Descriptors(media.Video{}, "r1", "/work/r1")
	want := []media.Descriptor{
		{Path: "/work/r1/r1_me.mov", Destination: media.DestinationVideoMezzanine, Key: "r1.mov", ContentType: "video/quicktime"},
		{Path: "/work/r1/r1_a.mp4", Destination: media.DestinationVideoAccess, Key: "r1.mp4", ContentType: "video/mp4"},
		{Path: "/work/r1/poster.png", Destination: media.DestinationPoster, Key: "r1.png", ContentType: "image/x-png"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d descriptors, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("descriptor %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTemplatesReturnCopies(t *testing.T) {
	templates := media.Video{}.Templates()
	templates[0].Suffix = "_tampered"
	if (media.Video{}).Templates()[0].Suffix != "_me.mov" {
		t.Fatal("expected templates to be immutable")
	}
}

func TestKindOrigin(t *testing.T) {
	if got := media.KindVideo.Origin(); got != "av_digitization_video" {
		t.Fatalf("unexpected origin %q", got)
	}
}

func TestExtractPosterWritesPoster(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegStub(testsupport.FFmpegWritesOutput))
	dir := filepath.Join(cfg.Paths.TmpDir, "r1")
	source := media.AccessCopyPath("r1", dir)
	testsupport.WriteFile(t, source, 64)

	poster, err := media.ExtractPoster(context.Background(), media.PosterOptions{FFmpegBinary: cfg.Poster.FFmpegBinary, Window: 300}, source, dir)
	if err != nil {
		t.Fatalf("ExtractPoster: %v", err)
	}
	if poster != filepath.Join(dir, media.PosterFileName) {
		t.Fatalf("unexpected poster path %q", poster)
	}
	if _, err := os.Stat(poster); err != nil {
		t.Fatalf("expected poster on disk: %v", err)
	}
}

func TestExtractPosterMissingAccessCopy(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegStub(testsupport.FFmpegWritesOutput))
	dir := t.TempDir()
	_, err := media.ExtractPoster(context.Background(), media.PosterOptions{FFmpegBinary: cfg.Poster.FFmpegBinary}, media.AccessCopyPath("r1", dir), dir)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected tool error, got %v", err)
	}
}

func TestExtractPosterToolFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegStub(testsupport.FFmpegFails))
	dir := t.TempDir()
	source := media.AccessCopyPath("r1", dir)
	testsupport.WriteFile(t, source, 16)

	_, err := media.ExtractPoster(context.Background(), media.PosterOptions{FFmpegBinary: cfg.Poster.FFmpegBinary}, source, dir)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected tool error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, media.PosterFileName)); !os.IsNotExist(statErr) {
		t.Fatalf("expected no poster after failure, stat err=%v", statErr)
	}
}

package ffmpeg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bryanchriswhite/IPCamMonitor/internal/media"
)

func TestEncoderArgs(t *testing.T) {
	args := EncoderArgs("/tmp/out/video.avi", media.WriterParams{FourCC: "XVID", FPS: 20, Width: 640, Height: 480})
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-pix_fmt bgr24",
		"-s 640x480",
		"-r 20",
		"-i pipe:0",
		"-c:v mpeg4",
		"-vtag XVID",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("EncoderArgs() = %q, missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "/tmp/out/video.avi" {
		t.Errorf("last arg = %q, want output path", args[len(args)-1])
	}
}

func TestCodecFor(t *testing.T) {
	tests := map[string]string{
		"XVID": "mpeg4",
		"xvid": "mpeg4",
		"MJPG": "mjpeg",
		"H264": "libx264",
	}
	for fourcc, want := range tests {
		if got := codecFor(fourcc); got != want {
			t.Errorf("codecFor(%q) = %q, want %q", fourcc, got, want)
		}
	}
}

func TestWriter_RecordsFile(t *testing.T) {
	if _, err := findBinary("ffmpeg"); err != nil {
		t.Skipf("FFmpeg not found: %v", err)
	}

	path := filepath.Join(t.TempDir(), "video.avi")
	params := media.WriterParams{FourCC: "XVID", FPS: 20, Width: 64, Height: 48}

	w, err := NewWriterOpener().Create(path, params)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for i := 0; i < 10; i++ {
		frame := media.NewFrame(64, 48, media.OrderBGR)
		for j := range frame.Pix {
			frame.Pix[j] = byte(i * 20)
		}
		if err := w.Write(frame); err != nil {
			t.Fatalf("Write() #%d error = %v", i, err)
		}
	}

	if err := w.Write(media.NewFrame(10, 10, media.OrderBGR)); err == nil {
		t.Error("Write() of a wrongly sized frame should fail")
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("recording not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("recording is empty")
	}
}

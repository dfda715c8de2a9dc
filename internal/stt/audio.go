package stt

import (
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"voicenotes/internal/storage"
)

// DefaultMIME is declared when the clip's type cannot be sniffed
const DefaultMIME = "audio/mp3"

// readClip loads the whole blob into memory and works out its MIME type
func readClip(uri, fallbackMIME string) ([]byte, string, error) {
	path := storage.Path(uri)
	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read audio file: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("audio file %s is empty", path)
	}
	return audio, detectMIME(audio, fallbackMIME), nil
}

func detectMIME(audio []byte, fallback string) string {
	if fallback == "" {
		fallback = DefaultMIME
	}
	detected := mimetype.Detect(audio)
	for m := detected; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			// strip parameters such as "; charset=..."
			mime, _, _ := strings.Cut(m.String(), ";")
			return mime
		}
	}
	return fallback
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 500 {
		return s[:500] + "..."
	}
	return s
}

package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"avpackaging/internal/services"
)

var (
	audioAccessExtensions = map[string]struct{}{".mp3": {}}
	videoAccessExtensions = map[string]struct{}{".mp4": {}}
)

// Classify determines the asset format from the staged file set. Two files
// with an audio access copy is audio; three files with a video access copy is
// video. Any other shape is a classification error.
func Classify(files []string) (Format, error) {
	switch {
	case len(files) == 2 && anyExtension(files, audioAccessExtensions):
		return Audio{}, nil
	case len(files) == 3 && anyExtension(files, videoAccessExtensions):
		return Video{}, nil
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	return nil, services.Wrap(
		services.ErrClassification,
		"classifying",
		"classify",
		fmt.Sprintf("unrecognized package format for %d files [%s]", len(files), strings.Join(names, ", ")),
		nil,
	)
}

func anyExtension(files []string, exts map[string]struct{}) bool {
	for _, f := range files {
		if _, ok := exts[strings.ToLower(filepath.Ext(f))]; ok {
			return true
		}
	}
	return false
}

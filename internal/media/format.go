package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"avpackaging/internal/services"
)

// Kind names a media kind.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// ParseKind validates an operator-supplied media kind.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindAudio:
		return KindAudio, nil
	case KindVideo:
		return KindVideo, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "", "parse kind", fmt.Sprintf("unknown media kind %q (expected audio or video)", value), nil)
	}
}

// Origin returns the bag origin tag for the kind.
func (k Kind) Origin() string {
	return "av_digitization_" + string(k)
}

func (k Kind) String() string { return string(k) }

// Destination identifies where a delivered file belongs. Buckets are bound to
// destinations by the caller's configuration.
type Destination string

const (
	DestinationPackage        Destination = "package"
	DestinationVideoMezzanine Destination = "video_mezzanine"
	DestinationVideoAccess    Destination = "video_access"
	DestinationAudioAccess    Destination = "audio_access"
	DestinationPoster         Destination = "poster"
)

// PosterFileName is the fixed name of the extracted poster frame.
const PosterFileName = "poster.png"

// Template describes one derivative relative to a reference id.
type Template struct {
	// Suffix is appended to the reference id to form the local file name.
	// Ignored when FileName is set.
	Suffix      string
	FileName    string
	Destination Destination
	ContentType string
}

// LocalName returns the derivative's file name for refID.
func (t Template) LocalName(refID string) string {
	if t.FileName != "" {
		return t.FileName
	}
	return refID + t.Suffix
}

// Format is the classified shape of an asset. Its only implementations are
// Audio and Video.
type Format interface {
	Kind() Kind
	// Templates lists the derivatives to deliver, in delivery order.
	Templates() []Template
	isFormat()
}

// Audio is an audio asset: a master and an mp3 access copy.
type Audio struct{}

// Video is a video asset: a master, a mezzanine and an mp4 access copy, plus
// the poster frame derived from the access copy.
type Video struct{}

func (Audio) Kind() Kind { return KindAudio }
func (Video) Kind() Kind { return KindVideo }

func (Audio) isFormat() {}
func (Video) isFormat() {}

var (
	audioTemplates = []Template{
		{Suffix: "_a.mp3", Destination: DestinationAudioAccess, ContentType: "audio/mpeg"},
	}
	videoTemplates = []Template{
		{Suffix: "_me.mov", Destination: DestinationVideoMezzanine, ContentType: "video/quicktime"},
		{Suffix: "_a.mp4", Destination: DestinationVideoAccess, ContentType: "video/mp4"},
		{FileName: PosterFileName, Destination: DestinationPoster, ContentType: "image/x-png"},
	}
)

func (Audio) Templates() []Template { return append([]Template(nil), audioTemplates...) }
func (Video) Templates() []Template { return append([]Template(nil), videoTemplates...) }

// FormatFor returns the Format for a kind.
func FormatFor(kind Kind) (Format, error) {
	switch kind {
	case KindAudio:
		return Audio{}, nil
	case KindVideo:
		return Video{}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "", "format for kind", fmt.Sprintf("unknown media kind %q", kind), nil)
	}
}

// Descriptor is a concrete file to deliver.
type Descriptor struct {
	Path        string
	Destination Destination
	Key         string
	ContentType string
}

// Descriptors expands the format's templates for refID with files located in dir.
// Object keys are the reference id plus the local file's extension.
func Descriptors(format Format, refID, dir string) []Descriptor {
	templates := format.Templates()
	out := make([]Descriptor, 0, len(templates))
	for _, tmpl := range templates {
		name := tmpl.LocalName(refID)
		out = append(out, Descriptor{
			Path:        filepath.Join(dir, name),
			Destination: tmpl.Destination,
			Key:         refID + filepath.Ext(name),
			ContentType: tmpl.ContentType,
		})
	}
	return out
}

// AccessCopyPath returns the video access copy used as the poster source.
func AccessCopyPath(refID, dir string) string {
	return filepath.Join(dir, refID+videoTemplates[1].Suffix)
}

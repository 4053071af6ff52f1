// Package media classifies staged digitization output and describes the
// derivatives each media kind produces.
//
// Classify inspects a staged file set and returns the asset's Format, a
// closed variant with one case per media kind. Each case carries its fixed,
// ordered derivative templates; Descriptors expands them into concrete local
// paths, object keys and content types for delivery. ExtractPoster drives
// ffmpeg's thumbnail filter to produce the poster still for video assets.
package media

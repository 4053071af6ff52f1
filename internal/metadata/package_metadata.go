package metadata

import (
	"fmt"
	"strings"
	"time"

	"avpackaging/internal/services"
)

// Bag-info keys written for every package.
const (
	KeyURI       = "ArchivesSpace-URI"
	KeyStartDate = "Start-Date"
	KeyEndDate   = "End-Date"
	KeyOrigin    = "Origin"
	KeyRightsID  = "Rights-ID"
)

var knownOrigins = map[string]struct{}{
	"av_digitization_audio": {},
	"av_digitization_video": {},
}

// Field is one bag-info line.
type Field struct {
	Key   string
	Value string
}

// PackageMetadata holds the annotations sealed into a bag.
type PackageMetadata struct {
	URI       string
	StartDate string
	EndDate   string
	Origin    string
	RightsIDs []string
}

// Validate enforces the contract a bag's metadata must meet before sealing:
// every key present, the URI is a repository path, dates are full ISO dates
// in order, the origin is a known tag and at least one rights id is non-empty.
func (m PackageMetadata) Validate() error {
	fail := func(msg string) error {
		return services.Wrap(services.ErrValidation, "bagging", "validate metadata", msg, nil)
	}
	if strings.TrimSpace(m.URI) == "" {
		return fail(KeyURI + " is missing")
	}
	if !strings.HasPrefix(m.URI, "/repositories/") {
		return fail(fmt.Sprintf("%s %q is not a repository path", KeyURI, m.URI))
	}
	start, err := time.Parse(DateLayout, m.StartDate)
	if err != nil {
		return fail(fmt.Sprintf("%s %q is not YYYY-MM-DD", KeyStartDate, m.StartDate))
	}
	end, err := time.Parse(DateLayout, m.EndDate)
	if err != nil {
		return fail(fmt.Sprintf("%s %q is not YYYY-MM-DD", KeyEndDate, m.EndDate))
	}
	if end.Before(start) {
		return fail(fmt.Sprintf("%s %s precedes %s %s", KeyEndDate, m.EndDate, KeyStartDate, m.StartDate))
	}
	if _, ok := knownOrigins[m.Origin]; !ok {
		return fail(fmt.Sprintf("%s %q is not recognized", KeyOrigin, m.Origin))
	}
	if len(m.RightsIDs) == 0 {
		return fail(KeyRightsID + " is missing")
	}
	for _, id := range m.RightsIDs {
		if strings.TrimSpace(id) == "" {
			return fail(KeyRightsID + " contains an empty value")
		}
	}
	return nil
}

// Fields returns the bag-info lines in a stable order, one Rights-ID line per
// identifier.
func (m PackageMetadata) Fields() []Field {
	fields := []Field{
		{Key: KeyURI, Value: m.URI},
		{Key: KeyStartDate, Value: m.StartDate},
		{Key: KeyEndDate, Value: m.EndDate},
		{Key: KeyOrigin, Value: m.Origin},
	}
	for _, id := range m.RightsIDs {
		fields = append(fields, Field{Key: KeyRightsID, Value: id})
	}
	return fields
}

// ParseRightsIDs splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func ParseRightsIDs(value string) []string {
	var ids []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

package metadata

import (
	"context"
	"fmt"
	"log/slog"

	"avpackaging/internal/logging"
	"avpackaging/internal/media"
	"avpackaging/internal/services"
	"avpackaging/internal/services/aspace"
)

// Catalog is the subset of the ArchivesSpace client the resolver needs.
type Catalog interface {
	FindByRefID(ctx context.Context, refID string) ([]string, error)
	ClosestDate(ctx context.Context, uri string) (aspace.Date, error)
}

// Resolver builds PackageMetadata from the catalog.
type Resolver struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewResolver constructs a resolver.
func NewResolver(catalog Catalog, logger *slog.Logger) *Resolver {
	return &Resolver{catalog: catalog, logger: logging.NewComponentLogger(logger, "metadata")}
}

// Resolve looks up refID, normalizes its closest date and returns validated
// metadata for a bag of the given kind.
func (r *Resolver) Resolve(ctx context.Context, refID string, kind media.Kind, rightsIDs []string) (PackageMetadata, error) {
	uri, err := r.ResolveURI(ctx, refID)
	if err != nil {
		return PackageMetadata{}, err
	}
	date, err := r.catalog.ClosestDate(ctx, uri)
	if err != nil {
		return PackageMetadata{}, err
	}
	start, end, err := NormalizeDates(date)
	if err != nil {
		return PackageMetadata{}, err
	}

	meta := PackageMetadata{
		URI:       uri,
		StartDate: start,
		EndDate:   end,
		Origin:    kind.Origin(),
		RightsIDs: append([]string(nil), rightsIDs...),
	}
	if err := meta.Validate(); err != nil {
		return PackageMetadata{}, err
	}
	logging.WithContext(ctx, r.logger).Debug(
		"metadata resolved",
		logging.String("uri", uri),
		logging.String("start_date", start),
		logging.String("end_date", end),
		logging.String("date_type", date.DateType),
	)
	return meta, nil
}

// ResolveURI returns the URI of the single archival object matching refID.
// Zero matches is ErrNotFound and several is ErrAmbiguous.
func (r *Resolver) ResolveURI(ctx context.Context, refID string) (string, error) {
	uris, err := r.catalog.FindByRefID(ctx, refID)
	if err != nil {
		return "", err
	}
	switch len(uris) {
	case 1:
		return uris[0], nil
	case 0:
		return "", services.Wrap(services.ErrNotFound, "resolving_metadata", "find by id", fmt.Sprintf("no archival object with ref_id %q", refID), nil)
	default:
		return "", services.Wrap(services.ErrAmbiguous, "resolving_metadata", "find by id", fmt.Sprintf("%d archival objects with ref_id %q, expected one", len(uris), refID), nil)
	}
}

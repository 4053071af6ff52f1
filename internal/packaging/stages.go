package packaging

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"avpackaging/internal/archive"
	"avpackaging/internal/bagit"
	"avpackaging/internal/fileutil"
	"avpackaging/internal/logging"
	"avpackaging/internal/media"
	"avpackaging/internal/services"
	"avpackaging/internal/storage"
)

// stage downloads every source object belonging to the refid into the
// working directory.
func (p *Pipeline) stage(ctx context.Context, r *run) error {
	bucket := p.cfg.Buckets.Source
	objects, err := p.store.List(ctx, bucket, r.refID)
	if err != nil {
		return err
	}
	keys := ownedKeys(r.refID, objects)
	if len(keys) == 0 {
		return services.Wrap(services.ErrNotFound, string(StateStaging), "list source", fmt.Sprintf("no objects for %s in %s", r.refID, bucket), nil)
	}

	if err := p.clearStale(ctx, r); err != nil {
		return err
	}
	if err := os.MkdirAll(r.workDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, string(StateStaging), "create working directory", r.workDir, err)
	}

	seen := make(map[string]string, len(keys))
	files := make([]string, 0, len(keys))
	for _, key := range keys {
		name := path.Base(key)
		if prev, ok := seen[name]; ok {
			return services.Wrap(services.ErrClassification, string(StateStaging), "stage object", fmt.Sprintf("keys %s and %s share the file name %s", prev, key, name), nil)
		}
		seen[name] = key
		dest := filepath.Join(r.workDir, name)
		if err := p.store.Download(ctx, bucket, key, dest); err != nil {
			return err
		}
		files = append(files, dest)
	}

	r.stagedKeys = keys
	r.files = files
	logging.WithContext(ctx, p.logger).Info("source objects staged",
		logging.Int("objects", len(keys)),
		logging.String("bucket", bucket),
		logging.String("dir", r.workDir),
	)
	return nil
}

// clearStale removes working paths left by an interrupted run so the bag holds
// only the objects staged now. The caller holds the refid lock.
func (p *Pipeline) clearStale(ctx context.Context, r *run) error {
	for _, path := range []string{r.workDir, r.derivDir, r.archivePath} {
		if _, err := os.Lstat(path); err != nil {
			continue
		}
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "removing leftover working path", "stale_workdir",
			logging.String("path", path),
			logging.String(logging.FieldImpact, "files from an interrupted run are discarded"),
		)
		if err := os.RemoveAll(path); err != nil {
			return services.Wrap(services.ErrConfiguration, string(StateStaging), "clear working directory", path, err)
		}
	}
	return nil
}

// ownedKeys filters a prefix listing down to keys that belong to refID: keys
// under the "<refid>/" folder, or flat keys named "<refid>.ext" or
// "<refid>_suffix.ext". Folder markers are skipped.
func ownedKeys(refID string, objects []storage.Object) []string {
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		rest, ok := strings.CutPrefix(obj.Key, refID)
		if !ok || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		flat := !strings.Contains(rest, "/") && (strings.HasPrefix(rest, "_") || strings.HasPrefix(rest, "."))
		if !strings.HasPrefix(rest, "/") && !flat {
			continue
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys
}

func (p *Pipeline) classify(ctx context.Context, r *run) error {
	format, err := media.Classify(r.files)
	if err != nil {
		return err
	}
	if r.asserted != "" && format.Kind() != r.asserted {
		return services.Wrap(services.ErrClassification, string(StateClassifying), "classify",
			fmt.Sprintf("files classify as %s but %s was requested", format.Kind(), r.asserted), nil)
	}
	r.format = format
	logging.WithContext(ctx, p.logger).Info("package classified", logging.String("kind", string(format.Kind())))
	return nil
}

// derive creates the poster for video and sets every derivative aside so the
// bag holds only the preservation master.
func (p *Pipeline) derive(ctx context.Context, r *run) error {
	switch r.format.(type) {
	case media.Video:
		opts := media.PosterOptions{
			FFmpegBinary: p.cfg.Poster.FFmpegBinary,
			Window:       p.cfg.Poster.ThumbnailWindow,
		}
		poster, err := media.ExtractPoster(ctx, opts, media.AccessCopyPath(r.refID, r.workDir), r.workDir)
		if err != nil {
			return err
		}
		logging.WithContext(ctx, p.logger).Info("poster extracted", logging.String("path", poster))
	case media.Audio:
	}

	if err := os.MkdirAll(r.derivDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, string(StateDeriving), "create derivative directory", r.derivDir, err)
	}
	descriptors := media.Descriptors(r.format, r.refID, r.workDir)
	for i, d := range descriptors {
		if _, err := os.Stat(d.Path); err != nil {
			return services.Wrap(services.ErrClassification, string(StateDeriving), "locate derivative",
				fmt.Sprintf("expected %s for %s package", filepath.Base(d.Path), r.format.Kind()), err)
		}
		dest := filepath.Join(r.derivDir, filepath.Base(d.Path))
		if err := fileutil.MoveFile(d.Path, dest); err != nil {
			return services.Wrap(services.ErrExternalTool, string(StateDeriving), "set aside derivative", d.Path, err)
		}
		descriptors[i].Path = dest
	}
	r.descriptors = descriptors
	return nil
}

func (p *Pipeline) resolveMetadata(ctx context.Context, r *run) error {
	meta, err := p.resolver.Resolve(ctx, r.refID, r.format.Kind(), r.rightsIDs)
	if err != nil {
		return err
	}
	r.meta = meta
	return nil
}

func (p *Pipeline) bag(ctx context.Context, r *run) error {
	fields := r.meta.Fields()
	tags := make([]bagit.Tag, 0, len(fields))
	for _, f := range fields {
		tags = append(tags, bagit.Tag{Key: f.Key, Value: f.Value})
	}
	if err := bagit.Make(r.workDir, tags, bagit.Options{Now: p.clock}); err != nil {
		return err
	}
	if err := bagit.Validate(r.workDir); err != nil {
		return err
	}
	logging.WithContext(ctx, p.logger).Info("bag sealed", logging.Int("tags", len(tags)))
	return nil
}

func (p *Pipeline) compress(ctx context.Context, r *run) error {
	archivePath, err := archive.Compress(r.workDir)
	if err != nil {
		return err
	}
	r.archivePath = archivePath
	if info, err := os.Stat(archivePath); err == nil {
		logging.WithContext(ctx, p.logger).Info("bag compressed",
			logging.String("path", archivePath),
			logging.Int64("bytes", info.Size()),
		)
	}
	return nil
}

// deliver uploads each derivative and then the archive, removing every local
// copy once it is uploaded.
func (p *Pipeline) deliver(ctx context.Context, r *run) error {
	logger := logging.WithContext(ctx, p.logger)
	for _, d := range r.descriptors {
		bucket, err := p.bucketFor(d.Destination)
		if err != nil {
			return err
		}
		if err := p.upload(ctx, r, bucket, d.Key, d.Path, d.ContentType); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(r.derivDir); err != nil {
		logging.WarnWithContext(logger, "failed to remove derivative directory", "cleanup_failed",
			logging.String("path", r.derivDir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
	}

	bucket, err := p.bucketFor(media.DestinationPackage)
	if err != nil {
		return err
	}
	return p.upload(ctx, r, bucket, r.refID+archive.Suffix, r.archivePath, archive.ContentType)
}

func (p *Pipeline) upload(ctx context.Context, r *run, bucket, key, src, contentType string) error {
	if err := p.store.Upload(ctx, bucket, key, src, contentType); err != nil {
		return err
	}
	r.delivered = append(r.delivered, bucket+"/"+key)
	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		return services.Wrap(services.ErrExternalTool, string(StateDelivering), "remove delivered file", src, err)
	}
	logging.WithContext(ctx, p.logger).Info("object delivered",
		logging.String("bucket", bucket),
		logging.String("key", key),
		logging.String("content_type", contentType),
	)
	return nil
}

func (p *Pipeline) bucketFor(dest media.Destination) (string, error) {
	b := p.cfg.Buckets
	var bucket string
	switch dest {
	case media.DestinationPackage:
		bucket = b.Package
	case media.DestinationVideoMezzanine:
		bucket = b.VideoMezzanine
	case media.DestinationVideoAccess:
		bucket = b.VideoAccess
	case media.DestinationAudioAccess:
		bucket = b.AudioAccess
	case media.DestinationPoster:
		bucket = b.Poster
	}
	if strings.TrimSpace(bucket) == "" {
		return "", services.Wrap(services.ErrConfiguration, string(StateDelivering), "resolve bucket", fmt.Sprintf("no bucket configured for %s", dest), nil)
	}
	return bucket, nil
}

// purge deletes exactly the keys captured during staging. Objects that
// appeared under the prefix since then are left in place.
func (p *Pipeline) purge(ctx context.Context, r *run) error {
	bucket := p.cfg.Buckets.Source
	if err := p.store.Delete(ctx, bucket, r.stagedKeys); err != nil {
		return err
	}
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("source objects purged", logging.Int("objects", len(r.stagedKeys)), logging.String("bucket", bucket))

	remaining, err := p.store.List(ctx, bucket, r.refID)
	if err != nil {
		logger.Debug("post-purge listing failed", logging.Error(err))
		return nil
	}
	if late := ownedKeys(r.refID, remaining); len(late) > 0 {
		logging.WarnWithContext(logger, "objects arrived during run were not purged", "late_arrivals",
			logging.Any("keys", late),
			logging.String(logging.FieldErrorHint, "re-run the refid once the upload completes"),
			logging.String(logging.FieldImpact, "source objects remain in the bucket"),
		)
	}
	return nil
}

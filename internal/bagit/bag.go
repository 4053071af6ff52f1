package bagit

import (
	"bufio"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"avpackaging/internal/services"
)

const (
	// Version is the BagIt version declared in bagit.txt.
	Version      = "0.97"
	payloadDir   = "data"
	declaration  = "bagit.txt"
	infoFile     = "bag-info.txt"
	softwareName = "avpackaging"
)

// Tag is one bag-info.txt line. Keys may repeat.
type Tag struct {
	Key   string
	Value string
}

type algorithm struct {
	name string
	new  func() hash.Hash
}

var algorithms = []algorithm{
	{name: "sha256", new: sha256.New},
	{name: "sha512", new: sha512.New},
}

// Options tunes bag creation.
type Options struct {
	// Now overrides the Bagging-Date clock.
	Now func() time.Time
}

// Make converts dir into a bag holding its current contents as payload.
func Make(dir string, tags []Tag, opts Options) error {
	info, err := os.Stat(dir)
	if err != nil {
		return wrapTool("stat bag directory", dir, err)
	}
	if !info.IsDir() {
		return wrapTool("stat bag directory", dir+" is not a directory", nil)
	}
	for _, tag := range tags {
		if strings.ContainsAny(tag.Key, ":\r\n") || strings.TrimSpace(tag.Key) == "" {
			return services.Wrap(services.ErrValidation, "bagging", "make bag", fmt.Sprintf("invalid tag key %q", tag.Key), nil)
		}
		if strings.ContainsAny(tag.Value, "\r\n") {
			return services.Wrap(services.ErrValidation, "bagging", "make bag", fmt.Sprintf("tag %s value spans lines", tag.Key), nil)
		}
	}

	if err := movePayload(dir); err != nil {
		return err
	}

	manifests, oxum, err := hashPayload(dir)
	if err != nil {
		return err
	}
	for i, alg := range algorithms {
		if err := writeManifest(filepath.Join(dir, "manifest-"+alg.name+".txt"), manifests[i]); err != nil {
			return err
		}
	}

	if err := writeFile(filepath.Join(dir, declaration), fmt.Sprintf("BagIt-Version: %s\nTag-File-Character-Encoding: UTF-8\n", Version)); err != nil {
		return err
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Bag-Software-Agent: %s\n", softwareName)
	fmt.Fprintf(&b, "Bagging-Date: %s\n", now().Format("2006-01-02"))
	fmt.Fprintf(&b, "Payload-Oxum: %s\n", oxum)
	for _, tag := range tags {
		fmt.Fprintf(&b, "%s: %s\n", tag.Key, tag.Value)
	}
	if err := writeFile(filepath.Join(dir, infoFile), b.String()); err != nil {
		return err
	}

	tagFiles := []string{declaration, infoFile}
	for _, alg := range algorithms {
		tagFiles = append(tagFiles, "manifest-"+alg.name+".txt")
	}
	tagManifests := make([]map[string]string, len(algorithms))
	for i := range tagManifests {
		tagManifests[i] = make(map[string]string, len(tagFiles))
	}
	for _, name := range tagFiles {
		sums, _, err := hashFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		for i := range algorithms {
			tagManifests[i][name] = sums[i]
		}
	}
	for i, alg := range algorithms {
		if err := writeManifest(filepath.Join(dir, "tagmanifest-"+alg.name+".txt"), tagManifests[i]); err != nil {
			return err
		}
	}
	return nil
}

// movePayload moves every entry of dir into dir/data via a temporary
// directory so an existing entry named data is handled.
func movePayload(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return wrapTool("read bag directory", dir, err)
	}
	tmp, err := os.MkdirTemp(dir, ".payload-")
	if err != nil {
		return wrapTool("create payload directory", dir, err)
	}
	for _, entry := range entries {
		if err := os.Rename(filepath.Join(dir, entry.Name()), filepath.Join(tmp, entry.Name())); err != nil {
			return wrapTool("move payload", entry.Name(), err)
		}
	}
	if err := os.Rename(tmp, filepath.Join(dir, payloadDir)); err != nil {
		return wrapTool("move payload", payloadDir, err)
	}
	return nil
}

func hashPayload(dir string) ([]map[string]string, string, error) {
	manifests := make([]map[string]string, len(algorithms))
	for i := range manifests {
		manifests[i] = make(map[string]string)
	}
	var total, count int64
	root := filepath.Join(dir, payloadDir)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return fmt.Errorf("%s is not a regular file", p)
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		sums, size, err := hashFile(p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		for i := range algorithms {
			manifests[i][key] = sums[i]
		}
		total += size
		count++
		return nil
	})
	if err != nil {
		return nil, "", wrapTool("hash payload", dir, err)
	}
	return manifests, fmt.Sprintf("%d.%d", total, count), nil
}

func hashFile(p string) ([]string, int64, error) {
	file, err := os.Open(p)
	if err != nil {
		return nil, 0, wrapTool("open file", p, err)
	}
	defer file.Close()

	hashes := make([]hash.Hash, len(algorithms))
	writers := make([]io.Writer, len(algorithms))
	for i, alg := range algorithms {
		hashes[i] = alg.new()
		writers[i] = hashes[i]
	}
	size, err := io.Copy(io.MultiWriter(writers...), file)
	if err != nil {
		return nil, 0, wrapTool("hash file", p, err)
	}
	sums := make([]string, len(hashes))
	for i, h := range hashes {
		sums[i] = hex.EncodeToString(h.Sum(nil))
	}
	return sums, size, nil
}

func writeManifest(p string, entries map[string]string) error {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s  %s\n", entries[name], name)
	}
	return writeFile(p, b.String())
}

func writeFile(p, content string) error {
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return wrapTool("write tag file", filepath.Base(p), err)
	}
	return nil
}

// Validate verifies a bag's declaration, payload manifests and Payload-Oxum.
func Validate(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, declaration)); err != nil {
		return invalid("missing "+declaration, err)
	}
	info, err := ReadInfo(dir)
	if err != nil {
		return err
	}

	listed := make(map[string]struct{})
	for _, alg := range algorithms {
		entries, err := readManifest(filepath.Join(dir, "manifest-"+alg.name+".txt"))
		if err != nil {
			return err
		}
		for name, want := range entries {
			if !strings.HasPrefix(name, payloadDir+"/") || strings.Contains(name, "..") {
				return invalid(fmt.Sprintf("manifest entry %q outside payload", name), nil)
			}
			listed[name] = struct{}{}
			h := alg.new()
			if err := hashInto(h, filepath.Join(dir, filepath.FromSlash(name))); err != nil {
				return err
			}
			if got := hex.EncodeToString(h.Sum(nil)); got != want {
				return invalid(fmt.Sprintf("%s %s mismatch for %s", alg.name, got, name), nil)
			}
		}
	}

	var total, count int64
	err = filepath.WalkDir(filepath.Join(dir, payloadDir), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if _, ok := listed[filepath.ToSlash(rel)]; !ok {
			return fmt.Errorf("payload file %s not in manifest", filepath.ToSlash(rel))
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		count++
		return nil
	})
	if err != nil {
		return invalid("walk payload", err)
	}

	if oxum := info.First("Payload-Oxum"); oxum != "" && oxum != fmt.Sprintf("%d.%d", total, count) {
		return invalid(fmt.Sprintf("Payload-Oxum %s does not match %d.%d", oxum, total, count), nil)
	}
	return nil
}

func hashInto(h hash.Hash, p string) error {
	file, err := os.Open(p)
	if err != nil {
		return invalid("open payload file", err)
	}
	defer file.Close()
	if _, err := io.Copy(h, file); err != nil {
		return invalid("read payload file", err)
	}
	return nil
}

func readManifest(p string) (map[string]string, error) {
	file, err := os.Open(p)
	if err != nil {
		return nil, invalid("open "+filepath.Base(p), err)
	}
	defer file.Close()

	entries := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sum, name, ok := strings.Cut(line, " ")
		if !ok {
			return nil, invalid(fmt.Sprintf("malformed manifest line %q", line), nil)
		}
		entries[strings.TrimSpace(name)] = strings.ToLower(sum)
	}
	if err := scanner.Err(); err != nil {
		return nil, invalid("read manifest", err)
	}
	return entries, nil
}

// Info is the parsed contents of bag-info.txt.
type Info []Tag

// First returns the first value for key or "".
func (i Info) First(key string) string {
	for _, tag := range i {
		if strings.EqualFold(tag.Key, key) {
			return tag.Value
		}
	}
	return ""
}

// All returns every value for key in file order.
func (i Info) All(key string) []string {
	var values []string
	for _, tag := range i {
		if strings.EqualFold(tag.Key, key) {
			values = append(values, tag.Value)
		}
	}
	return values
}

// ReadInfo parses dir/bag-info.txt.
func ReadInfo(dir string) (Info, error) {
	file, err := os.Open(filepath.Join(dir, infoFile))
	if err != nil {
		return nil, invalid("missing "+infoFile, err)
	}
	defer file.Close()

	var info Info
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(info) > 0 {
			info[len(info)-1].Value += " " + strings.TrimSpace(line)
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, invalid(fmt.Sprintf("malformed %s line %q", infoFile, line), nil)
		}
		info = append(info, Tag{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
	}
	if err := scanner.Err(); err != nil {
		return nil, invalid("read "+infoFile, err)
	}
	return info, nil
}

func wrapTool(op, detail string, err error) error {
	return services.Wrap(services.ErrExternalTool, "bagging", op, detail, err)
}

func invalid(detail string, err error) error {
	return services.Wrap(services.ErrValidation, "bagging", "validate bag", detail, err)
}

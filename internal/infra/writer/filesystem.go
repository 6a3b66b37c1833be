// Package writer delivers summarized buckets to their destinations. The
// filesystem writer renders markdown documents under a local root; the
// docstore writer posts JSON documents to a remote document store over
// HTTP. Retry is owned by the pipeline.
package writer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"feedbrief/internal/domain/entity"
)

// FilesystemConfig contains configuration for the filesystem writer.
type FilesystemConfig struct {
	// Root is the directory documents are written under.
	Root string

	// DirMode is applied to created directories.
	DirMode os.FileMode

	// FileMode is applied to written documents.
	FileMode os.FileMode
}

// DefaultFilesystemConfig returns a filesystem writer configuration
// rooted at the given directory.
func DefaultFilesystemConfig(root string) FilesystemConfig {
	return FilesystemConfig{
		Root:     root,
		DirMode:  0o755,
		FileMode: 0o644,
	}
}

// Filesystem writes each bucket as a markdown document under
// <root>/<channel>/<date>/<bucket>.md.
type Filesystem struct {
	cfg FilesystemConfig
	now func() time.Time
}

// NewFilesystem creates a filesystem writer.
func NewFilesystem(cfg FilesystemConfig) *Filesystem {
	return &Filesystem{cfg: cfg, now: time.Now}
}

// Write renders the bucket to markdown and stores it on disk. The
// document path is derived from the channel, the current date, and the
// bucket name; writing the same bucket twice in a day overwrites the
// earlier document.
func (f *Filesystem) Write(ctx context.Context, channel string, bucket *entity.Bucket) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(f.cfg.Root, channel, f.now().Format("2006-01-02"))
	if err := os.MkdirAll(dir, f.cfg.DirMode); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}

	path := filepath.Join(dir, sanitizeName(bucket.Name)+".md")
	doc := renderMarkdown(channel, bucket, f.now())

	if err := os.WriteFile(path, []byte(doc), f.cfg.FileMode); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	slog.Debug("document written",
		slog.String("channel", channel),
		slog.String("bucket", bucket.Name),
		slog.String("path", path),
		slog.Int("records", bucket.Count))

	return nil
}

// Ping verifies the root directory exists and is writable.
func (f *Filesystem) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.cfg.Root, f.cfg.DirMode); err != nil {
		return fmt.Errorf("document root not writable: %w", err)
	}
	probe, err := os.CreateTemp(f.cfg.Root, ".probe-*")
	if err != nil {
		return fmt.Errorf("document root not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}

func renderMarkdown(channel string, bucket *entity.Bucket, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", bucket.Name)
	fmt.Fprintf(&b, "_channel: %s · generated: %s · items: %d_\n\n",
		channel, at.Format(time.RFC3339), bucket.Count)

	if bucket.Summary != "" {
		b.WriteString(bucket.Summary)
		b.WriteString("\n\n")
	}

	b.WriteString("## Items\n\n")
	for _, r := range bucket.Records {
		fmt.Fprintf(&b, "- [%s](%s)", r.Title, r.Link)
		if r.SourceTitle != "" {
			fmt.Fprintf(&b, " — %s", r.SourceTitle)
		}
		if !r.PublishedAt.IsZero() {
			fmt.Fprintf(&b, " (%s)", r.PublishedAt.Format("2006-01-02 15:04"))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// sanitizeName makes a bucket name safe for use as a file name.
func sanitizeName(name string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", " ", "_", ":", "-")
	s := replacer.Replace(strings.ToLower(name))
	if s == "" {
		s = "unnamed"
	}
	return s
}

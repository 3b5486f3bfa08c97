package species

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/birdweather-sync/internal/errors"
	"github.com/tphakala/birdweather-sync/internal/httpclient"
	"github.com/tphakala/birdweather-sync/internal/logger"
)

const maxImageBytes = 20 << 20

// ImageDownloader stores species imagery under a directory as
// {id}.jpg and {id}.thumbnail.jpg.
type ImageDownloader struct {
	dir  string
	http *httpclient.Client
	log  logger.Logger
}

// NewImageDownloader returns a downloader writing into dir.
func NewImageDownloader(dir string, hc *httpclient.Client, log logger.Logger) *ImageDownloader {
	if hc == nil {
		hc = httpclient.New(nil)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ImageDownloader{dir: dir, http: hc, log: log.Module("images")}
}

// SafeFileID reports whether id is a single clean path element that stays
// inside the image directory once joined to it.
func SafeFileID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	if strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return false
	}
	return id == filepath.Base(id) && filepath.IsLocal(id)
}

// ImagePath is the local path of the primary image of a species.
func (d *ImageDownloader) ImagePath(id string) string {
	return filepath.Join(d.dir, id+".jpg")
}

// ThumbnailPath is the local path of the thumbnail of a species.
func (d *ImageDownloader) ThumbnailPath(id string) string {
	return filepath.Join(d.dir, id+".thumbnail.jpg")
}

// DownloadAll fetches the image and the thumbnail. Each returned path is
// empty when its URL is empty or its download failed; failures are logged.
func (d *ImageDownloader) DownloadAll(ctx context.Context, id, imageURL, thumbnailURL string) (imagePath, thumbPath string) {
	if (imageURL != "" || thumbnailURL != "") && !SafeFileID(id) {
		d.log.Warn("species id is not usable as a file name, skipping images",
			logger.String("species_id", id))
		return "", ""
	}

	if imageURL != "" {
		path := d.ImagePath(id)
		if err := d.Download(ctx, imageURL, path); err != nil {
			d.log.Warn("failed to download species image",
				logger.String("species_id", id),
				logger.Error(err))
		} else {
			imagePath = path
		}
	}

	if thumbnailURL != "" {
		path := d.ThumbnailPath(id)
		if err := d.Download(ctx, thumbnailURL, path); err != nil {
			d.log.Warn("failed to download species thumbnail",
				logger.String("species_id", id),
				logger.Error(err))
		} else {
			thumbPath = path
		}
	}

	return imagePath, thumbPath
}

// Download writes url to dest through a temp file in the same directory,
// so dest is either absent or complete.
func (d *ImageDownloader) Download(ctx context.Context, url, dest string) error {
	resp, err := d.http.Get(ctx, url)
	if err != nil {
		return errors.New(err).
			Component("species").
			Category(errors.CategoryImageFetch).
			NetworkContext(url, 0).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			d.log.Debug("failed to close image response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("image download returned status %d", resp.StatusCode).
			Component("species").
			Category(errors.CategoryImageFetch).
			Context("status_code", resp.StatusCode).
			Build()
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fileError(err, "create_image_dir", dest)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fileError(err, "create_temp_image", dest)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxImageBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fileError(err, "write_image", dest)
	}
	if n > maxImageBytes {
		return errors.Newf("image exceeds %d bytes", maxImageBytes).
			Component("species").
			Category(errors.CategoryLimit).
			Context("path", dest).
			Build()
	}
	if n == 0 {
		return errors.Newf("image response was empty").
			Component("species").
			Category(errors.CategoryImageFetch).
			Context("path", dest).
			Build()
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return fileError(err, "rename_image", dest)
	}

	d.log.Debug("downloaded species image",
		logger.String("path", dest),
		logger.String("size", fmt.Sprintf("%d bytes", n)))
	return nil
}

func fileError(err error, operation, path string) error {
	return errors.New(err).
		Component("species").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Context("path", path).
		Build()
}

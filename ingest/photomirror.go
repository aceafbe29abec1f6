package ingest

import (
	"context"
	"strconv"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PhotoMirror re-uploads ephemeral judge-photo URLs the courthouse serves
// (which routinely expire or move) into a stable Cloudinary-hosted copy, so
// CurrentCourt and CourtSnapshot documents keep working image links long after
// the source page has cycled. Disabled entirely when no Cloudinary URL is
// configured.
type PhotoMirror struct {
	cld *cloudinary.Cloudinary
}

// NewPhotoMirror builds a PhotoMirror from a CLOUDINARY_URL connection
// string, or returns (nil, nil) when photo mirroring is disabled.
func NewPhotoMirror(cloudinaryURL string) (*PhotoMirror, error) {
	if cloudinaryURL == "" {
		return nil, nil
	}
	if !strings.HasPrefix(cloudinaryURL, "cloudinary://") {
		return nil, errors.New("initializing cloudinary client: url must use the cloudinary:// scheme")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, errors.Wrap(err, "initializing cloudinary client")
	}
	return &PhotoMirror{cld: cld}, nil
}

// Mirror uploads every photo URL and returns the mirrored secure URLs,
// index-aligned with the input. A single photo failing to mirror leaves an
// empty string in its slot rather than failing the whole court - this is a
// cosmetic enrichment, never allowed to block the tick.
func (m *PhotoMirror) Mirror(ctx context.Context, courtCode string, photoURLs []string) []string {
	if m == nil || len(photoURLs) == 0 {
		return nil
	}
	mirrors := make([]string, len(photoURLs))
	for i, src := range photoURLs {
		publicID := courtCode + "-" + strconv.Itoa(i)
		result, err := m.cld.Upload.Upload(ctx, src, uploader.UploadParams{
			PublicID: publicID,
			Folder:   "courtwatch/judges",
			Overwrite: boolPtr(true),
		})
		if err != nil {
			zap.S().Warnw("failed to mirror judge photo", "courtCode", courtCode, "index", i, "error", err)
			continue
		}
		mirrors[i] = result.SecureURL
	}
	return mirrors
}

package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

const rawResource = "raw"

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Manuscript identifies a manuscript file and the entry it belongs to.
type Manuscript struct {
	CompetitionID uint
	AuthorID      uint
	FileName      string
	Content       io.Reader
}

// StoredManuscript locates an uploaded manuscript. PublicID is needed to
// discard the asset again.
type StoredManuscript struct {
	URL      string
	PublicID string
}

// Service stores manuscript files as raw Cloudinary assets.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
		now:    time.Now,
	}, nil
}

// StoreManuscript uploads the manuscript as a raw asset under the
// competition's folder.
func (s *Service) StoreManuscript(ctx context.Context, manuscript Manuscript) (StoredManuscript, error) {
	params := uploader.UploadParams{
		Folder:       manuscriptFolder(s.folder, manuscript.CompetitionID),
		PublicID:     buildPublicID(manuscript.FileName, manuscript.AuthorID, s.now()),
		ResourceType: rawResource,
		Tags: api.CldAPIArray{
			"manuscript",
			fmt.Sprintf("competition-%d", manuscript.CompetitionID),
			fmt.Sprintf("author-%d", manuscript.AuthorID),
		},
	}

	result, err := s.client.Upload.Upload(ctx, manuscript.Content, params)
	if err != nil {
		return StoredManuscript{}, fmt.Errorf("upload manuscript: %w", err)
	}
	if result.Error.Message != "" {
		return StoredManuscript{}, fmt.Errorf("upload manuscript: %s", result.Error.Message)
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Uint("competition_id", manuscript.CompetitionID).
		Uint("author_id", manuscript.AuthorID).
		Int("bytes", result.Bytes).
		Msg("manuscript stored")

	return StoredManuscript{URL: result.SecureURL, PublicID: result.PublicID}, nil
}

// DiscardManuscript removes an asset whose entry was never recorded. A
// missing asset counts as discarded.
func (s *Service) DiscardManuscript(ctx context.Context, publicID string) error {
	if strings.TrimSpace(publicID) == "" {
		return nil
	}

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: rawResource,
	})
	if err != nil {
		return fmt.Errorf("discard manuscript %s: %w", publicID, err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("discard manuscript %s: %s", publicID, result.Error.Message)
	}
	if result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("discard manuscript %s: unexpected result %q", publicID, result.Result)
	}

	s.logger.Info().Str("public_id", publicID).Str("result", result.Result).Msg("manuscript discarded")
	return nil
}

func manuscriptFolder(base string, competitionID uint) string {
	base = strings.Trim(base, "/")
	return path.Join(base, fmt.Sprintf("competition-%d", competitionID))
}

// buildPublicID keeps the extension: raw assets are served under their public id.
func buildPublicID(name string, authorID uint, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "manuscript"
	}

	return fmt.Sprintf("%s-a%d-%d%s", base, authorID, at.Unix(), ext)
}

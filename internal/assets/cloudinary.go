package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Cloudinary uploads through an upload preset and deletes with the API secret.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	preset string
}

func NewCloudinary(cloudName, apiKey, apiSecret, preset string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld, preset: preset}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, obj Object, opts Options) (Asset, error) {
	params := uploader.UploadParams{
		Folder:       opts.Folder,
		UploadPreset: c.preset,
		PublicID:     opts.PublicID,
		ResourceType: "image",
	}
	if opts.Overwrite {
		overwrite := true
		params.Overwrite = &overwrite
	}

	res, err := c.cld.Upload.Upload(ctx, obj.Body, params)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return Asset{}, fmt.Errorf("cloudinary rejected %s: %w", obj.Name, errors.New(res.Error.Message))
	}
	return Asset{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

func (c *Cloudinary) Delete(ctx context.Context, publicID string) error {
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID, ResourceType: "image"})
	if err != nil {
		return fmt.Errorf("failed to delete from Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary delete %s: %w", publicID, errors.New(res.Error.Message))
	}
	return nil
}

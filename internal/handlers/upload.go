package handlers

import (
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/AnshRaj112/thriftit-backend/internal/assets"
	"github.com/AnshRaj112/thriftit-backend/internal/errs"
	"github.com/AnshRaj112/thriftit-backend/internal/models"
)

const (
	maxImageSize  = 10 << 20
	maxFormMemory = 32 << 20
	maxItemUpload = 64 << 20
)

// parseMultipart caps the body at limit bytes and parses it.
func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return errs.Invalid("body", fmt.Sprintf("Upload must be a multipart form under %s", humanize.IBytes(uint64(limit))))
	}
	return nil
}

// readImages loads every file posted under field.
func readImages(r *http.Request, field string) ([]assets.Source, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	out := make([]assets.Source, 0, len(headers))
	for _, fh := range headers {
		src, err := readImage(fh, field)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func readImage(fh *multipart.FileHeader, field string) (assets.Source, error) {
	if fh.Size > maxImageSize {
		return assets.Source{}, errs.Invalid(field, fmt.Sprintf("%s is %s, images must be under %s",
			fh.Filename, humanize.IBytes(uint64(fh.Size)), humanize.IBytes(maxImageSize)))
	}
	f, err := fh.Open()
	if err != nil {
		return assets.Source{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return assets.Source{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return assets.Source{Name: fh.Filename, Data: data}, nil
}

// formCoordinates reads an optional latitude/longitude pair. Both or neither
// must be present.
func formCoordinates(lat, lng string) (*models.Coordinates, error) {
	lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
	if lat == "" && lng == "" {
		return nil, nil
	}
	la, err := parseFinite(lat)
	if err != nil {
		return nil, errs.Invalid("latitude", "Invalid latitude")
	}
	lo, err := parseFinite(lng)
	if err != nil {
		return nil, errs.Invalid("longitude", "Invalid longitude")
	}
	c := &models.Coordinates{Latitude: la, Longitude: lo}
	if err := checkCoordinates(c); err != nil {
		return nil, err
	}
	return c, nil
}

// checkCoordinates accepts nil.
func checkCoordinates(c *models.Coordinates) error {
	if c == nil {
		return nil
	}
	if !finite(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return errs.Invalid("latitude", "Invalid latitude")
	}
	if !finite(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return errs.Invalid("longitude", "Invalid longitude")
	}
	return nil
}

// parseFinite is strconv.ParseFloat without NaN and the infinities.
func parseFinite(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if !finite(v) {
		return 0, fmt.Errorf("%q is not a finite number", raw)
	}
	return v, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func queryFloat(r *http.Request, key string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := parseFinite(raw)
	if err != nil || v < 0 {
		return nil, errs.Invalid(key, "Invalid "+strings.ReplaceAll(key, "_", " "))
	}
	return &v, nil
}

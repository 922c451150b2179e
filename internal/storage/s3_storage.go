package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/vedant7151/Invoice-Generator/internal/config"
	"github.com/vedant7151/Invoice-Generator/internal/logger"
)

// AssetKind names one of the branding images of a business profile.
type AssetKind string

const (
	AssetLogo      AssetKind = "logo"
	AssetStamp     AssetKind = "stamp"
	AssetSignature AssetKind = "signature"
)

// Decoded images may not exceed these bounds. Only the header is read to
// check them, so a small file declaring a huge canvas is rejected cheaply.
const (
	MaxImageSide   = 10000
	MaxImagePixels = 25_000_000
)

// ErrImageTooLarge is returned for images whose declared size exceeds the caps.
var ErrImageTooLarge = errors.New("image dimensions too large")

// CheckImageBounds rejects decodable images above MaxImageSide or
// MaxImagePixels. Data that is not a recognised image passes.
func CheckImageBounds(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	if cfg.Width > MaxImageSide || cfg.Height > MaxImageSide || cfg.Width*cfg.Height > MaxImagePixels {
		return fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}

// IAssetStorage stores an uploaded asset and returns its durable URL.
type IAssetStorage interface {
	Upload(ctx context.Context, owner string, kind AssetKind, filename, contentType string, data []byte) (string, error)
}

// objectPutter is the subset of *s3.Client used here.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Storage struct {
	client  objectPutter
	bucket  string
	region  string
	baseURL string
	prefix  string
	maxDim  uint
	log     *zap.Logger
}

// NewS3Storage creates an IAssetStorage backed by S3.
func NewS3Storage(cfg *config.Config, log *zap.Logger) (IAssetStorage, error) {
	if cfg.AwsS3Bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is not configured")
	}
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newS3Storage(s3.NewFromConfig(awsCfg), cfg, log), nil
}

func newS3Storage(client objectPutter, cfg *config.Config, log *zap.Logger) *s3Storage {
	return &s3Storage{
		client:  client,
		bucket:  cfg.AwsS3Bucket,
		region:  cfg.AwsRegion,
		baseURL: strings.TrimRight(cfg.AssetBaseURL, "/"),
		prefix:  strings.Trim(cfg.AssetPrefix, "/"),
		maxDim:  uint(max(cfg.ImageMaxDimension, 0)),
		log:     logger.OrNop(log),
	}
}

// Upload downscales oversized raster images before storing them under a
// fresh key, so repeated uploads never overwrite each other.
func (s *s3Storage) Upload(ctx context.Context, owner string, kind AssetKind, filename, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty %s upload", kind)
	}
	if err := CheckImageBounds(data); err != nil {
		return "", fmt.Errorf("%s upload: %w", kind, err)
	}
	data, contentType = NormalizeImage(data, contentType, s.maxDim, s.log)

	key := s.objectKey(owner, kind, filename, contentType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to S3 key %s: %w", kind, key, err)
	}
	s.log.Info("Asset uploaded", zap.String("owner", owner), zap.String("kind", string(kind)), zap.String("key", key), zap.Int("bytes", len(data)))
	return s.publicURL(key), nil
}

func (s *s3Storage) objectKey(owner string, kind AssetKind, filename, contentType string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if !isSafeExt(ext) {
		ext = ""
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	name := fmt.Sprintf("%s-%s%s", kind, uuid.NewString(), ext)
	return path.Join(s.prefix, sanitizeSegment(owner), name)
}

func (s *s3Storage) publicURL(key string) string {
	return publicBase(s.bucket, s.region, s.baseURL) + "/" + key
}

func publicBase(bucket, region, baseURL string) string {
	if baseURL != "" {
		return baseURL
	}
	if region == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com", bucket)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
}

// PublicURLPrefixes lists the URL prefixes uploaded assets are served under.
// It is empty when no bucket is configured.
func PublicURLPrefixes(cfg *config.Config) []string {
	if cfg.AwsS3Bucket == "" {
		return nil
	}
	base := publicBase(cfg.AwsS3Bucket, cfg.AwsRegion, strings.TrimRight(cfg.AssetBaseURL, "/"))
	if prefix := strings.Trim(cfg.AssetPrefix, "/"); prefix != "" {
		base += "/" + prefix
	}
	return []string{base + "/"}
}

func isSafeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func sanitizeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "anonymous"
	}
	return b.String()
}

// NormalizeImage shrinks decodable images that exceed maxDim on either side.
// PNG stays PNG so stamps and signatures keep their transparency; other
// formats are re-encoded as JPEG. Anything that cannot be decoded (SVG, PDF)
// is returned unchanged.
func NormalizeImage(data []byte, contentType string, maxDim uint, log *zap.Logger) ([]byte, string) {
	if maxDim == 0 || CheckImageBounds(data) != nil {
		return data, contentType
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, contentType
	}
	bounds := img.Bounds()
	if uint(bounds.Dx()) <= maxDim && uint(bounds.Dy()) <= maxDim {
		return data, contentType
	}

	resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	var buf bytes.Buffer
	outType := "image/jpeg"
	if format == "png" {
		outType = "image/png"
		err = png.Encode(&buf, resized)
	} else {
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		logger.OrNop(log).Warn("Failed to re-encode resized image, storing original", zap.Error(err))
		return data, contentType
	}
	logger.OrNop(log).Debug("Resized image",
		zap.Int("fromWidth", bounds.Dx()), zap.Int("fromHeight", bounds.Dy()),
		zap.Int("toWidth", resized.Bounds().Dx()), zap.Int("toHeight", resized.Bounds().Dy()))
	return buf.Bytes(), outType
}

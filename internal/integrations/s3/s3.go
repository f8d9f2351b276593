// Package s3 issues pre-signed upload credentials so clients push card
// images directly to the object store without routing bytes through the API.
package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/avitria/disaster-report-service/internal/config"
)

// SignedUpload holds the outcome of signing one upload slot.
type SignedUpload struct {
	// SignedRequest is the time-limited pre-signed PUT URL the client
	// uploads to.
	SignedRequest string
	// URL is the direct S3 object URL returned to the client.
	URL string
	// ImageURL is the image-host-fronted URL recorded on the card.
	ImageURL string
}

// Signer handles integration with the S3 image bucket
type Signer struct {
	presign    *awss3.PresignClient
	bucket     string
	region     string
	imagesHost string
	expiry     time.Duration
	log        *logrus.Logger
}

// NewSigner initializes a new S3 signer
func NewSigner(cfg *config.Config, log *logrus.Logger) *Signer {
	client := awss3.New(awss3.Options{
		Region:      cfg.AWSRegion,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
	})
	return &Signer{
		presign:    awss3.NewPresignClient(client),
		bucket:     cfg.ImageBucket,
		region:     cfg.AWSRegion,
		imagesHost: cfg.ImagesHost,
		expiry:     cfg.SignedURLExpiry,
		log:        log,
	}
}

// SignUpload issues a time-limited, key-scoped PUT credential for the
// card's image. The storage key is derived from the card id with a fixed
// extension, so repeated calls sign the same object.
func (s *Signer) SignUpload(ctx context.Context, cardID, fileType string) (*SignedUpload, error) {
	key := "originals/" + cardID + ".jpg"
	req, err := s.presign.PresignPutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(fileType),
	}, awss3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to get signed url from S3: %w", err)
	}

	s.log.Debugf("s3 signed request for card %s: %s", cardID, req.URL)
	return &SignedUpload{
		SignedRequest: req.URL,
		URL:           fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", s.region, s.bucket, key),
		ImageURL:      fmt.Sprintf("https://%s/%s.jpg", s.imagesHost, cardID),
	}, nil
}

// Package media turns stored attachment references into URLs a gateway can download.
package media

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
)

// ErrUnsupportedReference is returned for references that are neither http(s) nor a
// resolvable s3 URI.
var ErrUnsupportedReference = errors.New("unsupported media reference")

// DefaultPresignTTL is used when the resolver is built without a TTL.
const DefaultPresignTTL = time.Hour

type presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config selects the bucket endpoint for s3:// references.
type S3Config struct {
	Region    string
	Endpoint  string
	PathStyle bool
	TTL       time.Duration
}

// Resolver passes http(s) URLs through and presigns s3://bucket/key references.
type Resolver struct {
	presign presigner
	ttl     time.Duration
}

// NewResolver returns a resolver without s3 support.
func NewResolver() *Resolver {
	return &Resolver{ttl: DefaultPresignTTL}
}

// NewS3Resolver loads the default AWS credential chain and enables s3:// references.
func NewS3Resolver(ctx context.Context, cfg S3Config) (*Resolver, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return &Resolver{presign: s3.NewPresignClient(client), ttl: ttl}, nil
}

// Resolve returns a downloadable URL for ref.
// http(s) references are returned unchanged apart from surrounding whitespace.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	scheme, _, found := strings.Cut(ref, "://")
	if !found {
		return "", errors.Wrapf(ErrUnsupportedReference, "no scheme in %q", ref)
	}
	switch strings.ToLower(scheme) {
	case "http", "https":
		return ref, nil
	case "s3":
		u, err := url.Parse(ref)
		if err != nil {
			return "", errors.Wrapf(ErrUnsupportedReference, "parse %q: %v", ref, err)
		}
		return r.presignObject(ctx, u)
	default:
		return "", errors.Wrapf(ErrUnsupportedReference, "scheme %q", scheme)
	}
}

func (r *Resolver) presignObject(ctx context.Context, u *url.URL) (string, error) {
	if r.presign == nil {
		return "", errors.Wrap(ErrUnsupportedReference, "s3 references are not configured")
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", errors.Wrapf(ErrUnsupportedReference, "s3 reference %q needs a bucket and key", u.String())
	}
	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.ttl))
	if err != nil {
		return "", errors.Wrapf(err, "presign s3://%s/%s", bucket, key)
	}
	return req.URL, nil
}

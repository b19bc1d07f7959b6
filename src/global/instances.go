package global

import (
	"context"
	"io"

	"github.com/streadway/amqp"
)

// Instances are the outside services a worker talks to. AwsS3 may be nil
// when jobs only use local providers.
type Instances struct {
	AwsS3 AwsS3
	Rmq   Rmq
}

// AwsS3 fetches source WebP files and stores the rendered frames,
// thumbnails and manifest.
type AwsS3 interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType, acl, cacheControl *string) error
	DownloadFile(ctx context.Context, bucket, key string, file io.WriterAt) error
}

// Rmq carries job messages in, and task events and results out.
type Rmq interface {
	Subscribe(name string) (<-chan amqp.Delivery, error)
	Publish(queue string, contentType string, deliveryMode uint8, msg []byte) error
	Shutdown()
}

// Package fsext provides optional fs.FileSystem backends beyond the local
// disk. Grounded on the teacher's blobstore/s3 package: same GetObject/
// PutObject shape, adapted from blobstore.BlobStore's Open/Create pair to
// fs.FileSystem's OpenForRead/OpenForWrite.
package fsext

import (
	"context"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hausdorff/bitfunnel/fs"
)

// S3FileSystem implements fs.FileSystem against an S3 bucket, so TermTable
// and Slice backups can be written straight to object storage through the
// same interface backup/ writes a local file through.
type S3FileSystem struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3FileSystem builds an S3FileSystem. rootPrefix is prepended to every
// path passed to OpenForRead/OpenForWrite.
func NewS3FileSystem(client *s3.Client, bucket, rootPrefix string) *S3FileSystem {
	return &S3FileSystem{client: client, bucket: bucket, prefix: rootPrefix}
}

func (s *S3FileSystem) key(p string) string {
	return path.Join(s.prefix, p)
}

// OpenForRead implements fs.FileSystem.
func (s *S3FileSystem) OpenForRead(p string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// OpenForWrite implements fs.FileSystem. The object is uploaded as the
// returned writer is closed: writes are piped to a background PutObject
// call, and Close blocks until the upload finishes (or fails).
func (s *S3FileSystem) OpenForWrite(p string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, done: make(chan error, 1)}

	go func() {
		_, err := s.client.PutObject(context.Background(), &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(p)),
			Body:   pr,
		})
		_ = pr.CloseWithError(err)
		w.done <- err
	}()

	return w, nil
}

var _ fs.FileSystem = (*S3FileSystem)(nil)

type s3Writer struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3Writer) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}

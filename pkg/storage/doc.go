// Package storage keeps uploaded recipient lists in S3-compatible object storage.
//
// Lists are uploaded once through the HTTP API and then read back by the recipient source
// every time a campaign starts or resumes, so a restarted dispatcher can re-open the same
// file and skip to its persisted offset.
//
// # Interface
//
// [Storage] has three methods:
//
//   - Put(ctx, key, r, size, contentType) (string, error): uploads an object and returns its key
//   - Get(ctx, key) (io.ReadCloser, error): opens an object for reading
//   - Delete(ctx, key) error: removes an object
//
// [ListKey] builds a safe key for an uploaded list, lists/{id}/{filename}, replacing any
// path or shell metacharacters in the client-supplied filename.
//
// # S3
//
// [New] creates an [S3Storage] on the AWS SDK. Set Endpoint and PathStyle for MinIO and
// similar services:
//
//	s3, err := storage.New(storage.Config{
//	    Bucket:    "mailcast-lists",
//	    AccessKey: os.Getenv("S3_ACCESS_KEY"),
//	    SecretKey: os.Getenv("S3_SECRET_KEY"),
//	    Endpoint:  "http://localhost:9000",
//	    PathStyle: true,
//	})
//	key, err := s3.Put(ctx, storage.ListKey(id, "contacts.csv"), body, size, "text/csv")
//	rc, err := s3.Get(ctx, key)
//
// [Memory] implements the same interface in process for local runs without S3.
//
// # Errors
//
//   - [ErrInvalidConfig]: bucket or credentials are missing
//   - [ErrEmptyKey]: an operation was called with an empty key
//   - [ErrNotFound]: the object does not exist
//   - [ErrAccessDenied]: the credentials cannot access the bucket
//   - [ErrUploadFailed], [ErrDeleteFailed]: the S3 call failed
package storage

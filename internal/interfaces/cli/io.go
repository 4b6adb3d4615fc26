package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/turtacn/rxntd/internal/domain/descriptor"
	"github.com/turtacn/rxntd/internal/domain/reaction"
	"github.com/turtacn/rxntd/internal/infrastructure/storage/minio"
	"github.com/turtacn/rxntd/internal/infrastructure/storage/tabular"
	"github.com/turtacn/rxntd/pkg/errors"
)

// tableIO reads inputs and writes outputs that are local paths or s3://
// object URIs.
type tableIO struct {
	objects      minio.ObjectStorageRepository
	readOptions  tabular.ReadOptions
	outputFormat tabular.Format
}

func (t *tableIO) open(ctx context.Context, path string) (io.ReadCloser, error) {
	if minio.IsObjectURI(path) {
		if t.objects == nil {
			return nil, errors.New(errors.ErrCodeFeatureDisabled, "s3 input requires storage.minio.enabled").WithDetail(path)
		}
		loc, err := minio.ParseObjectURI(path)
		if err != nil {
			return nil, err
		}
		return t.objects.Open(ctx, loc)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInputReadFailed, "cannot open input").WithDetail(path)
	}
	return f, nil
}

// Read parses the reaction table at path.
func (t *tableIO) Read(ctx context.Context, path string) (*tabular.ReadResult, error) {
	rc, err := t.open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return tabular.ReadReactions(rc, t.readOptions)
}

// Write encodes rows and stores them at path. Local files are replaced
// atomically.
func (t *tableIO) Write(ctx context.Context, path string, schema *descriptor.Schema, rows []reaction.Row) error {
	format := t.outputFormat
	if format == "" {
		format = tabular.FormatForPath(path)
	}

	var buf bytes.Buffer
	if err := tabular.WriteRows(&buf, format, schema, rows); err != nil {
		return err
	}

	if minio.IsObjectURI(path) {
		if t.objects == nil {
			return errors.New(errors.ErrCodeFeatureDisabled, "s3 output requires storage.minio.enabled").WithDetail(path)
		}
		loc, err := minio.ParseObjectURI(path)
		if err != nil {
			return err
		}
		_, err = t.objects.Put(ctx, loc, buf.Bytes(), format.ContentType())
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".rxntd-*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWriteFailed, "cannot create output").WithDetail(path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrCodeOutputWriteFailed, "cannot write output").WithDetail(path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWriteFailed, "cannot write output").WithDetail(path)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWriteFailed, "cannot write output").WithDetail(path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, errors.ErrCodeOutputWriteFailed, "cannot replace output").WithDetail(path)
	}
	return nil
}

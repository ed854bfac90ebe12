package dataset

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
	"github.com/YuminosukeSato/vehicleprice/pkg/log"
)

// Load reads a CSV table from path. Files ending in .zip must hold exactly
// one regular file; files ending in .gz are gunzipped; anything else is read
// as plain CSV. The first row is the header and column types are detected.
func Load(path string) (dataframe.DataFrame, error) {
	var df dataframe.DataFrame

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		rc, err := openZipMember(path)
		if err != nil {
			return df, err
		}
		defer rc.Close()
		df, err = readCSV(rc)
		if err != nil {
			return df, errors.Wrapf(err, "failed to parse %s", path)
		}
	case ".gz":
		f, err := os.Open(path)
		if err != nil {
			return df, errors.Wrapf(err, "failed to open %s", path)
		}
		defer f.Close()
		zr, err := gzip.NewReader(f)
		if err != nil {
			return df, errors.Wrapf(err, "failed to open gzip stream %s", path)
		}
		defer zr.Close()
		df, err = readCSV(zr)
		if err != nil {
			return df, errors.Wrapf(err, "failed to parse %s", path)
		}
	default:
		f, err := os.Open(path)
		if err != nil {
			return df, errors.Wrapf(err, "failed to open %s", path)
		}
		defer f.Close()
		df, err = readCSV(f)
		if err != nil {
			return df, errors.Wrapf(err, "failed to parse %s", path)
		}
	}
	return df, nil
}

// zipMember closes the member stream together with its archive.
type zipMember struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (m *zipMember) Close() error {
	err := m.ReadCloser.Close()
	if cerr := m.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

func openZipMember(path string) (io.ReadCloser, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open zip archive %s", path)
	}

	var member *zip.File
	for _, f := range archive.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if member != nil {
			_ = archive.Close()
			return nil, errors.NewValueError("dataset.Load",
				"zip archive "+path+" contains more than one file")
		}
		member = f
	}
	if member == nil {
		_ = archive.Close()
		return nil, errors.NewValueError("dataset.Load", "zip archive "+path+" is empty")
	}

	rc, err := member.Open()
	if err != nil {
		_ = archive.Close()
		return nil, errors.Wrapf(err, "failed to open %s in %s", member.Name, path)
	}
	return &zipMember{ReadCloser: rc, archive: archive}, nil
}

func readCSV(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
	)
	if df.Err != nil {
		return df, errors.WithStack(df.Err)
	}
	if df.Nrow() == 0 {
		return df, errors.WithStack(errors.ErrEmptyData)
	}
	return df, nil
}

// LoadPair loads the train and test splits independently.
func LoadPair(trainPath, testPath string) (train, test dataframe.DataFrame, err error) {
	logger := log.GetLoggerWithName("dataset")
	start := time.Now()

	train, err = Load(trainPath)
	if err != nil {
		return train, test, err
	}
	logger.Info("Loaded dataset",
		log.DatasetKey, "train",
		log.PathKey, trainPath,
		log.SamplesKey, train.Nrow(),
		log.ColumnsKey, train.Names())

	test, err = Load(testPath)
	if err != nil {
		return train, test, err
	}
	logger.Info("Loaded dataset",
		log.DatasetKey, "test",
		log.PathKey, testPath,
		log.SamplesKey, test.Nrow(),
		log.ColumnsKey, test.Names(),
		log.DurationMsKey, time.Since(start).Milliseconds())

	return train, test, nil
}

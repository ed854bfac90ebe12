package model

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

// SaveArtifact はvをgzip圧縮したJSONとしてpathに保存する
//
// 同じディレクトリの一時ファイルに書き込んでからリネームするため、
// 途中で失敗しても既存のファイルは壊れない。親ディレクトリは必要に応じて作成する。
//
// 使用例:
//
//	err := model.SaveArtifact("files/models/model.pkl.gz", artifact)
func SaveArtifact(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "failed to create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if err := WriteArtifact(tmp, v); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "failed to sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "failed to move artifact to %s", path)
	}
	tmpName = ""
	return nil
}

// LoadArtifact はSaveArtifactで保存したファイルをvに読み込む
func LoadArtifact(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open artifact %s", path)
	}
	defer f.Close()

	if err := ReadArtifact(f, v); err != nil {
		return errors.Wrapf(err, "failed to read artifact %s", path)
	}
	return nil
}

// WriteArtifact はvをgzip圧縮したJSONとしてwに書き込む
func WriteArtifact(w io.Writer, v interface{}) error {
	zw := gzip.NewWriter(w)
	enc := json.NewEncoder(zw)
	if err := enc.Encode(v); err != nil {
		_ = zw.Close()
		return errors.Wrap(err, "failed to encode artifact")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "failed to flush gzip stream")
	}
	return nil
}

// ReadArtifact はgzip圧縮されたJSONをrから読み込みvにデコードする
func ReadArtifact(r io.Reader, v interface{}) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "not a gzip stream")
	}
	defer zr.Close()

	if err := json.NewDecoder(zr).Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode artifact")
	}
	return nil
}

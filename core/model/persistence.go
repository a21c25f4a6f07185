package model

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"reflect"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/YuminosukeSato/mlkit/pkg/errors"
	"github.com/YuminosukeSato/mlkit/pkg/log"
)

// オブジェクトファイルの形式
//
//	[4 bytes: magic "MLKT"]
//	[2 bytes: version (uint16 LE)]
//	[2 bytes: flags (uint16 LE)]
//	[8 bytes: xxhash64 of payload (uint64 LE)]
//	[payload: gob stream, zstd-compressed when flagZstd is set]
const (
	objectMagic          = "MLKT"
	objectVersion uint16 = 1
	headerSize           = 16

	flagZstd uint16 = 1 << 0
)

// envelope lets gob carry the concrete type name so Load can restore
// the original dynamic type.
type envelope struct {
	Value interface{}
}

type storeConfig struct {
	compress bool
	logger   log.Logger
}

// StoreOption configures Save and Load.
type StoreOption func(*storeConfig)

// WithCompression compresses the payload with zstd.
func WithCompression(enabled bool) StoreOption {
	return func(c *storeConfig) {
		c.compress = enabled
	}
}

// WithLogger sets the logger used for the confirmation message.
func WithLogger(logger log.Logger) StoreOption {
	return func(c *storeConfig) {
		c.logger = logger
	}
}

func newStoreConfig(opts []StoreOption) storeConfig {
	cfg := storeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLogger()
	}
	return cfg
}

// Register はgobに具象型を登録する
//
// 別プロセスで保存したファイルを読み込むには、読み込み側でも型が登録されている必要がある。
// 推定器・前処理パッケージはinitで自身の型を登録する。
func Register(value interface{}) {
	gob.Register(value)
}

// Save はオブジェクトをファイルに保存する
//
// パラメータ:
//   - path: 保存先のファイルパス（親ディレクトリは自動作成される）
//   - v: 保存するオブジェクト
//
// 戻り値:
//   - error: 失敗時は原因をラップした *errors.PersistenceError
//
// 使用例:
//
//	reg := linear_model.NewRidge()
//	// ... モデルの学習 ...
//	err := model.Save("artifacts/model.bin", reg)
func Save(path string, v interface{}, opts ...StoreOption) error {
	cfg := newStoreConfig(opts)

	var written int64
	err := errors.Guard(log.OperationSave, func(err error) error {
		return errors.NewPersistenceError(log.OperationSave, path, err)
	}, func() (err error) {
		blob, err := encodeObject(v, cfg.compress)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}

		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		n, err := file.Write(blob)
		written = int64(n)
		return err
	})
	if err != nil {
		return err
	}

	cfg.logger.Info("object saved successfully",
		log.OperationKey, log.OperationSave,
		log.PathKey, path,
		log.DataSizeKey, written,
	)
	return nil
}

// Load はファイルからオブジェクトを読み込み、保存時の型のまま返す
//
// 使用例:
//
//	obj, err := model.Load("artifacts/model.bin")
//	reg := obj.(*linear_model.Ridge)
func Load(path string, opts ...StoreOption) (interface{}, error) {
	cfg := newStoreConfig(opts)

	var v interface{}
	err := errors.Guard(log.OperationLoad, func(err error) error {
		return errors.NewPersistenceError(log.OperationLoad, path, err)
	}, func() error {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		v, err = readObject(file)
		return err
	})
	if err != nil {
		return nil, err
	}

	cfg.logger.Debug("object loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, path,
	)
	return v, nil
}

// LoadAs はLoadの型付き版。保存されたオブジェクトがTでない場合はエラーを返す
func LoadAs[T any](path string, opts ...StoreOption) (T, error) {
	var zero T
	v, err := Load(path, opts...)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		want := reflect.TypeOf((*T)(nil)).Elem()
		return zero, errors.NewPersistenceError(log.OperationLoad, path,
			errors.Newf("stored object is %T, not %s", v, want))
	}
	return t, nil
}

// SaveToWriter はオブジェクトをio.Writerに保存する
func SaveToWriter(w io.Writer, v interface{}, opts ...StoreOption) error {
	cfg := newStoreConfig(opts)
	return errors.Guard(log.OperationSave, func(err error) error {
		return errors.NewPersistenceError(log.OperationSave, "", err)
	}, func() error {
		blob, err := encodeObject(v, cfg.compress)
		if err != nil {
			return err
		}
		_, err = w.Write(blob)
		return err
	})
}

// LoadFromReader はio.Readerからオブジェクトを読み込む
func LoadFromReader(r io.Reader) (interface{}, error) {
	var v interface{}
	err := errors.Guard(log.OperationLoad, func(err error) error {
		return errors.NewPersistenceError(log.OperationLoad, "", err)
	}, func() error {
		var err error
		v, err = readObject(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func encodeObject(v interface{}, compress bool) ([]byte, error) {
	if v == nil {
		return nil, errors.NewValueError("model.Save", "cannot save a nil object")
	}
	Register(v)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&envelope{Value: v}); err != nil {
		return nil, errors.Wrap(err, "failed to encode object")
	}

	payload := buf.Bytes()
	var flags uint16
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create zstd encoder")
		}
		payload = enc.EncodeAll(payload, nil)
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, "failed to close zstd encoder")
		}
		flags |= flagZstd
	}

	blob := make([]byte, headerSize, headerSize+len(payload))
	copy(blob[0:4], objectMagic)
	binary.LittleEndian.PutUint16(blob[4:6], objectVersion)
	binary.LittleEndian.PutUint16(blob[6:8], flags)
	binary.LittleEndian.PutUint64(blob[8:16], xxhash.Sum64(payload))
	return append(blob, payload...), nil
}

func readObject(r io.Reader) (interface{}, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read object")
	}
	if len(data) < headerSize || string(data[0:4]) != objectMagic {
		return nil, errors.Wrap(errors.ErrUnsupportedFormat, "bad magic")
	}
	if version := binary.LittleEndian.Uint16(data[4:6]); version != objectVersion {
		return nil, errors.Wrapf(errors.ErrUnsupportedFormat, "version %d", version)
	}
	flags := binary.LittleEndian.Uint16(data[6:8])
	checksum := binary.LittleEndian.Uint64(data[8:16])

	payload := data[headerSize:]
	if xxhash.Sum64(payload) != checksum {
		return nil, errors.WithStack(errors.ErrCorruptObject)
	}

	if flags&flagZstd != 0 {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create zstd decoder")
		}
		defer dec.Close()
		payload, err = dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decompress object")
		}
	}

	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&env); err != nil {
		return nil, errors.Wrap(err, "failed to decode object")
	}
	return env.Value, nil
}

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ModelWeights はモデルの重みを表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType はモデルの種類（LinearRegression等）
	ModelType string `json:"model_type"`

	// Version はモデルのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Coefficients は重み係数
	Coefficients []float64 `json:"coefficients"`

	// Intercept は切片
	Intercept float64 `json:"intercept"`

	// FitIntercept は切片を学習したかどうか
	FitIntercept bool `json:"fit_intercept"`

	// NFeatures は学習時の特徴量数
	NFeatures int `json:"n_features"`

	// NSamples は学習時のサンプル数
	NSamples int `json:"n_samples"`

	// Rank は計画行列のランク
	Rank int `json:"rank"`

	// Checksum は係数と切片のSHA-256
	Checksum string `json:"checksum"`
}

// ComputeChecksum は係数と切片からチェックサムを計算する
func (mw *ModelWeights) ComputeChecksum() string {
	data, _ := json.Marshal(append(append([]float64(nil), mw.Coefficients...), mw.Intercept))
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return fmt.Errorf("model_type is required")
	}
	if mw.Version == "" {
		return fmt.Errorf("version is required")
	}
	if len(mw.Coefficients) != mw.NFeatures {
		return fmt.Errorf("expected %d coefficients, got %d", mw.NFeatures, len(mw.Coefficients))
	}
	if !mw.FitIntercept && mw.Intercept != 0 {
		return fmt.Errorf("intercept must be zero when fit_intercept is false")
	}
	if mw.Checksum != "" && mw.Checksum != mw.ComputeChecksum() {
		return fmt.Errorf("checksum mismatch: weights may be corrupted")
	}
	return nil
}

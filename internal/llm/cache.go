package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/raine/virtual-fitting-room/internal/storage"
	"github.com/rs/zerolog/log"
)

// CachedAnalyzer wraps an Analyzer with an analysis cache keyed by image
// content, analysis kind and working language.
type CachedAnalyzer struct {
	inner    Analyzer
	cache    storage.AnalysisCache
	language string
}

// NewCachedAnalyzer creates a caching wrapper around inner. language must
// match the language inner answers in.
func NewCachedAnalyzer(inner Analyzer, cache storage.AnalysisCache, language string) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, cache: cache, language: language}
}

var _ Analyzer = (*CachedAnalyzer)(nil)

// AnalyzeModel implements the Analyzer interface.
func (c *CachedAnalyzer) AnalyzeModel(ctx context.Context, imageData []byte, mimeType string) (*fitting.ModelAnalysis, error) {
	key := c.key("model", imageData)
	var cached fitting.ModelAnalysis
	if c.lookup(key, &cached) {
		return &cached, nil
	}

	analysis, err := c.inner.AnalyzeModel(ctx, imageData, mimeType)
	if err != nil {
		return nil, err
	}
	c.store(key, analysis)
	return analysis, nil
}

// AnalyzeClothing implements the Analyzer interface. The slot hint is part
// of the key since it steers the result.
func (c *CachedAnalyzer) AnalyzeClothing(ctx context.Context, imageData []byte, mimeType string, slotHint fitting.BodyRegion) (*fitting.ClothingAnalysis, error) {
	key := c.key("clothing:"+string(slotHint), imageData)
	var cached fitting.ClothingAnalysis
	if c.lookup(key, &cached) {
		return &cached, nil
	}

	analysis, err := c.inner.AnalyzeClothing(ctx, imageData, mimeType, slotHint)
	if err != nil {
		return nil, err
	}
	c.store(key, analysis)
	return analysis, nil
}

func (c *CachedAnalyzer) key(kind string, imageData []byte) string {
	return kind + ":" + c.language + ":" + hashImage(imageData)
}

func (c *CachedAnalyzer) lookup(key string, v any) bool {
	payload, err := c.cache.GetAnalysis(key)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read analysis cache")
		return false
	}
	if payload == nil {
		return false
	}
	if err := json.Unmarshal(payload, v); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable analysis cache entry")
		return false
	}
	log.Debug().Str("key", shortKey(key)).Msg("analysis cache hit")
	return true
}

func (c *CachedAnalyzer) store(key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode analysis for cache")
		return
	}
	if err := c.cache.SetAnalysis(key, payload); err != nil {
		log.Warn().Err(err).Msg("failed to cache analysis")
	}
}

// hashImage computes a SHA256 hash of the image with a length prefix.
func hashImage(img []byte) string {
	h := sha256.New()
	binary.Write(h, binary.LittleEndian, int64(len(img)))
	h.Write(img)
	return hex.EncodeToString(h.Sum(nil))
}

func shortKey(key string) string {
	if len(key) > 48 {
		return key[:48]
	}
	return key
}

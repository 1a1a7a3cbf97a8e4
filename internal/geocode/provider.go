// Package geocode 把机构文本转换为经纬度和行政区划，带持久化缓存和两级 provider
package geocode

import (
	"context"
	"errors"

	"CitationMap/internal/models"
)

var (
	// ErrNotFound provider 确认没有结果
	ErrNotFound = errors.New("geocode: no result")
	// ErrProviderExhausted 所有 provider 都没有给出坐标
	ErrProviderExhausted = errors.New("geocode: provider exhausted")
)

// Provider 地理编码服务
type Provider interface {
	Name() string
	// Geocode 没有结果时返回 ErrNotFound
	Geocode(ctx context.Context, affiliation string) (models.GeocodeResult, error)
}

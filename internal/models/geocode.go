package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Coordinate 可为空的经纬度。空值序列化为 ""，以兼容旧的缓存文件
type Coordinate struct {
	Value float64
	Valid bool
}

func NewCoordinate(v float64) Coordinate {
	return Coordinate{Value: v, Valid: true}
}

// ParseCoordinate 解析 CSV/缓存中的文本，空串得到无效坐标
func ParseCoordinate(s string) (Coordinate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Coordinate{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: %w", s, err)
	}
	return NewCoordinate(v), nil
}

func (c Coordinate) String() string {
	if !c.Valid {
		return ""
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte(`""`), nil
	}
	return []byte(c.String()), nil
}

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = Coordinate{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseCoordinate(s)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = NewCoordinate(v)
	return nil
}

// GeocodeResult 缓存值。未解析的字段保持为空但存在，使负结果也能被缓存
type GeocodeResult struct {
	Affiliation string     `json:"-"`
	Latitude    Coordinate `json:"lat"`
	Longitude   Coordinate `json:"lng"`
	County      string     `json:"county"`
	City        string     `json:"city"`
	State       string     `json:"state"`
	Country     string     `json:"country"`
}

// Located 是否得到了有效坐标
func (g GeocodeResult) Located() bool {
	return g.Latitude.Valid && g.Longitude.Valid
}

// EmptyGeocode 确认为空的结果
func EmptyGeocode(affiliation string) GeocodeResult {
	return GeocodeResult{Affiliation: affiliation}
}

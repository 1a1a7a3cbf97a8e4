// Package htmlmap 将导出记录渲染为单文件的交互式地图（Leaflet）
package htmlmap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"html/template"
	"io"
	"os"
	"strings"

	"CitationMap/internal/models"
)

// ErrNoCoordinates 没有任何带坐标的记录
var ErrNoCoordinates = errors.New("no valid coordinates to render")

// Palette 彩色图钉的可选颜色
var Palette = []string{
	"red", "blue", "green", "purple", "orange", "darkred", "crimson", "goldenrod",
	"darkblue", "darkgreen", "cadetblue", "indigo", "deeppink", "steelblue",
	"seagreen", "gray", "black", "teal",
}

// DefaultColor 非彩色模式下的颜色
const DefaultColor = "red"

type Options struct {
	Colorful bool
	Title    string
	Zoom     int
}

func DefaultOptions() Options {
	return Options{Colorful: true, Title: "Citation Map", Zoom: 2}
}

// Citer 图钉弹窗中的一条引用
type Citer struct {
	Name        string
	ProfileLink string
	CitingPaper string
	CitedPaper  string
}

// Marker 一个机构一个图钉
type Marker struct {
	Affiliation string
	Lat         float64
	Lng         float64
	Location    string
	Color       string
	Citers      []Citer
}

// BuildMarkers 按机构聚合带坐标的记录，顺序为机构首次出现的顺序
func BuildMarkers(rows []models.CitationInfoRow, colorful bool) []Marker {
	var markers []Marker
	index := map[string]int{}
	seen := map[string]map[Citer]struct{}{}
	for _, r := range rows {
		if !r.HasLocation() || r.Affiliation == "" {
			continue
		}
		i, ok := index[r.Affiliation]
		if !ok {
			i = len(markers)
			index[r.Affiliation] = i
			seen[r.Affiliation] = map[Citer]struct{}{}
			markers = append(markers, Marker{
				Affiliation: r.Affiliation,
				Lat:         r.Latitude.Value,
				Lng:         r.Longitude.Value,
				Location:    joinNonEmpty(", ", r.City, r.State, r.Country),
				Color:       ColorFor(r.Affiliation, colorful),
			})
		}
		c := Citer{Name: r.AuthorName, ProfileLink: r.ProfileLink, CitingPaper: r.CitingPaperTitle, CitedPaper: r.CitedPaperTitle}
		if _, dup := seen[r.Affiliation][c]; dup {
			continue
		}
		seen[r.Affiliation][c] = struct{}{}
		markers[i].Citers = append(markers[i].Citers, c)
	}
	return markers
}

// ColorFor 同一机构总是得到同一颜色
func ColorFor(affiliation string, colorful bool) string {
	if !colorful {
		return DefaultColor
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(affiliation))
	return Palette[h.Sum32()%uint32(len(Palette))]
}

// Center 所有图钉坐标的均值
func Center(markers []Marker) (lat, lng float64) {
	if len(markers) == 0 {
		return 0, 0
	}
	for _, m := range markers {
		lat += m.Lat
		lng += m.Lng
	}
	n := float64(len(markers))
	return lat / n, lng / n
}

type markerJSON struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Color string  `json:"color"`
	Popup string  `json:"popup"`
}

type pageData struct {
	Title     string
	CenterLat float64
	CenterLng float64
	Zoom      int
	Count     int
	Markers   template.JS
}

// Render 写出完整的 HTML 文档
func Render(w io.Writer, rows []models.CitationInfoRow, opts Options) error {
	markers := BuildMarkers(rows, opts.Colorful)
	if len(markers) == 0 {
		return ErrNoCoordinates
	}
	if opts.Zoom <= 0 {
		opts.Zoom = 2
	}

	items := make([]markerJSON, 0, len(markers))
	for _, m := range markers {
		var popup bytes.Buffer
		if err := popupTemplate.Execute(&popup, m); err != nil {
			return fmt.Errorf("渲染弹窗失败: %w", err)
		}
		items = append(items, markerJSON{Lat: m.Lat, Lng: m.Lng, Color: m.Color, Popup: popup.String()})
	}
	// json.Marshal 会转义 < > &，可以安全地放进 <script>
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}

	lat, lng := Center(markers)
	return pageTemplate.Execute(w, pageData{
		Title:     opts.Title,
		CenterLat: lat,
		CenterLng: lng,
		Zoom:      opts.Zoom,
		Count:     len(markers),
		Markers:   template.JS(data),
	})
}

// MapExporter 实现 export.Exporter
type MapExporter struct {
	opts Options
}

func NewMapExporter(opts Options) *MapExporter {
	return &MapExporter{opts: opts}
}

func (e *MapExporter) Export(rows []models.CitationInfoRow, outputPath string) error {
	var buf bytes.Buffer
	if err := Render(&buf, rows, e.opts); err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("写入地图失败: %w", err)
	}
	return nil
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

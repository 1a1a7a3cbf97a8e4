package csv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"CitationMap/internal/models"
)

// Columns 导出列，下游工具按列名读取，顺序和名称不要改
var Columns = []string{
	"citing_author_name", "citing_paper_title", "cited_paper_title", "affiliation",
	"latitude", "longitude", "county", "city", "state", "country",
	"author_id", "citation_text", "profile_link",
}

var bom = []byte{0xEF, 0xBB, 0xBF}

type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) Export(rows []models.CitationInfoRow, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer file.Close()

	if err := Write(file, rows); err != nil {
		return err
	}
	return file.Close()
}

// Write 带 BOM 写出，Excel 打开不会乱码
func Write(w io.Writer, rows []models.CitationInfoRow) error {
	if _, err := w.Write(bom); err != nil {
		return fmt.Errorf("写入 BOM 失败: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.AuthorName,
			r.CitingPaperTitle,
			r.CitedPaperTitle,
			r.Affiliation,
			r.Latitude.String(),
			r.Longitude.String(),
			r.County,
			r.City,
			r.State,
			r.Country,
			r.AuthorID,
			r.CitationText,
			r.ProfileLink,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("写入数据失败: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadFile 读取导出的 CSV，用于不联网重新渲染地图
func ReadFile(path string) ([]models.CitationInfoRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()
	return Read(file)
}

// Read 按表头列名取值，缺少的列视为空
func Read(r io.Reader) ([]models.CitationInfoRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, bom)))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}

	var rows []models.CitationInfoRow
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("第 %d 行: %w", line, err)
		}
		get := func(col string) string {
			if i, ok := idx[col]; ok && i < len(rec) {
				return rec[i]
			}
			return ""
		}
		lat, err := models.ParseCoordinate(get("latitude"))
		if err != nil {
			return rows, fmt.Errorf("第 %d 行: %w", line, err)
		}
		lng, err := models.ParseCoordinate(get("longitude"))
		if err != nil {
			return rows, fmt.Errorf("第 %d 行: %w", line, err)
		}
		rows = append(rows, models.CitationInfoRow{
			AuthorName:       get("citing_author_name"),
			CitingPaperTitle: get("citing_paper_title"),
			CitedPaperTitle:  get("cited_paper_title"),
			Affiliation:      get("affiliation"),
			Latitude:         lat,
			Longitude:        lng,
			County:           get("county"),
			City:             get("city"),
			State:            get("state"),
			Country:          get("country"),
			AuthorID:         get("author_id"),
			CitationText:     get("citation_text"),
			ProfileLink:      get("profile_link"),
		})
	}
	return rows, nil
}

// CitingColumns 爬虫阶段调试输出的列
var CitingColumns = []string{
	"author_id", "author_name", "citing_paper_title", "cited_paper_title", "citation_text",
}

// ExportCitingRecords 写出爬虫阶段的原始记录，不做去重
func ExportCitingRecords(records []models.CitingAuthorRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(bom); err != nil {
		return fmt.Errorf("写入 BOM 失败: %w", err)
	}
	writer := csv.NewWriter(file)
	if err := writer.Write(CitingColumns); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	for _, r := range records {
		if err := writer.Write([]string{r.AuthorID, r.AuthorName, r.CitingPaperTitle, r.CitedPaperTitle, r.SourceCitationText}); err != nil {
			return fmt.Errorf("写入数据失败: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

package json

import (
	"encoding/json"
	"fmt"
	"os"

	"CitationMap/internal/models"
)

type JSONExporter struct{}

func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

func (e *JSONExporter) Export(rows []models.CitationInfoRow, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")  // 格式化输出
	encoder.SetEscapeHTML(false) // 不转义 HTML 字符

	located := 0
	for _, r := range rows {
		if r.HasLocation() {
			located++
		}
	}
	data := map[string]interface{}{
		"total":   len(rows),
		"located": located,
		"rows":    rows,
	}

	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("写入 JSON 失败: %w", err)
	}

	return nil
}

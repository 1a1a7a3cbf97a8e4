package export

import (
	"CitationMap/internal/models"
)

// Exporter 导出器接口
type Exporter interface {
	// Export 导出记录到指定文件
	Export(rows []models.CitationInfoRow, outputPath string) error
}

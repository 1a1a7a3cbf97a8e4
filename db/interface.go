package db

import (
	"CitationMap/internal/affiliation"
	"CitationMap/internal/batch"
	"CitationMap/internal/models"
)

// CheckpointStorage 按被引作者保存各阶段的中间结果，崩溃后可以从断点继续。
// 作者机构的记忆跨被引作者共享
type CheckpointStorage interface {
	StartRun(scholarID string, strategy affiliation.Kind) (string, error)

	FinishRun(runID string, summaries []batch.Summary) error

	SavePublications(scholarID string, pubs []models.Publication) error

	// LoadPublications ok 为 false 表示还没有抓取过
	LoadPublications(scholarID string) (pubs []models.Publication, ok bool, err error)

	SaveGroup(scholarID, groupID, path string, records []models.CitingAuthorRecord) error

	// LoadGroups 已完成的 group 及其记录
	LoadGroups(scholarID string) (map[string][]models.CitingAuthorRecord, error)

	affiliation.Memo

	// Reset 清除某个被引作者的断点
	Reset(scholarID string) error

	Close() error
}

package geocode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"CitationMap/internal/models"
	"CitationMap/pkg/logger"
)

// Cache 以机构文本为键的地理编码缓存，键不做任何规范化
type Cache interface {
	Get(affiliation string) (models.GeocodeResult, bool)
	Put(affiliation string, res models.GeocodeResult) error
	Flush() error
}

// CacheStats 缓存统计
type CacheStats struct {
	Entries int
	Located int
	Empty   int
}

// Maintainer 可以统计和清理的缓存
type Maintainer interface {
	Stats() (CacheStats, error)
	// PruneEmpty 删除确认为空的条目，下次运行会重新查询
	PruneEmpty() (int, error)
	// Keys 排序后的全部机构
	Keys() ([]string, error)
}

// FileCache JSON 文件缓存：{"机构": {"lat":..,"lng":..,"county":..,"city":..,"state":..,"country":..}}
type FileCache struct {
	path    string
	mu      sync.RWMutex
	entries map[string]models.GeocodeResult
	dirty   bool
	log     *logger.Logger
}

// OpenFileCache 读取缓存文件。文件不存在时从空缓存开始；
// 完整的 JSON 对象后面跟着残留内容时忽略残留；无法解析时把文件改名为 .corrupt 并从空缓存开始
func OpenFileCache(path string) (*FileCache, error) {
	c := &FileCache{
		path:    path,
		entries: map[string]models.GeocodeResult{},
		log:     logger.WithPrefix("GeoCache"),
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取缓存文件失败: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return c, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&c.entries); err != nil {
		c.entries = map[string]models.GeocodeResult{}
		bad := path + ".corrupt"
		c.log.Warn("缓存文件 %s 无法解析，已移到 %s，从空缓存开始: %v", path, bad, err)
		if rerr := os.Rename(path, bad); rerr != nil {
			c.log.Warn("移动损坏的缓存文件失败: %v", rerr)
		}
		return c, nil
	}
	if dec.More() || dec.InputOffset() < int64(len(bytes.TrimRight(data, " \t\r\n"))) {
		c.log.Warn("缓存文件 %s 末尾有残留内容，已忽略", path)
		c.dirty = true
	}
	for k, v := range c.entries {
		v.Affiliation = k
		c.entries[k] = v
	}
	c.log.Info("已加载 %d 条地理编码缓存", len(c.entries))
	return c, nil
}

func (c *FileCache) Path() string { return c.path }

func (c *FileCache) Get(affiliation string) (models.GeocodeResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[affiliation]
	return r, ok
}

func (c *FileCache) Put(affiliation string, res models.GeocodeResult) error {
	res.Affiliation = affiliation
	c.mu.Lock()
	c.entries[affiliation] = res
	c.dirty = true
	c.mu.Unlock()
	return nil
}

func (c *FileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Flush 写临时文件后 rename，避免留下写了一半的缓存
func (c *FileCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化缓存失败: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建缓存目录失败: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("写入缓存失败: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("写入缓存失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("写入缓存失败: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("替换缓存文件失败: %w", err)
	}
	c.dirty = false
	return nil
}

func (c *FileCache) Stats() (CacheStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := CacheStats{Entries: len(c.entries)}
	for _, r := range c.entries {
		if r.Located() {
			s.Located++
		} else {
			s.Empty++
		}
	}
	return s, nil
}

func (c *FileCache) PruneEmpty() (int, error) {
	c.mu.Lock()
	n := 0
	for k, r := range c.entries {
		if !r.Located() {
			delete(c.entries, k)
			n++
		}
	}
	if n > 0 {
		c.dirty = true
	}
	c.mu.Unlock()
	return n, c.Flush()
}

func (c *FileCache) Keys() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

var (
	_ Cache      = (*FileCache)(nil)
	_ Maintainer = (*FileCache)(nil)
)

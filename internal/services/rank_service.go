package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
)

//go:generate go tool mockgen -destination=./mocks/rank_mock.go -package=mocks . RankLookup,Narrator

// RankNotFound 一分一段表中没有该分数
const RankNotFound = -1

// RankLookup 按总分查询累计排名
type RankLookup interface {
	QueryRank(ctx context.Context, score int) (int, error)
}

// ScoreRow 一分一段表的一行
type ScoreRow struct {
	Score      int
	Count      int
	Cumulative int
}

// RankService 从CSV（score,count,cumulative，带表头）读取一分一段表，首次查询时加载
type RankService struct {
	path string

	mu     sync.Mutex
	loaded bool
	rows   map[int]ScoreRow
}

func NewRankService(path string) *RankService {
	return &RankService{path: path}
}

// QueryRank 精确匹配分数，找不到时返回 RankNotFound
func (rs *RankService) QueryRank(ctx context.Context, score int) (int, error) {
	if err := ctx.Err(); err != nil {
		return RankNotFound, err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.loaded {
		if err := rs.load(); err != nil {
			return RankNotFound, err
		}
	}
	row, ok := rs.rows[score]
	if !ok {
		return RankNotFound, nil
	}
	return row.Cumulative, nil
}

func (rs *RankService) load() error {
	if rs.path == "" {
		rs.rows = map[int]ScoreRow{}
		rs.loaded = true
		return nil
	}
	file, err := os.Open(rs.path)
	if err != nil {
		return fmt.Errorf("打开一分一段表 %s 失败: %w", rs.path, err)
	}
	defer file.Close()

	rows, err := ParseScoreTable(file)
	if err != nil {
		return fmt.Errorf("解析一分一段表 %s 失败: %w", rs.path, err)
	}
	rs.rows = make(map[int]ScoreRow, len(rows))
	for _, r := range rows {
		if _, dup := rs.rows[r.Score]; !dup {
			rs.rows[r.Score] = r
		}
	}
	rs.loaded = true
	log.Printf("📊 一分一段表加载完成: %d 行", len(rows))
	return nil
}

// ParseScoreTable 跳过表头；列数不足或无法解析的行跳过
func ParseScoreTable(r io.Reader) ([]ScoreRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}

	var rows []ScoreRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 3 {
			continue
		}
		var vals [3]int
		ok := true
		for i := range vals {
			n, err := strconv.Atoi(strings.TrimSpace(record[i]))
			if err != nil {
				ok = false
				break
			}
			vals[i] = n
		}
		if !ok {
			log.Printf("⚠️ 跳过无法解析的分数行: %v", record)
			continue
		}
		rows = append(rows, ScoreRow{Score: vals[0], Count: vals[1], Cumulative: vals[2]})
	}
	return rows, nil
}

package services

import (
	"fmt"
	"math"
	"strings"
)

// 考试曲线参数：技能值超过 examThreshold 后按边际递减增长
const (
	examThreshold = 800
	examCurveA    = 10000
	examCurveB    = 400
)

// 分数线
const (
	ScoreLineTop           = 524
	ScoreLineUndergraduate = 410
)

// ExamSubject 高考科目
type ExamSubject struct {
	Name     string
	Path     string
	MaxScore int
}

// ExamSubjects 科目顺序与满分
var ExamSubjects = []ExamSubject{
	{Name: "语文", Path: "技能.语文", MaxScore: 150},
	{Name: "数学", Path: "技能.数学", MaxScore: 150},
	{Name: "英语", Path: "技能.英语", MaxScore: 150},
	{Name: "物理", Path: "技能.物理", MaxScore: 100},
	{Name: "化学", Path: "技能.化学", MaxScore: 100},
	{Name: "生物", Path: "技能.生物", MaxScore: 100},
}

// ExamScore 技能值换算为卷面分，单调不减且不超过满分
func ExamScore(value float64, maxScore int) int {
	shift := value - examThreshold
	if shift < 0 {
		shift = 0
	}
	max := float64(maxScore)
	score := max * (1 - math.Exp(-shift/examCurveA)*(1-shift/(shift+examCurveB)))
	return int(math.Round(math.Min(score, max)))
}

// ExamResult 各科成绩与总分
type ExamResult struct {
	Scores []int
	Total  int
}

// Exam 按玩家技能计算各科成绩；非数字技能按0计
func Exam(chars *CharacterService) ExamResult {
	res := ExamResult{Scores: make([]int, len(ExamSubjects))}
	for i, s := range ExamSubjects {
		v := chars.PlayerTag(s.Path)
		value := 0.0
		if v.IsNum {
			value = v.Num
		}
		res.Scores[i] = ExamScore(value, s.MaxScore)
		res.Total += res.Scores[i]
	}
	return res
}

// ScoreBand 总分所在批次
func ScoreBand(total int) string {
	switch {
	case total >= ScoreLineTop:
		return "达到高分优先投档批"
	case total >= ScoreLineUndergraduate:
		return "达到本科批"
	}
	return "未达到本科批"
}

// GaokaoMessage 高考结局文案
func GaokaoMessage(res ExamResult, rank int) string {
	parts := make([]string, len(ExamSubjects))
	for i, s := range ExamSubjects {
		parts[i] = fmt.Sprintf("%s%d", s.Name, res.Scores[i])
	}
	rankText := "未找到"
	if rank >= 0 {
		rankText = fmt.Sprint(rank)
	}
	return fmt.Sprintf("高考成绩：\n%s。\n总分：%d\n排名：%s\n%s",
		strings.Join(parts, "，"), res.Total, rankText, ScoreBand(res.Total))
}

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoLessons    = errors.New("本周没有课程")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 周课表导出为 Excel (.xlsx)：一行一门课，按星期、开始时间排列，
// 附带本周会话状态。数据来自 SessionService.GetWeekOverview，导出与页面看到的一致。
type ExportService interface {
	ExportWeekOverview(ctx context.Context, date time.Time, callerID, role string) (*bytes.Buffer, string, error)
}

type exportService struct {
	sessions SessionService
	logger   *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(sessions SessionService, logger *zap.Logger) ExportService {
	return &exportService{sessions: sessions, logger: logger}
}

var (
	weekdayNames = map[int]string{1: "周一", 2: "周二", 3: "周三", 4: "周四", 5: "周五", 6: "周六", 7: "周日"}
	statusNames  = map[string]string{"open": "进行中", "finalized": "已定稿"}
)

const weekSheet = "周课表"

func (s *exportService) ExportWeekOverview(ctx context.Context, date time.Time, callerID, role string) (*bytes.Buffer, string, error) {
	overview, err := s.sessions.GetWeekOverview(ctx, date, callerID, role)
	if err != nil {
		return nil, "", err
	}

	total := 0
	for _, d := range overview.Days {
		total += len(d.Lessons)
	}
	if total == 0 {
		return nil, "", ErrExportNoLessons
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(weekSheet)
	if err != nil {
		s.logger.Error("创建工作表失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"星期", "日期", "时间", "课程", "班级", "会话状态"}
	widths := []float64{8, 12, 14, 24, 18, 10}
	for i, w := range widths {
		col := colName(i)
		_ = f.SetColWidth(weekSheet, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	title := fmt.Sprintf("周课表 %s ~ %s", overview.WeekStart, overview.Days[6].Date)
	_ = f.SetCellValue(weekSheet, "A1", title)
	_ = f.MergeCell(weekSheet, "A1", cell(colName(len(headers)-1), 1))
	_ = f.SetCellStyle(weekSheet, "A1", "A1", headerStyle)

	// 表头
	for i, h := range headers {
		_ = f.SetCellValue(weekSheet, cell(colName(i), 2), h)
	}
	_ = f.SetCellStyle(weekSheet, "A2", cell(colName(len(headers)-1), 2), headerStyle)

	row := 3
	for _, day := range overview.Days {
		for _, l := range day.Lessons {
			status := "未开始"
			if l.SessionStatus != nil {
				status = statusNames[*l.SessionStatus]
			}
			values := []interface{}{
				weekdayNames[day.DayOfWeek],
				day.Date,
				l.StartTime + "-" + l.EndTime,
				l.Title,
				l.GroupName,
				status,
			}
			for i, v := range values {
				_ = f.SetCellValue(weekSheet, cell(colName(i), row), v)
			}
			row++
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	return buf, fmt.Sprintf("周课表_%s.xlsx", overview.WeekStart), nil
}

// ── 辅助函数 ──

// colName 0 → "A"
func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

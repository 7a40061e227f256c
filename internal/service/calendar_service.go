package service

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/atakdmr/student-attendance/internal/model"
	"github.com/atakdmr/student-attendance/internal/repository"
)

// CalendarService 课程日历订阅
//
// 每门启用课程导出为一个每周重复的 VEVENT，首次发生时间取 NextOccurrence，
// 订阅方（手机日历等）据 RRULE 自行展开。
// DTSTART/DTEND 以考勤时区的本地时间带 TZID 输出，BYDAY 按同一时区的星期展开。
type CalendarService interface {
	ExportTeacherCalendar(ctx context.Context, callerID, role string) ([]byte, error)
}

type calendarService struct {
	repo   *repository.Repository
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) CalendarService {
	return &calendarService{repo: repo, loc: loc, now: time.Now, logger: logger}
}

const icsLocalLayout = "20060102T150405"

var icsWeekdays = map[int]string{1: "MO", 2: "TU", 3: "WE", 4: "TH", 5: "FR", 6: "SA", 7: "SU"}

func (s *calendarService) ExportTeacherCalendar(ctx context.Context, callerID, role string) ([]byte, error) {
	teacherID := callerID
	if role == roleAdmin {
		teacherID = ""
	}

	lessons, err := s.repo.Lesson.ListActive(ctx, teacherID)
	if err != nil {
		s.logger.Error("查询课程失败", zap.Error(err))
		return nil, err
	}

	now := s.now().In(s.loc)
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//student-attendance//lessons//ZH")
	cal.SetName("课程表")
	cal.SetXWRCalName("课程表")
	cal.SetXWRTimezone(s.loc.String())
	addTimezone(cal, s.loc, now)

	for i := range lessons {
		if err := s.addLessonEvent(cal, &lessons[i], now); err != nil {
			// 个别课程数据损坏不影响整份日历
			s.logger.Warn("跳过无法导出的课程", zap.String("lesson_id", lessons[i].LessonID), zap.Error(err))
		}
	}

	return []byte(cal.Serialize()), nil
}

func (s *calendarService) addLessonEvent(cal *ics.Calendar, lesson *model.Lesson, now time.Time) error {
	byDay, ok := icsWeekdays[lesson.DayOfWeek]
	if !ok {
		return fmt.Errorf("%w: day_of_week=%d", ErrInvalidTimeRange, lesson.DayOfWeek)
	}
	start, err := ParseClock(lesson.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseClock(lesson.EndTime)
	if err != nil {
		return err
	}
	if end <= start {
		return fmt.Errorf("%w: %s-%s", ErrInvalidTimeRange, lesson.StartTime, lesson.EndTime)
	}

	first := NextOccurrence(lesson.DayOfWeek, start, now)

	event := cal.AddEvent(lesson.LessonID + "@student-attendance")
	event.SetDtStampTime(now)
	tzid := ics.WithTZID(s.loc.String())
	event.SetProperty(ics.ComponentPropertyDtStart, first.Format(icsLocalLayout), tzid)
	event.SetProperty(ics.ComponentPropertyDtEnd, AtClock(first, end).Format(icsLocalLayout), tzid)
	event.SetSummary(lesson.Title)
	if lesson.Group != nil {
		event.SetDescription("班级：" + lesson.Group.Name)
	}
	event.AddRrule("FREQ=WEEKLY;BYDAY=" + byDay)
	return nil
}

// addTimezone 写入 VTIMEZONE，偏移取导出时刻的时区偏移
// 有夏令时的时区由订阅方按 TZID 自行解析
func addTimezone(cal *ics.Calendar, loc *time.Location, now time.Time) {
	_, offset := now.In(loc).Zone()
	utcOffset := formatUTCOffset(offset)

	tz := cal.AddTimezone(loc.String())
	std := tz.AddStandard()
	std.SetProperty(ics.ComponentPropertyDtStart, "19700101T000000")
	std.SetProperty(ics.ComponentProperty(ics.PropertyTzoffsetfrom), utcOffset)
	std.SetProperty(ics.ComponentProperty(ics.PropertyTzoffsetto), utcOffset)
}

// formatUTCOffset 秒数 → ±hhmm
func formatUTCOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("%c%02d%02d", sign, seconds/3600, seconds%3600/60)
}

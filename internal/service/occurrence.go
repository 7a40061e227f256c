package service

import (
	"fmt"
	"time"
)

// ── 上课时间推算 ──────────────────────────────────────────────
//
// 课程模板只有"星期几 + 几点"，会话需要具体时刻。这里的函数都是纯函数，
// 所有日期运算都在入参 time.Time 自带的时区内完成。
// ─────────────────────────────────────────────────────────────

// IsoWeekday ISO 星期：周一=1 … 周日=7
func IsoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// NextOccurrence 课程的下一次上课时刻
//
// 当天就是上课日时直接返回当天的开课时刻，即使已经过了开课时间，
// 这样老师在下课后补开会话也能落在当天。
func NextOccurrence(dayOfWeek int, startTime time.Duration, now time.Time) time.Time {
	today := IsoWeekday(now)
	if today == dayOfWeek {
		return AtClock(now, startTime)
	}

	delta := (dayOfWeek - today + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return AtClock(now.AddDate(0, 0, delta), startTime)
}

// StartOfDay 当天 00:00
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AtClock 取 date 的日历日期，拼上一天内的偏移 clock
// 按年月日时分秒重建，跨夏令时切换日不会漂移
func AtClock(date time.Time, clock time.Duration) time.Time {
	y, m, d := date.Date()
	h := int(clock / time.Hour)
	mi := int(clock % time.Hour / time.Minute)
	s := int(clock % time.Minute / time.Second)
	return time.Date(y, m, d, h, mi, s, 0, date.Location())
}

// WeekWindow t 所在 ISO 周的 [周一 00:00, 下周一 00:00)
func WeekWindow(t time.Time) (start, end time.Time) {
	start = StartOfDay(t).AddDate(0, 0, 1-IsoWeekday(t))
	end = start.AddDate(0, 0, 7)
	return start, end
}

// ParseClock 解析数据库 time 列的文本（"09:00"、"09:00:00"、"09:00:00.000000"）
func ParseClock(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05.999999999", "15:04"} {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Duration(t.Hour())*time.Hour +
			time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second, nil
	}
	return 0, fmt.Errorf("%w: 无法解析时间 %q", ErrInvalidTimeRange, s)
}

// FormatClock 一天内的偏移 → "HH:MM"
func FormatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

// dateOnly 取 t 在其时区内的日历日期，以 UTC 零点表示，用于 date 列
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

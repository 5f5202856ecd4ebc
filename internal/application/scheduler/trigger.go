package scheduler

import "time"

// Trigger 決定工作下一次執行的時間。
type Trigger interface {
	Next(after time.Time) time.Time
	String() string
}

type dailyAt struct {
	hour, minute int
	loc          *time.Location
}

// DailyAt 每天固定時刻執行。
func DailyAt(hour, minute int, loc *time.Location) Trigger {
	if loc == nil {
		loc = time.UTC
	}
	return dailyAt{hour: hour, minute: minute, loc: loc}
}

func (d dailyAt) Next(after time.Time) time.Time {
	t := after.In(d.loc)
	next := time.Date(t.Year(), t.Month(), t.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (d dailyAt) String() string {
	return time.Date(2000, 1, 1, d.hour, d.minute, 0, 0, d.loc).Format("daily 15:04 MST")
}

type weeklyAt struct {
	weekday      time.Weekday
	hour, minute int
	loc          *time.Location
}

// WeeklyAt 每週固定星期與時刻執行。
func WeeklyAt(day time.Weekday, hour, minute int, loc *time.Location) Trigger {
	if loc == nil {
		loc = time.UTC
	}
	return weeklyAt{weekday: day, hour: hour, minute: minute, loc: loc}
}

func (w weeklyAt) Next(after time.Time) time.Time {
	t := after.In(w.loc)
	days := (int(w.weekday) - int(t.Weekday()) + 7) % 7
	next := time.Date(t.Year(), t.Month(), t.Day()+days, w.hour, w.minute, 0, 0, w.loc)
	if !next.After(t) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (w weeklyAt) String() string {
	return w.weekday.String() + " " + time.Date(2000, 1, 1, w.hour, w.minute, 0, 0, w.loc).Format("15:04 MST")
}

type every struct {
	d time.Duration
}

// Every 以固定間隔執行，第一次在啟動後一個間隔。
func Every(d time.Duration) Trigger {
	if d <= 0 {
		d = time.Hour
	}
	return every{d: d}
}

func (e every) Next(after time.Time) time.Time { return after.Add(e.d) }

func (e every) String() string { return "every " + e.d.String() }

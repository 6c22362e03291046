package contenthash

// The field sets below mirror the externally supplied native-store
// schema. Store-internal identifiers and creation/modification timestamps
// are deliberately absent: they change without a semantic edit.

// Attendee is one event participant.
type Attendee struct {
	Name *string
	URL  string
}

// Alarm is one alarm attached to a calendar item. Dates are seconds since
// the Unix epoch.
type Alarm struct {
	RelativeOffset float64
	AbsoluteDate   float64
}

// Weekday is one "day of week" component of a recurrence rule.
type Weekday struct {
	Day        int
	WeekNumber int
}

// RecurrenceRule describes how a calendar item repeats. The slice fields
// are unordered in the native store.
type RecurrenceRule struct {
	Frequency       int
	Interval        int
	DaysOfWeek      []Weekday
	DaysOfMonth     []int
	DaysOfYear      []int
	WeeksOfYear     []int
	MonthsOfYear    []int
	SetPositions    []int
	OccurrenceCount int
	EndDate         float64
}

// CalendarItem holds the fields shared by events and reminders.
type CalendarItem struct {
	Title           string
	Location        *string
	TimeZone        *string
	URL             *string
	Notes           *string
	Attendees       []Attendee
	Alarms          []Alarm
	RecurrenceRules []RecurrenceRule
}

// Event is a calendar event.
type Event struct {
	CalendarItem
	Availability   int
	Organizer      *string
	StartDate      float64
	EndDate        float64
	AllDay         bool
	OccurrenceDate float64
	Detached       bool
	Status         int
}

// Reminder is a task / reminder item.
type Reminder struct {
	CalendarItem
	StartDate      *DateComponents
	DueDate        *DateComponents
	Completed      bool
	CompletionDate float64
	Priority       int
}

// DateComponents is a calendar date without a time of day.
type DateComponents struct {
	Year  int
	Month int
	Day   int
}

func (d *DateComponents) canonical() interface{} {
	if d == nil {
		return nil
	}
	return []interface{}{d.Year, d.Month, d.Day}
}

func (r RecurrenceRule) canonical() (interface{}, error) {
	days, err := weekdaysCanonical(r.DaysOfWeek)
	if err != nil {
		return nil, err
	}
	daysOfMonth, err := sortedInts(r.DaysOfMonth)
	if err != nil {
		return nil, err
	}
	daysOfYear, err := sortedInts(r.DaysOfYear)
	if err != nil {
		return nil, err
	}
	weeksOfYear, err := sortedInts(r.WeeksOfYear)
	if err != nil {
		return nil, err
	}
	monthsOfYear, err := sortedInts(r.MonthsOfYear)
	if err != nil {
		return nil, err
	}
	setPositions, err := sortedInts(r.SetPositions)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		r.Frequency, r.Interval, days, daysOfMonth, daysOfYear,
		weeksOfYear, monthsOfYear, setPositions, r.OccurrenceCount, r.EndDate,
	}, nil
}

func weekdaysCanonical(ws []Weekday) (interface{}, error) {
	if ws == nil {
		return nil, nil
	}
	elems := make([]interface{}, len(ws))
	for i, w := range ws {
		elems[i] = []interface{}{w.Day, w.WeekNumber}
	}
	return sortedCollection(elems)
}

func (c *CalendarItem) canonical() ([]interface{}, error) {
	msg := []interface{}{
		c.Title,
		stringOrNil(c.Location),
		stringOrNil(c.TimeZone),
		stringOrNil(c.URL),
		stringOrNil(c.Notes),
	}

	if c.Attendees != nil {
		elems := make([]interface{}, len(c.Attendees))
		for i, a := range c.Attendees {
			elems[i] = []interface{}{stringOrNil(a.Name), a.URL}
		}
		sorted, err := sortedCollection(elems)
		if err != nil {
			return nil, err
		}
		msg = append(msg, sorted)
	} else {
		msg = append(msg, nil)
	}

	if c.Alarms != nil {
		elems := make([]interface{}, len(c.Alarms))
		for i, a := range c.Alarms {
			elems[i] = []interface{}{a.RelativeOffset, a.AbsoluteDate}
		}
		sorted, err := sortedCollection(elems)
		if err != nil {
			return nil, err
		}
		msg = append(msg, sorted)
	} else {
		msg = append(msg, nil)
	}

	if c.RecurrenceRules != nil {
		elems := make([]interface{}, len(c.RecurrenceRules))
		for i, r := range c.RecurrenceRules {
			canon, err := r.canonical()
			if err != nil {
				return nil, err
			}
			elems[i] = canon
		}
		sorted, err := sortedCollection(elems)
		if err != nil {
			return nil, err
		}
		msg = append(msg, sorted)
	} else {
		msg = append(msg, nil)
	}

	return msg, nil
}

// CanonicalFields implements Record.
func (e *Event) CanonicalFields() ([]interface{}, error) {
	msg, err := e.CalendarItem.canonical()
	if err != nil {
		return nil, err
	}
	msg = append(msg,
		e.Availability,
		stringOrNil(e.Organizer),
		e.StartDate,
		e.EndDate,
		e.AllDay,
		e.OccurrenceDate,
		e.Detached,
		e.Status,
	)
	return msg, nil
}

// CanonicalFields implements Record.
func (r *Reminder) CanonicalFields() ([]interface{}, error) {
	msg, err := r.CalendarItem.canonical()
	if err != nil {
		return nil, err
	}
	msg = append(msg,
		r.StartDate.canonical(),
		r.DueDate.canonical(),
		r.Completed,
		r.CompletionDate,
		r.Priority,
	)
	return msg, nil
}

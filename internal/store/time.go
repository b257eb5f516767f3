package store

import (
	"database/sql"
	"time"
)

const timeLayout = time.RFC3339Nano

// storedTimeLayout always writes nine fractional-second digits, so stored
// timestamps sort as text in time order (ListJobs orders by created_at);
// timeLayout parses it as well as older variable-width rows.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(storedTimeLayout), Valid: true}
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func nullableString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

package api

import "time"

// nowISO returns the current UTC time in ISO-8601 form with millisecond
// precision, the wire format of updatedAt values.
func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

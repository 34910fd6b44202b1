// Package retention prunes old audit records by age and by count, on
// demand or on a cron schedule.
package retention

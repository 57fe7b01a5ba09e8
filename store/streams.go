package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/teranos/batchwatch/batch"
	"github.com/teranos/batchwatch/errors"
)

// JobStream returns the stream of the schedule entry (day, jobID, at). When
// duplicate entries exist the last one wins; a NULL or blank stream on it
// means the entry belongs to no stream.
func (s *Store) JobStream(ctx context.Context, day batch.Weekday, jobID int64, at batch.TimeOfDay) (string, bool, error) {
	var streams []sql.NullString
	err := s.selectRows(ctx, &streams, `
		SELECT job_stream
		FROM icm_batch_schedule
		WHERE schedule_day = ? AND icm_job_id = ? AND schedule_time = ?
		ORDER BY icm_batch_schedule_id`,
		day.String(), jobID, at.HHMM())
	if err != nil {
		return "", false, errors.WrapDataAccess(err, "failed to get job stream")
	}
	if len(streams) == 0 {
		return "", false, nil
	}
	last := streams[len(streams)-1]
	if name := strings.TrimSpace(last.String); last.Valid && name != "" {
		return name, true, nil
	}
	return "", false, nil
}

// StreamSiblingRuns returns runs of the other jobs of a stream on day that
// started inside [start, end] and either ended by end or are still open.
func (s *Store) StreamSiblingRuns(ctx context.Context, stream string, day batch.Weekday, excludeJobID int64, start, end time.Time) ([]batch.Span, error) {
	var rows []struct {
		Start time.Time    `db:"start_date"`
		End   sql.NullTime `db:"end_date"`
	}
	err := s.selectRows(ctx, &rows, `
		SELECT start_date, end_date
		FROM icm_job_history
		WHERE icm_job_id IN (
			SELECT icm_job_id FROM icm_batch_schedule
			WHERE job_stream = ? AND schedule_day = ? AND icm_job_id <> ?)
		  AND start_date >= ? AND (end_date <= ? OR end_date IS NULL)
		ORDER BY start_date`,
		stream, day.String(), excludeJobID, start, end)
	if err != nil {
		return nil, errors.WrapDataAccess(err, "failed to get stream sibling runs")
	}

	out := make([]batch.Span, 0, len(rows))
	for _, r := range rows {
		out = append(out, batch.Span{Start: r.Start, End: timePtr(r.End)})
	}
	return out, nil
}

// CountEarlierOtherStreamRuns counts runs since the given time of jobs
// scheduled on day before the given time in a different stream.
func (s *Store) CountEarlierOtherStreamRuns(ctx context.Context, day batch.Weekday, stream string, before batch.TimeOfDay, since time.Time) (int, error) {
	var n int
	err := s.getRow(ctx, &n, `
		SELECT COUNT(jh.icm_job_id)
		FROM icm_batch_schedule ibs
		JOIN icm_job_history jh ON ibs.icm_job_id = jh.icm_job_id
		WHERE jh.start_date >= ? AND ibs.schedule_time < ?
		  AND ibs.job_stream <> ? AND ibs.schedule_day = ?`,
		since, before.HHMM(), stream, day.String())
	if err != nil {
		return 0, errors.WrapDataAccess(err, "failed to count earlier stream runs")
	}
	return n, nil
}

// StreamScheduleBounds returns the earliest and latest schedule time of a
// stream across all of its entries.
func (s *Store) StreamScheduleBounds(ctx context.Context, stream string) (first, last batch.TimeOfDay, ok bool, err error) {
	var r struct {
		Min sql.NullInt64 `db:"min_time"`
		Max sql.NullInt64 `db:"max_time"`
	}
	err = s.getRow(ctx, &r, `
		SELECT MIN(schedule_time) AS min_time, MAX(schedule_time) AS max_time
		FROM icm_batch_schedule
		WHERE job_stream = ?`,
		stream)
	if err != nil {
		return first, last, false, errors.WrapDataAccess(err, "failed to get stream schedule bounds")
	}
	if !r.Min.Valid || !r.Max.Valid {
		return first, last, false, nil
	}

	if first, err = batch.FromHHMM(int(r.Min.Int64)); err != nil {
		return first, last, false, errors.Wrapf(err, "stream %s", stream)
	}
	if last, err = batch.FromHHMM(int(r.Max.Int64)); err != nil {
		return first, last, false, errors.Wrapf(err, "stream %s", stream)
	}
	return first, last, true, nil
}

// LatestScheduledBefore returns the job of the latest active entry on day
// before cutoff, ties going to the highest job id. Jobs whose names end in
// one of excludeNameSuffixes (case-insensitive) are skipped.
func (s *Store) LatestScheduledBefore(ctx context.Context, day batch.Weekday, cutoff batch.TimeOfDay, excludeNameSuffixes []string) (int64, bool, error) {
	var rows []struct {
		JobID   int64  `db:"icm_job_id"`
		JobName string `db:"job_name"`
	}
	err := s.selectRows(ctx, &rows, `
		SELECT s.icm_job_id, j.job_name
		FROM icm_batch_schedule s
		JOIN icm_job j ON j.icm_job_id = s.icm_job_id
		WHERE s.schedule_day = ? AND s.schedule_time < ? AND s.active = ?
		ORDER BY s.schedule_time DESC, s.icm_job_id DESC`,
		day.String(), cutoff.HHMM(), true)
	if err != nil {
		return 0, false, errors.WrapDataAccess(err, "failed to find latest scheduled job")
	}

	for _, r := range rows {
		if !hasSuffixFold(r.JobName, excludeNameSuffixes) {
			return r.JobID, true, nil
		}
	}
	return 0, false, nil
}

func hasSuffixFold(name string, suffixes []string) bool {
	lower := strings.ToLower(name)
	for _, sfx := range suffixes {
		if strings.HasSuffix(lower, strings.ToLower(sfx)) {
			return true
		}
	}
	return false
}

package chunk

import "time"

// Window is one half-open time partition [Start, End) of a historic
// query (spec §4.4).
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows partitions [start, end) into chunkTime-sized half-open
// windows, the last one truncated to end (spec §4.4: "Partitions
// [start_time, end_time) into half-open windows of length chunk_time
// (last window truncated)").
func Windows(start, end time.Time, chunkTime time.Duration) []Window {
	var out []Window
	for s := start; s.Before(end); s = s.Add(chunkTime) {
		e := s.Add(chunkTime)
		if e.After(end) {
			e = end
		}
		out = append(out, Window{Start: s, End: e})
	}
	return out
}

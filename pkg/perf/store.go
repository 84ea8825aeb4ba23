package perf

// evict applies the retention policy when the store exceeds maxCapacity:
// keep the union of all anomalous samples and the most recent
// floor(0.7*maxCapacity) samples, then truncate to the newest maxCapacity.
// Anomalies are rarer and more diagnostically valuable than routine
// samples, so retention biases toward them while still bounding memory.
//
// Samples are appended with monotonically non-decreasing timestamps, so a
// single index walk yields the deduplicated union already sorted by
// timestamp. When anomalous samples alone exceed capacity the final
// truncation drops the oldest anomalies; that is accepted behavior, not a
// bug.
func evict(samples []Sample, maxCapacity int) []Sample {
	recentStart := len(samples) - maxCapacity*7/10
	if recentStart < 0 {
		recentStart = 0
	}

	kept := make([]Sample, 0, maxCapacity)
	for i, s := range samples {
		if s.Anomalous || i >= recentStart {
			kept = append(kept, s)
		}
	}
	if len(kept) > maxCapacity {
		kept = kept[len(kept)-maxCapacity:]
	}
	return kept
}

package metrics

import "time"

// RecordRecordsFetched records the number of records normalized from one source.
func RecordRecordsFetched(sourceLabel string, count int) {
	RecordsFetchedTotal.WithLabelValues(sourceLabel).Add(float64(count))
}

// RecordSourceFetchError records a source whose fetch exhausted its retries.
func RecordSourceFetchError(sourceLabel string) {
	SourceFetchErrorsTotal.WithLabelValues(sourceLabel).Inc()
}

// RecordSourceFetchDuration records the fetch-and-parse time for one source.
func RecordSourceFetchDuration(sourceLabel string, d time.Duration) {
	SourceFetchDuration.WithLabelValues(sourceLabel).Observe(d.Seconds())
}

// RecordBucketSummarized records the outcome of one bucket summarization.
func RecordBucketSummarized(success bool, d time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	BucketsSummarizedTotal.WithLabelValues(status).Inc()
	SummarizationDuration.Observe(d.Seconds())
}

// RecordDocumentWritten records the outcome of one document write.
func RecordDocumentWritten(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	DocumentsWrittenTotal.WithLabelValues(status).Inc()
}

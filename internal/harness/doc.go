// Package harness runs YAML scenarios against the load-and-merge pipeline.
//
// A scenario carries its input files inline, so each one is a complete,
// self-contained example of pipeline behavior:
//
//	name: union-drops-duplicates
//	description: CSV and JSON share one sample
//	prefer: both
//	files:
//	  hr_csv: |
//	    timestamp,heart_rate_bpm
//	    2024-01-01 08:00:00,72
//	  json: |
//	    {"heart_rate_data": [{"timestamp": "2024-01-01T08:00:00", "bpm": 72}]}
//	missing: [sleep_csv]
//	expect:
//	  datasets:
//	    heart_rate: {count: 1, duplicates_dropped: 1}
//	  diagnostics: [MISSING_SOURCE]
//
// Omitted file slots are not loaded at all. Slots listed under missing
// point at a path that does not exist, which exercises the missing source
// diagnostics.
//
// Run materializes the files in a fresh temp directory, runs the pipeline
// and checks the expectations. RunWithGolden additionally compares a
// canonical snapshot of the merged datasets against
// testdata/golden/<name>.golden.
package harness

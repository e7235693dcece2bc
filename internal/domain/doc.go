// Package domain models historical monthly rainfall observations and the
// per-subdivision, per-month partitioning used to train forecast models.
//
// # Data Source
//
// Observations come from the India Meteorological Department (IMD) subdivision
// rainfall series, published as "rainfall in india 1901-2015.csv". Each CSV row
// holds one subdivision and one year, with twelve monthly totals in millimetres
// followed by seasonal aggregates.
//
// # IMD Data Conventions
//
// Columns:
//
//	SUBDIVISION, YEAR, JAN, FEB, ..., DEC, ANNUAL, Jan-Feb, Mar-May, Jun-Sep, Oct-Dec
//
//	The aggregate columns (ANNUAL and the four seasonal sums) are derived from the
//	monthly values and are never used for training.
//
// Missing values:
//
//	Gaps are written as an empty cell or "NA". A row with any missing monthly value
//	is dropped as a whole, so every Row handed to the partitioner carries all twelve
//	months.
//
// Subdivision names:
//
//	Names are free text ("Andaman & Nicobar Islands", "Kerala") and occasionally
//	carry trailing whitespace in the source file. They are trimmed on load and
//	compared exactly afterwards.
//
// # Partitioning
//
// Models are keyed by (subdivision, month). [Partition] projects the flat record
// stream onto one [TrainingSet] of (year, value) pairs per [Key]. The subdivision
// order used for presentation is first-seen order in the dataset, see [Categories].
//
// # Fingerprints
//
// [Fingerprint] hashes the record stream with xxhash64. The cache blob stores the
// fingerprint of the dataset it was trained on, so a blob built from a different
// dataset is discarded and the registry is retrained.
package domain

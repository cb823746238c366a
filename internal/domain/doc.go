// Package domain models HRRR GRIB2 inventories: which variable and level sits
// at which message of which output file, per forecast hour.
//
// # Data Source
//
// HRRR output is mirrored on Azure, AWS and Google Cloud. Every GRIB2 file
// ships with a sidecar ".idx" text index, one line per message:
//
//	"<msg>:<start byte>:d=<YYYYMMDDHH>:<variable>:<level>:<forecast time>:"
//	e.g. "71:47045389:d=2024050103:TMP:2 m above ground:1 hour fcst:"
//
// The search key stored with each row is the colon-joined tail of that line,
// ":TMP:2 m above ground:1 hour fcst", which is what byte-range readers match
// against a live index.
//
// # Dimensions
//
// Files are named by region, product and forecast hour:
//
//	hrrr.20240501/conus/hrrr.t03z.wrfsfcf01.grib2
//	hrrr.20240501/alaska/hrrr.t06z.wrfprsf12.ak.grib2
//
// Products: prs (pressure levels), nat (native levels), sfc (surface),
// subh (sub-hourly, 15 minute steps). Forecast hour sets group hours whose
// files share a layout; analysis hours differ from forecast hours, so
// prs/nat/sfc use fh00-01 and fh02-48 while subh uses fh00 and fh01-18.
//
// Cycle types:
//
//	extended: runs at 00, 06, 12, 18 UTC, forecast hours 0..48
//	standard: every other hour, forecast hours 0..18
//
// # Reference Descriptions
//
// NOAA publishes one HTML page per product layout. The second table lists each
// message with a Parameter code and a Description such as
// "Temperature [K]", which [ParseDescription] splits into description and
// unit. The same code may appear on many rows (one per level); duplicates must
// agree or the reference is rejected with [ReferenceIntegrityError].
package domain

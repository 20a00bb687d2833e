// Package domain models USGS earthquake summary feed data.
//
// # Data Source
//
// The USGS Earthquake Hazards Program publishes GeoJSON summary feeds at
// https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/. This service
// reads the "all" feeds, one per lookback period:
//
//	all_hour.geojson   past hour
//	all_day.geojson    past day
//	all_week.geojson   past week
//	all_month.geojson  past month
//
// The feeds are regenerated upstream every minute. The windows are the only
// keys used for caching and fetching; see [TimeWindow].
//
// # Feed Conventions
//
// Each feature carries a point geometry in GeoJSON axis order:
//
//	[longitude, latitude, depth]
//
// Depth is in kilometres and may be slightly negative for events above sea
// level. Magnitude ("mag") is null for events that have not been measured yet,
// and "place" is null for some offshore or automatic solutions. Times are
// milliseconds since the Unix epoch.
//
// The feature id is a string in the published feeds, but mirrors and older
// archives sometimes emit it as a number, so [FeatureID] accepts both.
//
// # Normalization
//
// [Normalize] turns features into [Earthquake] values. Records with a missing
// magnitude or coordinates outside the WGS-84 ranges are dropped, never
// repaired. Optional fields fall back to fixed defaults, and the result is
// ordered by magnitude, largest first.
//
// # Magnitude Scale
//
// [ScaleFor] maps a magnitude onto the descriptive bands used by the
// dashboard legend (Micro through Great), following the USGS magnitude
// class table.
package domain

// Package domain models ERA5 reanalysis wind data and its reduction onto the
// H3 hexagonal grid.
//
// # Data Source
//
// Wind fields come from the Copernicus Climate Data Store dataset
// "reanalysis-era5-single-levels". A download covers one country bounding box
// and one day, with one or more hourly time steps. The fields used are:
//
//	u10, v10    10 m u/v wind components (m/s)
//	u100, v100  100 m u/v wind components (m/s)
//	i10fg       instantaneous 10 m wind gust (m/s)
//
// Each field is a (time, latitude, longitude) cube on a regular 0.25° lattice.
//
// # Reduction
//
// A Variable selects which fields are read and how they collapse to a single
// magnitude grid in km/h:
//
//	Gust           3.6 * max_t(i10fg)
//	Sustained10m   3.6 * sqrt(max_t(u10)^2 + max_t(v10)^2)
//	Sustained100m  3.6 * sqrt(max_t(u100)^2 + max_t(v100)^2)
//
// The sustained variants take the maximum of each component independently
// before combining them. This overestimates the true per-timestep maximum when
// the two component peaks occur at different hours; it is kept because the
// severity scale was calibrated against it.
//
// # Hexagonal Aggregation
//
// Every grid point is indexed at a base H3 resolution (15 by default) and
// rolled up to its ancestor at the display resolution. Each display cell holds
// the maximum magnitude of all points that fall into it.
//
// # Severity Scale
//
// Aggregated values are classified into five color bands. Gust and 10 m
// sustained wind turn yellow at 31, orange at 71 and dark orange at 101 km/h,
// and red above 130 km/h. 100 m sustained wind uses 31, 71 and 131 km/h, and
// red above 170 km/h, to account for stronger winds aloft.
package domain

// Package ranking scores and orders a course catalog by combining quality,
// popularity and freshness signals with an editorial boost for promoted
// courses.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	settings, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default settings", "error", err)
//	}
//
//	// Rank a batch of courses
//	ranked, err := ranking.Rank(courses, settings, time.Now())
//	if err != nil {
//		return err
//	}
//	for _, rc := range ranked {
//		fmt.Println(rc.ID, rc.FinalScore, rc.Reason)
//	}
//
// Component Scores:
//
// Quality, popularity and freshness are each in the [0, 1] range. Popularity
// is relative to the batch being ranked, so the same course can score
// differently in a different batch. The editorial boost is additive and only
// granted to courses at or above the quality floor.
//
// Determinism:
//
// Nothing in this package reads the wall clock. The reference time is always
// passed in, so a ranking can be replayed from its inputs and the breakdown.
package ranking

// Package seed generates the deterministic demo catalog and loads it into the
// course and settings stores.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/courserank/internal/course"
	"github.com/onnwee/courserank/internal/ranking"
)

const (
	// Seed is the fixed PRNG seed for the generated catalog.
	Seed uint32 = 20260128

	// GeneratedCount is the number of randomly generated courses.
	GeneratedCount = 45
)

// BaseDate anchors every relative date in the generated catalog.
var BaseDate = time.Date(2026, time.January, 28, 0, 0, 0, 0, time.UTC)

// courseNamespace derives stable course IDs so re-seeding updates rows in place.
var courseNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://courserank.dev/seed/courses"))

var (
	categories = []string{"Programming", "Data Science", "Design", "Marketing", "Soft Skills", "Compliance"}
	languages  = []string{"English", "Spanish", "German"}
	levels     = []string{"Beginner", "Intermediate", "Advanced"}
	suffixes   = []string{"Essentials", "Foundations", "Bootcamp", "Mastery"}
)

// mulberry32 is a small 32-bit PRNG whose sequence defines the generated catalog.
type mulberry32 struct {
	state uint32
}

func (m *mulberry32) float() float64 {
	m.state += 0x6d2b79f5
	t := m.state
	r := (t ^ (t >> 15)) * (t | 1)
	r ^= r + (r^(r>>7))*(r|61)
	return float64(r^(r>>14)) / 4294967296
}

// intn returns an integer in [min, max].
func (m *mulberry32) intn(min, max int) int {
	return int(math.Floor(m.float()*float64(max-min+1))) + min
}

func (m *mulberry32) pick(items []string) string {
	return items[m.intn(0, len(items)-1)]
}

func daysAgo(n int) time.Time {
	return BaseDate.AddDate(0, 0, -n)
}

func ptr(t time.Time) *time.Time {
	return &t
}

// courseID returns the stable ID for a course title.
func courseID(title string) string {
	return uuid.NewSHA1(courseNamespace, []byte(title)).String()
}

// Catalog returns the generated courses followed by the edge cases.
// The result is identical on every call.
func Catalog() []course.Course {
	rng := &mulberry32{state: Seed}
	courses := make([]course.Course, 0, GeneratedCount+5)
	for i := 0; i < GeneratedCount; i++ {
		courses = append(courses, generate(rng, i))
	}
	return append(courses, edgeCases()...)
}

// generate draws one course. The draw order is fixed.
func generate(rng *mulberry32, index int) course.Course {
	isFree := rng.float() < 0.2
	ratingAvg := math.Floor((2.5+rng.float()*2.4)*10+0.5) / 10
	ratingCount := rng.intn(5, 800)
	enrollments := rng.intn(20, 20000)
	days := rng.intn(0, 720)

	c := course.Course{
		Title:    fmt.Sprintf("Course %d: %s", index+1, rng.pick(suffixes)),
		Category: rng.pick(categories),
		Language: rng.pick(languages),
		Level:    rng.pick(levels),
	}
	if !isFree {
		c.PriceCents = rng.intn(1999, 19999)
	}
	c.DurationMinutes = rng.intn(60, 1200)
	c.HasPractice = rng.float() < 0.5
	c.HasCertificate = rng.float() < 0.6
	c.IsAccredited = rng.float() < 0.25
	c.IsEditorsChoice = rng.float() < 0.15
	c.IsSponsored = rng.float() < 0.15
	if rng.float() < 0.2 {
		c.PromoStart = ptr(daysAgo(rng.intn(1, 30)))
	}
	if rng.float() < 0.2 {
		c.PromoEnd = ptr(daysAgo(-rng.intn(1, 30)))
	}

	c.ID = courseID(c.Title)
	c.RatingAvg = ratingAvg
	c.RatingCount = ratingCount
	c.Enrollments = enrollments
	c.LastUpdatedAt = daysAgo(days)
	c.CreatedAt = daysAgo(days + 30)
	return c
}

func edgeCases() []course.Course {
	cases := []course.Course{
		{
			Title: "Edge: High Rating, Low Enrollments", Category: "Programming", Language: "English", Level: "Advanced",
			PriceCents: 12999, DurationMinutes: 480, HasPractice: true, HasCertificate: true, IsAccredited: true,
			RatingAvg: 4.9, RatingCount: 120, Enrollments: 45, LastUpdatedAt: daysAgo(30),
		},
		{
			Title: "Edge: High Enrollments, Average Rating", Category: "Marketing", Language: "English", Level: "Beginner",
			PriceCents: 4999, DurationMinutes: 240,
			RatingAvg: 3.6, RatingCount: 900, Enrollments: 18000, LastUpdatedAt: daysAgo(120),
		},
		{
			Title: "Edge: Recently Updated, Low Popularity", Category: "Data Science", Language: "English", Level: "Intermediate",
			PriceCents: 8999, DurationMinutes: 360, HasPractice: true, HasCertificate: true, IsEditorsChoice: true,
			PromoStart: ptr(daysAgo(3)), PromoEnd: ptr(daysAgo(-7)),
			RatingAvg: 4.2, RatingCount: 60, Enrollments: 120, LastUpdatedAt: daysAgo(2),
		},
		{
			Title: "Edge: Popular but Outdated", Category: "Design", Language: "Spanish", Level: "Beginner",
			PriceCents: 2999, DurationMinutes: 180, HasCertificate: true,
			RatingAvg: 4.1, RatingCount: 500, Enrollments: 14000, LastUpdatedAt: daysAgo(650),
		},
		{
			Title: "Edge: Sponsored Near Quality Floor", Category: "Compliance", Language: "English", Level: "Intermediate",
			PriceCents: 10999, DurationMinutes: 300, HasPractice: true, HasCertificate: true, IsAccredited: true, IsSponsored: true,
			PromoStart: ptr(daysAgo(1)), PromoEnd: ptr(daysAgo(-5)),
			RatingAvg: 3.5, RatingCount: 40, Enrollments: 600, LastUpdatedAt: daysAgo(40),
		},
	}
	for i := range cases {
		cases[i].ID = courseID(cases[i].Title)
		cases[i].CreatedAt = cases[i].LastUpdatedAt.AddDate(0, 0, -30)
	}
	return cases
}

// Settings returns the settings row written by the seeder.
func Settings() *ranking.Settings {
	return ranking.DefaultSettings()
}

// CourseWriter is the subset of a course store the loader needs.
type CourseWriter interface {
	Upsert(ctx context.Context, c *course.Course) (inserted bool, err error)
}

// SettingsWriter is the subset of a settings store the loader needs.
type SettingsWriter interface {
	Save(ctx context.Context, s *ranking.Settings) error
}

// Result summarizes a seeding run.
type Result struct {
	Inserted int
	Updated  int
}

// Load upserts the catalog and settings. Running it twice leaves the stores
// in the same state.
func Load(ctx context.Context, courses CourseWriter, settings SettingsWriter, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var res Result
	for _, c := range Catalog() {
		c := c
		if err := c.Validate(); err != nil {
			return res, fmt.Errorf("seed course %q: %w", c.Title, err)
		}
		inserted, err := courses.Upsert(ctx, &c)
		if err != nil {
			return res, fmt.Errorf("upsert course %q: %w", c.Title, err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	if err := settings.Save(ctx, Settings()); err != nil {
		return res, fmt.Errorf("save settings: %w", err)
	}

	logger.Info("seed complete",
		"inserted", res.Inserted,
		"updated", res.Updated,
		"base_date", BaseDate.Format(time.DateOnly),
	)
	return res, nil
}

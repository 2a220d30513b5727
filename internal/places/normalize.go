package places

import (
	"sort"
	"time"
)

const (
	MaxReviews = 5

	defaultAuthor       = "Anonymous"
	defaultReviewRating = 5
	defaultRelativeTime = "Recently"
)

// isoMillis matches the timestamps browsers produce with toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Payload is the data object returned by /api/reviews.
type Payload struct {
	DisplayName     string   `json:"displayName"`
	Rating          float64  `json:"rating"`
	UserRatingCount int      `json:"userRatingCount"`
	Reviews         []Review `json:"reviews"`
}

type Review struct {
	Name         string  `json:"name"`
	Rating       float64 `json:"rating"`
	Text         string  `json:"text"`
	RelativeTime string  `json:"relativeTime"`
	PublishTime  string  `json:"publishTime"`
	PhotoURI     string  `json:"photoUri,omitempty"`
}

// Normalize projects an upstream place onto Payload. Reviews are ordered by
// publish time, newest first, and truncated to MaxReviews. now fills in a
// missing publish time.
func Normalize(place *Place, now time.Time) Payload {
	if place == nil {
		place = &Place{}
	}

	out := Payload{
		DisplayName:     displayName(place),
		Rating:          place.Rating.Value,
		UserRatingCount: userRatingCount(place),
		Reviews:         make([]Review, 0, MaxReviews),
	}

	for _, r := range newestFirst(place.Reviews) {
		out.Reviews = append(out.Reviews, normalizeReview(r, now))
	}

	return out
}

func displayName(p *Place) string {
	if p.DisplayName != nil && p.DisplayName.Text != "" {
		return p.DisplayName.Text
	}
	return p.Name
}

// userRatingCount prefers the member of an object-shaped rating, then the
// top-level field.
func userRatingCount(p *Place) int {
	if p.Rating.Kind == RatingObject && p.Rating.HasCount {
		return p.Rating.Count
	}
	if p.UserRatingCount != nil {
		return *p.UserRatingCount
	}
	return 0
}

// newestFirst returns at most MaxReviews reviews sorted by publish time,
// descending. Unparseable or missing times sort as the Unix epoch. The input
// slice is not modified.
func newestFirst(reviews []UpstreamReview) []UpstreamReview {
	keys := make([]int64, len(reviews))
	idx := make([]int, len(reviews))
	for i, r := range reviews {
		keys[i] = publishMillis(r.PublishTime)
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]] > keys[idx[b]]
	})

	if len(idx) > MaxReviews {
		idx = idx[:MaxReviews]
	}
	out := make([]UpstreamReview, len(idx))
	for i, j := range idx {
		out[i] = reviews[j]
	}
	return out
}

func publishMillis(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

func normalizeReview(r UpstreamReview, now time.Time) Review {
	out := Review{
		Name:         defaultAuthor,
		Rating:       defaultReviewRating,
		RelativeTime: defaultRelativeTime,
		PublishTime:  r.PublishTime,
	}

	if r.AuthorAttribution != nil {
		if r.AuthorAttribution.DisplayName != "" {
			out.Name = r.AuthorAttribution.DisplayName
		}
		out.PhotoURI = r.AuthorAttribution.PhotoURI
	}
	if r.Rating != nil {
		out.Rating = *r.Rating
	}
	switch {
	case r.Text != nil && r.Text.Text != "":
		out.Text = r.Text.Text
	case r.OriginalText != nil && r.OriginalText.Text != "":
		out.Text = r.OriginalText.Text
	}
	if r.RelativePublishTimeDescription != "" {
		out.RelativeTime = r.RelativePublishTimeDescription
	}
	if out.PublishTime == "" {
		out.PublishTime = now.UTC().Format(isoMillis)
	}

	return out
}

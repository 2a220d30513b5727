// Command places-stub serves a canned Places API place for local development.
// Point PLACES_BASE_URL at it and set GOOGLE_PLACES_API_KEY to any value.
package main

import (
	"flag"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", ":3001", "listen address")
	flag.Parse()

	log, _ := zap.NewDevelopment()
	defer func() { _ = log.Sync() }()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/v1/places/:id", func(c *gin.Context) {
		log.Info("places request",
			zap.String("place_id", c.Param("id")),
			zap.String("field_mask", c.GetHeader("X-Goog-FieldMask")),
		)
		if c.GetHeader("X-Goog-Api-Key") == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": gin.H{
				"code":    http.StatusForbidden,
				"message": "The request is missing a valid API key.",
				"status":  "PERMISSION_DENIED",
			}})
			return
		}
		c.JSON(http.StatusOK, samplePlace(c.Param("id")))
	})

	log.Info("places stub listening", zap.String("addr", *addr))
	if err := r.Run(*addr); err != nil {
		log.Fatal("places stub stopped", zap.Error(err))
	}
}

func review(author, text, relative, published string, rating int) gin.H {
	r := gin.H{
		"rating":                         rating,
		"relativePublishTimeDescription": relative,
		"authorAttribution":              gin.H{"displayName": author},
	}
	if text != "" {
		r["text"] = gin.H{"text": text, "languageCode": "en"}
	}
	if published != "" {
		r["publishTime"] = published
	}
	return r
}

func samplePlace(id string) gin.H {
	return gin.H{
		"name":            "places/" + id,
		"displayName":     gin.H{"text": "Zenara Designs", "languageCode": "en"},
		"rating":          4.8,
		"userRatingCount": 42,
		"reviews": []gin.H{
			review("Maya R.", "Beautiful work on our brand refresh.", "2 weeks ago", "2026-09-28T14:03:11.482913Z", 5),
			review("Tom H.", "Fast turnaround and clear communication.", "a month ago", "2026-09-02T09:41:00Z", 5),
			review("Priya S.", "", "3 months ago", "2026-07-15T18:22:45Z", 4),
			review("Jonas K.", "Great eye for detail.", "5 months ago", "2026-05-20T11:00:00Z", 5),
			review("Aiko M.", "Helpful team, the site loads quickly now.", "8 months ago", "2026-02-11T16:30:12Z", 4),
			review("Sam L.", "Would hire again.", "a year ago", "2025-10-01T08:15:00Z", 5),
			review("Chris D.", "Good experience overall.", "", "", 3),
		},
	}
}

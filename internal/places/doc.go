// Package places talks to the Google Places API (New) and turns a place's
// rating and reviews into the small payload served by /api/reviews.
//
// Only the fields named in FieldMask are requested. Every upstream field is
// treated as optional; Normalize fills defaults instead of failing.
package places

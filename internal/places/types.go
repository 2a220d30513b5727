package places

import (
	"bytes"
	"encoding/json"
)

// Place is the subset of a Places API place resource the gateway reads.
// Decoding is lenient: a member with the wrong JSON type is treated as
// missing instead of failing the whole document.
type Place struct {
	DisplayName     *LocalizedText   `json:"displayName,omitempty"`
	Name            string           `json:"name,omitempty"` // legacy name, used when displayName is missing
	Rating          RatingValue      `json:"rating"`
	UserRatingCount *int             `json:"userRatingCount,omitempty"`
	Reviews         []UpstreamReview `json:"reviews,omitempty"`
}

func (p *Place) UnmarshalJSON(data []byte) error {
	var wire struct {
		DisplayName     json.RawMessage `json:"displayName"`
		Name            json.RawMessage `json:"name"`
		Rating          RatingValue     `json:"rating"`
		UserRatingCount json.RawMessage `json:"userRatingCount"`
		Reviews         json.RawMessage `json:"reviews"`
	}
	// only a document that is not an object at all is an error
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*p = Place{
		Name:   looseString(wire.Name),
		Rating: wire.Rating,
	}
	if isObject(wire.DisplayName) {
		p.DisplayName = &LocalizedText{}
		_ = json.Unmarshal(wire.DisplayName, p.DisplayName)
	}
	if n, ok := looseNumber(wire.UserRatingCount); ok {
		count := int(n)
		p.UserRatingCount = &count
	}

	var items []json.RawMessage
	if json.Unmarshal(wire.Reviews, &items) == nil {
		for _, item := range items {
			if !isObject(item) {
				continue
			}
			var r UpstreamReview
			_ = json.Unmarshal(item, &r)
			p.Reviews = append(p.Reviews, r)
		}
	}
	return nil
}

type LocalizedText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

func (t *LocalizedText) UnmarshalJSON(data []byte) error {
	var wire struct {
		Text         json.RawMessage `json:"text"`
		LanguageCode json.RawMessage `json:"languageCode"`
	}
	*t = LocalizedText{}
	if json.Unmarshal(data, &wire) != nil {
		return nil
	}
	t.Text = looseString(wire.Text)
	t.LanguageCode = looseString(wire.LanguageCode)
	return nil
}

type AuthorAttribution struct {
	DisplayName string `json:"displayName"`
	URI         string `json:"uri,omitempty"`
	PhotoURI    string `json:"photoUri,omitempty"`
}

func (a *AuthorAttribution) UnmarshalJSON(data []byte) error {
	var wire struct {
		DisplayName json.RawMessage `json:"displayName"`
		URI         json.RawMessage `json:"uri"`
		PhotoURI    json.RawMessage `json:"photoUri"`
	}
	*a = AuthorAttribution{}
	if json.Unmarshal(data, &wire) != nil {
		return nil
	}
	a.DisplayName = looseString(wire.DisplayName)
	a.URI = looseString(wire.URI)
	a.PhotoURI = looseString(wire.PhotoURI)
	return nil
}

type UpstreamReview struct {
	Name                           string             `json:"name,omitempty"`
	Rating                         *float64           `json:"rating,omitempty"`
	Text                           *LocalizedText     `json:"text,omitempty"`
	OriginalText                   *LocalizedText     `json:"originalText,omitempty"`
	RelativePublishTimeDescription string             `json:"relativePublishTimeDescription,omitempty"`
	PublishTime                    string             `json:"publishTime,omitempty"`
	AuthorAttribution              *AuthorAttribution `json:"authorAttribution,omitempty"`
}

func (r *UpstreamReview) UnmarshalJSON(data []byte) error {
	var wire struct {
		Name                           json.RawMessage    `json:"name"`
		Rating                         json.RawMessage    `json:"rating"`
		Text                           *LocalizedText     `json:"text"`
		OriginalText                   *LocalizedText     `json:"originalText"`
		RelativePublishTimeDescription json.RawMessage    `json:"relativePublishTimeDescription"`
		PublishTime                    json.RawMessage    `json:"publishTime"`
		AuthorAttribution              *AuthorAttribution `json:"authorAttribution"`
	}
	*r = UpstreamReview{}
	if json.Unmarshal(data, &wire) != nil {
		return nil
	}

	r.Name = looseString(wire.Name)
	if f, ok := looseNumber(wire.Rating); ok {
		r.Rating = &f
	}
	r.Text = wire.Text
	r.OriginalText = wire.OriginalText
	r.RelativePublishTimeDescription = looseString(wire.RelativePublishTimeDescription)
	r.PublishTime = looseString(wire.PublishTime)
	r.AuthorAttribution = wire.AuthorAttribution
	return nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// looseString returns raw's value if it is a JSON string and "" otherwise.
func looseString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// looseNumber accepts JSON numbers only. Numeric strings are not numbers,
// matching how RatingValue treats them.
func looseNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false
	}
	var n json.Number
	if json.Unmarshal(raw, &n) != nil {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// RatingKind says which shape the upstream "rating" field arrived in.
type RatingKind int

const (
	RatingAbsent RatingKind = iota
	RatingNumber
	RatingObject
)

func (k RatingKind) String() string {
	switch k {
	case RatingNumber:
		return "number"
	case RatingObject:
		return "object"
	default:
		return "absent"
	}
}

// RatingValue is the "rating" field classified once at decode time. It is
// either a bare number, an object with rating/userRatingCount members, or
// absent. Any other JSON (strings, arrays, malformed objects) is absent.
type RatingValue struct {
	Kind  RatingKind
	Value float64
	// Count is only meaningful for RatingObject with HasCount set.
	Count    int
	HasCount bool
}

func (r *RatingValue) UnmarshalJSON(data []byte) error {
	*r = RatingValue{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '{':
		var obj struct {
			Rating          *float64 `json:"rating"`
			UserRatingCount *float64 `json:"userRatingCount"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil
		}
		r.Kind = RatingObject
		if obj.Rating != nil {
			r.Value = *obj.Rating
		}
		if obj.UserRatingCount != nil {
			r.Count = int(*obj.UserRatingCount)
			r.HasCount = true
		}
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return nil
		}
		r.Kind = RatingNumber
		r.Value = f
	}
	return nil
}

func (r RatingValue) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RatingNumber:
		return json.Marshal(r.Value)
	case RatingObject:
		obj := map[string]any{"rating": r.Value}
		if r.HasCount {
			obj["userRatingCount"] = r.Count
		}
		return json.Marshal(obj)
	default:
		return []byte("null"), nil
	}
}

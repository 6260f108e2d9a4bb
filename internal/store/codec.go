package store

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// The codec is the parse-or-reject boundary between durable storage and the
// in-memory state. Malformed JSON degrades to an empty collection; records
// that fail schema checks are dropped, never repaired or surfaced.

func decodeUsers(log zerolog.Logger, raw string) []User {
	var records []User
	if !unmarshalCollection(log, kvUsersLabel, raw, &records) {
		return []User{}
	}
	valid := make([]User, 0, len(records))
	for _, u := range records {
		if u.ID == "" || u.Name == "" {
			log.Warn().Str("collection", kvUsersLabel).Msg("dropping user record with missing id or name")
			continue
		}
		if _, ok := allowedRoles[u.Role]; !ok {
			log.Warn().Str("collection", kvUsersLabel).Str("id", u.ID).Str("role", u.Role).Msg("dropping user record with unknown role")
			continue
		}
		valid = append(valid, u)
	}
	return valid
}

func decodeRequests(log zerolog.Logger, raw string) []Request {
	var records []Request
	if !unmarshalCollection(log, kvRequestsLabel, raw, &records) {
		return []Request{}
	}
	valid := make([]Request, 0, len(records))
	for _, r := range records {
		if r.ID == "" || r.Title == "" || r.SubmittedBy == "" {
			log.Warn().Str("collection", kvRequestsLabel).Msg("dropping request record with missing required field")
			continue
		}
		if r.Status == "" {
			r.Status = StatusSubmitted
		} else if !ValidStatus(r.Status) {
			log.Warn().Str("collection", kvRequestsLabel).Str("id", r.ID).Str("status", r.Status).Msg("dropping request record with unknown status")
			continue
		}
		if r.Priority == "" {
			r.Priority = PriorityMedium
		} else if !ValidPriority(r.Priority) {
			log.Warn().Str("collection", kvRequestsLabel).Str("id", r.ID).Str("priority", r.Priority).Msg("dropping request record with unknown priority")
			continue
		}
		if r.Files == nil {
			r.Files = []FileMeta{}
		}
		if r.Timeline == nil {
			r.Timeline = []TimelineEntry{}
		}
		valid = append(valid, r)
	}
	return valid
}

func decodeComments(log zerolog.Logger, raw string) []Comment {
	var records []Comment
	if !unmarshalCollection(log, kvCommentsLabel, raw, &records) {
		return []Comment{}
	}
	valid := make([]Comment, 0, len(records))
	for _, c := range records {
		if c.ID == "" || c.RequestID == "" || c.UserID == "" {
			log.Warn().Str("collection", kvCommentsLabel).Msg("dropping comment record with missing required field")
			continue
		}
		valid = append(valid, c)
	}
	return valid
}

func decodeFavorites(log zerolog.Logger, raw string) []Favorite {
	var records []Favorite
	if !unmarshalCollection(log, kvFavoritesLabel, raw, &records) {
		return []Favorite{}
	}
	valid := make([]Favorite, 0, len(records))
	for _, f := range records {
		if f.ID == "" || f.UserID == "" {
			log.Warn().Str("collection", kvFavoritesLabel).Msg("dropping favorite record with missing id or userId")
			continue
		}
		valid = append(valid, f)
	}
	return valid
}

// decodeUser parses a single stored user snapshot (the session's current
// user). Malformed or incomplete snapshots are treated as absent.
func decodeUser(log zerolog.Logger, raw string) (User, bool) {
	var u User
	if raw == "" {
		return User{}, false
	}
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		log.Warn().Err(err).Msg("malformed current user snapshot, treating as absent")
		return User{}, false
	}
	if u.ID == "" || u.Name == "" {
		return User{}, false
	}
	return u, true
}

func unmarshalCollection(log zerolog.Logger, label, raw string, out any) bool {
	if raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		log.Warn().Str("collection", label).Err(err).Msg("malformed collection value, substituting empty")
		return false
	}
	return true
}

func encodeCollection(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

const (
	kvUsersLabel     = "users"
	kvRequestsLabel  = "requests"
	kvCommentsLabel  = "comments"
	kvFavoritesLabel = "favorites"
)

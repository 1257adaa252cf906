package utils

import (
	"net/url"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QueryConfig is the fixed query surface of one resource: which request
// parameters may become exact-match filters and which fields a search term
// is matched against.
type QueryConfig struct {
	Filterable []string
	Searchable []string
}

// BuildFilter copies allow-listed parameters from params into an exact-match
// filter. "true" and "false" become booleans; everything else is kept as the
// raw string. Parameters outside allowed, and empty values, are dropped.
func BuildFilter(params url.Values, allowed []string) bson.M {
	filter := bson.M{}
	for _, field := range allowed {
		v := params.Get(field)
		if v == "" {
			continue
		}
		switch v {
		case "true":
			filter[field] = true
		case "false":
			filter[field] = false
		default:
			filter[field] = v
		}
	}
	return filter
}

// BuildSearch matches documents where any of fields contains term,
// case-insensitively. An empty term yields an empty predicate.
func BuildSearch(term string, fields []string) bson.M {
	if term == "" || len(fields) == 0 {
		return bson.M{}
	}
	pattern := regexp.QuoteMeta(term)
	or := make(bson.A, 0, len(fields))
	for _, field := range fields {
		or = append(or, bson.M{field: primitive.Regex{Pattern: pattern, Options: "i"}})
	}
	return bson.M{"$or": or}
}

// And combines predicates. Disjoint predicates are merged into one document;
// if any key repeats the result is an explicit $and.
func And(preds ...bson.M) bson.M {
	var parts []bson.M
	for _, p := range preds {
		if len(p) > 0 {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return bson.M{}
	case 1:
		return parts[0]
	}
	merged := bson.M{}
	for _, p := range parts {
		for k, v := range p {
			if _, dup := merged[k]; dup {
				and := make(bson.A, 0, len(parts))
				for _, p := range parts {
					and = append(and, p)
				}
				return bson.M{"$and": and}
			}
			merged[k] = v
		}
	}
	return merged
}

// Query builds the combined filter and search predicate for cfg from request
// parameters. The search term is read from the "search" parameter.
func (cfg QueryConfig) Query(params url.Values) bson.M {
	return And(BuildFilter(params, cfg.Filterable), BuildSearch(params.Get("search"), cfg.Searchable))
}

// package query turns list parameters into owner-scoped todo queries
package query

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cirocosta/todorest/internal/validation"
)

// Recognized query string parameters
const (
	ParamDone          = "done"
	ParamCreated       = "date_created"
	ParamCreatedAfter  = "date_created__gte"
	ParamCreatedBefore = "date_created__lte"
	ParamOrdering      = "ordering"
)

// OrderField is a todo attribute results can be ordered by
type OrderField string

const (
	OrderByID          OrderField = "id"
	OrderByName        OrderField = "name"
	OrderByDateCreated OrderField = "date_created"
)

// orderable lists the fields a client may order by
var orderable = map[OrderField]bool{
	OrderByName:        true,
	OrderByDateCreated: true,
}

// OrderTerm is a single ordering clause
type OrderTerm struct {
	Field      OrderField
	Descending bool
}

// String renders the term the way clients write it, e.g. "-name"
func (o OrderTerm) String() string {
	if o.Descending {
		return "-" + string(o.Field)
	}
	return string(o.Field)
}

// Params holds the filters and ordering requested by a client. Nil filters
// are not applied.
type Params struct {
	Done          *bool
	Created       *time.Time
	CreatedAfter  *time.Time // inclusive
	CreatedBefore *time.Time // inclusive
	Ordering      []OrderTerm
}

// ParseParams reads filters and ordering from a list request. Unknown
// parameters are ignored; malformed values of known parameters are reported
// as validation.Errors keyed by parameter name.
func ParseParams(values url.Values) (Params, error) {
	var (
		p    Params
		errs = validation.Errors{}
	)

	if v, ok := lookup(values, ParamDone); ok {
		done, err := parseBool(v)
		if err != nil {
			errs.Add(ParamDone, err.Error())
		} else {
			p.Done = &done
		}
	}

	for param, dst := range map[string]**time.Time{
		ParamCreated:       &p.Created,
		ParamCreatedAfter:  &p.CreatedAfter,
		ParamCreatedBefore: &p.CreatedBefore,
	} {
		v, ok := lookup(values, param)
		if !ok {
			continue
		}
		ts, err := parseTime(v)
		if err != nil {
			errs.Add(param, err.Error())
			continue
		}
		*dst = &ts
	}

	if v, ok := lookup(values, ParamOrdering); ok {
		terms, err := parseOrdering(v)
		if err != nil {
			errs.Add(ParamOrdering, err.Error())
		} else {
			p.Ordering = terms
		}
	}

	if err := errs.Err(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// lookup returns the last value given for key. A blank last value leaves
// the parameter unset.
func lookup(values url.Values, key string) (string, bool) {
	vs := values[key]
	if len(vs) == 0 {
		return "", false
	}
	v := strings.TrimSpace(vs[len(vs)-1])
	return v, v != ""
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a valid boolean", v)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime accepts RFC 3339 timestamps and naive timestamps or dates, which
// are taken as UTC.
func parseTime(v string) (time.Time, error) {
	candidates := []string{v}
	// an unescaped "+" offset arrives as a space
	if i := strings.LastIndex(v, " "); i > 0 && strings.Contains(v[:i], "T") {
		candidates = append(candidates, v[:i]+"+"+v[i+1:])
	}

	for _, candidate := range candidates {
		for _, layout := range timeLayouts {
			if ts, err := time.ParseInLocation(layout, candidate, time.UTC); err == nil {
				return ts.UTC(), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a valid date or date-time", v)
}

func parseOrdering(v string) ([]OrderTerm, error) {
	var terms []OrderTerm
	for _, raw := range strings.Split(v, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		term := OrderTerm{Field: OrderField(strings.TrimPrefix(raw, "-"))}
		term.Descending = strings.HasPrefix(raw, "-")
		if !orderable[term.Field] {
			return nil, fmt.Errorf("cannot order by %q, expected one of name, date_created", term.Field)
		}
		terms = append(terms, term)
	}
	return terms, nil
}

package parse

import (
	"io"
	"strconv"

	"github.com/pkg/errors"

	"tidbyt.dev/gtfsmerge/model"
)

type RouteCSV struct {
	ID        string `csv:"route_id"`
	AgencyID  string `csv:"agency_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
	Type      string `csv:"route_type"`
	TextColor string `csv:"route_text_color"`
	Color     string `csv:"route_color"`
	URL       string `csv:"route_url"`
	Desc      string `csv:"route_desc"`
}

func (l *loader) parseRoutes(data io.Reader) error {
	return decode(l, KindRoutes, data, func(r *RouteCSV) error {
		if r.ID == "" {
			return errors.New("empty route_id")
		}

		routeType, err := strconv.Atoi(r.Type)
		if err != nil {
			return errors.Wrapf(err, "parsing route_type for route_id '%s'", r.ID)
		}

		l.feed.Routes = append(l.feed.Routes, model.Route{
			ID:        r.ID,
			AgencyID:  r.AgencyID,
			ShortName: r.ShortName,
			LongName:  r.LongName,
			Type:      model.RouteType(routeType),
			TextColor: r.TextColor,
			Color:     r.Color,
			URL:       r.URL,
			Desc:      r.Desc,
		})

		return nil
	})
}

package parse

import (
	"io"

	"tidbyt.dev/gtfsmerge/model"
)

func (l *loader) parseAgency(data io.Reader) error {
	return decode(l, KindAgency, data, func(a *model.Agency) error {
		l.feed.Agencies = append(l.feed.Agencies, *a)
		return nil
	})
}

package parse

import (
	"io"
	"strconv"

	"github.com/pkg/errors"

	"tidbyt.dev/gtfsmerge/model"
)

type TransferCSV struct {
	FromStopID      string `csv:"from_stop_id"`
	ToStopID        string `csv:"to_stop_id"`
	TransferType    string `csv:"transfer_type"`
	MinTransferTime string `csv:"min_transfer_time"`
}

type LinkCSV struct {
	FromStopID string `csv:"from_stop_id"`
	ToStopID   string `csv:"to_stop_id"`
	Duration   string `csv:"duration"`
}

// Empty is 0.
func parseOptionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func (l *loader) parseTransfers(data io.Reader) error {
	return decode(l, KindTransfers, data, func(t *TransferCSV) error {
		if t.FromStopID == "" || t.ToStopID == "" {
			return errors.New("empty from_stop_id or to_stop_id")
		}

		transferType, err := parseOptionalInt(t.TransferType)
		if err != nil {
			return errors.Wrap(err, "parsing transfer_type")
		}
		minTime, err := parseOptionalInt(t.MinTransferTime)
		if err != nil {
			return errors.Wrap(err, "parsing min_transfer_time")
		}

		l.addTransfer(model.Transfer{
			FromStopID:      l.prefix(t.FromStopID),
			ToStopID:        l.prefix(t.ToStopID),
			TransferType:    model.TransferType(transferType),
			MinTransferTime: minTime,
		})
		return nil
	})
}

func (l *loader) parseLinks(data io.Reader) error {
	return decode(l, KindLinks, data, func(link *LinkCSV) error {
		if link.FromStopID == "" || link.ToStopID == "" {
			return errors.New("empty from_stop_id or to_stop_id")
		}

		duration, err := parseOptionalInt(link.Duration)
		if err != nil {
			return errors.Wrap(err, "parsing duration")
		}

		l.addTransfer(model.Transfer{
			FromStopID:      l.prefix(link.FromStopID),
			ToStopID:        l.prefix(link.ToStopID),
			TransferType:    model.TransferTypeMinTime,
			MinTransferTime: duration,
		})
		return nil
	})
}

// Keeps one transfer per direction, the one with the shortest
// min_transfer_time.
func (l *loader) addTransfer(t model.Transfer) {
	key := [2]string{t.FromStopID, t.ToStopID}

	i, found := l.transfers[key]
	if !found {
		l.transfers[key] = len(l.feed.Transfers)
		l.feed.Transfers = append(l.feed.Transfers, t)
		return
	}

	if t.MinTransferTime < l.feed.Transfers[i].MinTransferTime {
		l.feed.Transfers[i] = t
	}
}

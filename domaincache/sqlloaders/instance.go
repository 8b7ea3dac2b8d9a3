package sqlloaders

import (
	"context"

	"github.com/fedimesh/qkvc/domaincache"
	"github.com/fedimesh/qkvc/qerrors"
)

const instanceColumns = `host, is_blocked, is_silenced, is_media_silenced`

func scanInstance(row interface {
	Scan(dest ...any) error
}) (*domaincache.Instance, bool, error) {
	inst := &domaincache.Instance{}
	err := row.Scan(&inst.Host, &inst.IsBlocked, &inst.IsSilenced, &inst.IsMediaSilenced)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, qerrors.Wrap(err, "failed to scan instance")
	}
	return inst, true, nil
}

// FetchOrCreateInstance implements domaincache.Loaders: host is already
// punycoded by the caller (domaincache.EncodeInstanceKey). The first time
// a remote host is seen, its row is seeded from the Store's configured
// HostPolicy rather than always created unblocked (spec §4.5.6).
func (s *Store) FetchOrCreateInstance(ctx context.Context, host string) (*domaincache.Instance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE host = ?`, host)
	inst, found, err := scanInstance(row)
	if err != nil {
		return nil, err
	}
	if found {
		return inst, nil
	}

	blocked, silenced, mediaSilenced := s.policy.classify(host)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO instances (host, is_blocked, is_silenced, is_media_silenced) VALUES (?, ?, ?, ?)`,
		host, blocked, silenced, mediaSilenced)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to insert new instance")
	}
	return &domaincache.Instance{
		Host:            host,
		IsBlocked:       blocked,
		IsSilenced:      silenced,
		IsMediaSilenced: mediaSilenced,
	}, nil
}

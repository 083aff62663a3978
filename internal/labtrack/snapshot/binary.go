package snapshot

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/types"
)

// ContentType is the media type served for binary snapshots.
const ContentType = "application/x-protobuf"

// The binary form is protobuf wire format for
//
//	message Snapshot { repeated Event events = 1; }
//	message Event {
//	  uint64 id = 1;
//	  string user_id = 2;
//	  string zone_id = 3;
//	  string access_point_id = 4;
//	  int64  timestamp_unix_nano = 5;
//	  Direction direction = 6; // 1 = enter, 2 = exit
//	}
const (
	fieldEvents = 1

	fieldID          = 1
	fieldUserID      = 2
	fieldZoneID      = 3
	fieldAccessPoint = 4
	fieldTimestamp   = 5
	fieldDirection   = 6

	dirEnter = 1
	dirExit  = 2
)

var ErrMalformed = errors.New("snapshot: malformed binary data")

func MarshalBinary(events []types.AccessEvent) []byte {
	var out, msg []byte
	for _, ev := range events {
		msg = msg[:0]
		msg = protowire.AppendTag(msg, fieldID, protowire.VarintType)
		msg = protowire.AppendVarint(msg, ev.ID)
		msg = protowire.AppendTag(msg, fieldUserID, protowire.BytesType)
		msg = protowire.AppendString(msg, ev.UserID)
		msg = protowire.AppendTag(msg, fieldZoneID, protowire.BytesType)
		msg = protowire.AppendString(msg, ev.ZoneID)
		msg = protowire.AppendTag(msg, fieldAccessPoint, protowire.BytesType)
		msg = protowire.AppendString(msg, ev.AccessPointID)
		msg = protowire.AppendTag(msg, fieldTimestamp, protowire.VarintType)
		msg = protowire.AppendVarint(msg, uint64(ev.Timestamp.UnixNano()))
		msg = protowire.AppendTag(msg, fieldDirection, protowire.VarintType)
		msg = protowire.AppendVarint(msg, directionCode(ev.Direction))

		out = protowire.AppendTag(out, fieldEvents, protowire.BytesType)
		out = protowire.AppendBytes(out, msg)
	}
	return out
}

func UnmarshalBinary(b []byte) ([]types.AccessEvent, error) {
	var out []types.AccessEvent
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		if num != fieldEvents || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		ev, err := unmarshalEvent(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func unmarshalEvent(b []byte) (types.AccessEvent, error) {
	var ev types.AccessEvent
	var haveTS bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ev, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && (num == fieldID || num == fieldTimestamp || num == fieldDirection):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return ev, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldID:
				ev.ID = v
			case fieldTimestamp:
				ev.Timestamp = time.Unix(0, int64(v)).UTC()
				haveTS = true
			case fieldDirection:
				switch v {
				case dirEnter:
					ev.Direction = types.DirectionEnter
				case dirExit:
					ev.Direction = types.DirectionExit
				default:
					return ev, fmt.Errorf("%w: direction code %d", ErrMalformed, v)
				}
			}
		case typ == protowire.BytesType && (num == fieldUserID || num == fieldZoneID || num == fieldAccessPoint):
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return ev, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldUserID:
				ev.UserID = s
			case fieldZoneID:
				ev.ZoneID = s
			case fieldAccessPoint:
				ev.AccessPointID = s
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return ev, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !haveTS || ev.Direction == "" {
		return ev, fmt.Errorf("%w: event %d missing timestamp or direction", ErrMalformed, ev.ID)
	}
	return ev, nil
}

func directionCode(d types.Direction) uint64 {
	if d == types.DirectionExit {
		return dirExit
	}
	return dirEnter
}
